package httputil

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultUserAgent = "eurofx/0.1.0"

// ErrStatusCode matches every StatusError
var ErrStatusCode = errors.New("http status != 200")

// StatusError is returned when the feed host answers with anything but 200
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s answered %s", ErrStatusCode, e.URL, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatusCode
}

// NewDefaultClient returns an HTTP client tuned for a handful of slow
// government hosts
func NewDefaultClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			DisableCompression:    true,
			IdleConnTimeout:       5 * time.Minute,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
	}
}

type Option func(*SourceHTTPClient)

// WithUserAgent overrides DefaultUserAgent
func WithUserAgent(ua string) Option {
	return func(c *SourceHTTPClient) {
		c.userAgent = ua
	}
}

// WithAccept sets the Accept header, none is sent by default
func WithAccept(mime string) Option {
	return func(c *SourceHTTPClient) {
		c.accept = mime
	}
}

// NewHTTPClient return prepared SourceHTTPClient
func NewHTTPClient(client *http.Client, opts ...Option) SourceHTTPClient {
	c := SourceHTTPClient{client: client, userAgent: DefaultUserAgent}
	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// SourceHTTPClient downloads feed documents
type SourceHTTPClient struct {
	client    *http.Client
	userAgent string
	accept    string
}

func (f SourceHTTPClient) UserAgent() string {
	return f.userAgent
}

// Get downloads the document at u and returns the decompressed body
func (f SourceHTTPClient) Get(ctx context.Context, u url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build HTTP request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	if f.accept != "" {
		req.Header.Set("Accept", f.accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("make HTTP request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: u.Redacted(), Code: resp.StatusCode, Status: resp.Status}
	}

	return readBody(resp)
}

// readBody reads a possibly gzipped body
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if isGzip(resp.Header) {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()

		reader = gz
	}

	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return b, nil
}

func isGzip(h http.Header) bool {
	return strings.Contains(h.Get("Content-Encoding"), "gzip") ||
		strings.Contains(h.Get("Content-Type"), "application/x-gzip")
}
