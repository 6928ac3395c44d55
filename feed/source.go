package feed

import (
	"context"
	"fmt"
	"hash"
	"net/http"
	"net/url"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/robotomize/eurofx"
	"github.com/robotomize/eurofx/feed/httputil"
	"github.com/robotomize/eurofx/internal/hashio"
)

const hostname = "www.ecb.europa.eu"

const (
	hist90dXMLRawPath = "/stats/eurofxref/eurofxref-hist-90d.xml"
	dailyXMLRawPath   = "/stats/eurofxref/eurofxref-daily.xml"
)

// Format is the markup of a feed resource
type Format string

const (
	FormatXML Format = "xml"
	FormatCSV Format = "csv"
)

var (
	// DefaultResource is the ECB reference rates of the last 90 days
	DefaultResource = Resource{
		URL:    url.URL{Scheme: "https", Host: hostname, Path: hist90dXMLRawPath},
		Format: FormatXML,
	}
	// DailyResource is the ECB reference rates of the last business day
	DailyResource = Resource{
		URL:    url.URL{Scheme: "https", Host: hostname, Path: dailyXMLRawPath},
		Format: FormatXML,
	}
)

// Resource is a location of the feed and its markup
type Resource struct {
	URL    url.URL
	Format Format
}

func (r Resource) String() string {
	return r.URL.String()
}

// ParseResource builds a Resource from a raw url and a format name
func ParseResource(rawURL string, format string) (Resource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Resource{}, fmt.Errorf("url parse: %w", err)
	}

	f := Format(format)
	if _, err := decoderFor(f); err != nil {
		return Resource{}, err
	}

	return Resource{URL: *u, Format: f}, nil
}

// Payload is a fetched and structurally decoded feed. Digest identifies the
// raw document, so an unchanged feed can be recognised without re-ingesting
type Payload struct {
	Resource string
	Entries  []eurofx.FeedEntry
	Digest   []byte
}

// Source is an interface for getting the rate history from an external resource
//
//go:generate mockgen -source source.go -destination mock_source.go -package feed
type Source interface {
	// Fetch downloads and decodes the feed
	Fetch(ctx context.Context) (Payload, error)
}

var _ Source = (*source)(nil)

type fetcher struct {
	resource Resource
	decodeFunc
	httputil.SourceHTTPClient
}

type SourceOption func(*source)

// WithResources replaces the default resource. Resources are requested
// concurrently and the first one to answer is used
func WithResources(resources ...Resource) SourceOption {
	return func(s *source) {
		s.resources = resources
	}
}

// WithHasher sets the hash used for payload digests
func WithHasher(hasher func() hash.Hash) SourceOption {
	return func(s *source) {
		s.hasher = hasher
	}
}

// WithUserAgent overrides the User-Agent sent to the feed hosts
func WithUserAgent(ua string) SourceOption {
	return func(s *source) {
		s.userAgent = ua
	}
}

func NewSource(client *http.Client, opts ...SourceOption) (*source, error) {
	s := &source{
		resources: []Resource{DefaultResource},
		hasher:    hashio.MD5(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.fetchers = make([]fetcher, 0, len(s.resources))
	for _, r := range s.resources {
		d, err := decoderFor(r.Format)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", r, err)
		}

		httpOpts := []httputil.Option{httputil.WithAccept(acceptFor(r.Format))}
		if s.userAgent != "" {
			httpOpts = append(httpOpts, httputil.WithUserAgent(s.userAgent))
		}

		s.fetchers = append(s.fetchers, fetcher{
			resource:         r,
			decodeFunc:       d,
			SourceHTTPClient: httputil.NewHTTPClient(client, httpOpts...),
		})
	}

	return s, nil
}

type source struct {
	resources []Resource
	hasher    func() hash.Hash
	userAgent string
	fetchers  []fetcher
}

func (s *source) Fetch(ctx context.Context) (Payload, error) {
	payload, err := s.fetchingPlan(ctx)
	if err != nil {
		return Payload{}, fmt.Errorf("fetching plan: %w", err)
	}

	return payload, nil
}

func (s *source) fetchingPlan(ctx context.Context) (Payload, error) {
	type fetchingDat struct {
		err error
		b   []byte
		f   fetcher
	}

	var dat fetchingDat
	var ferr *multierror.Error

	if len(s.fetchers) == 0 {
		return Payload{}, errNoResources
	}

	wg := sync.WaitGroup{}
	wg.Add(1)

	ch := make(chan fetchingDat)
	stopCh := make(chan struct{})

	for _, fet := range s.fetchers {
		fet := fet
		go func() {
			select {
			case <-stopCh:
				return
			default:
			}

			b, err := fet.Get(ctx, fet.resource.URL)
			if err != nil {
				err = fmt.Errorf("%s: %w", fet.resource, err)
			}

			select {
			case <-stopCh:
				return
			case ch <- fetchingDat{b: b, f: fet, err: err}:
			}
		}()
	}

	go func() {
		defer wg.Done()
		defer close(stopCh)
		n := len(s.fetchers)
		for {
			select {
			case <-ctx.Done():
				ferr = multierror.Append(ferr, fmt.Errorf("ctx cancelled: %w", ctx.Err()))
				return
			case dat = <-ch:
				n--
				if dat.err == nil {
					return
				}
				ferr = multierror.Append(ferr, dat.err)
				if n == 0 {
					return
				}
			}
		}
	}()

	wg.Wait()

	if dat.err != nil || dat.f.decodeFunc == nil {
		return Payload{}, ferr.ErrorOrNil()
	}

	payload, err := s.decode(dat.b, dat.f)
	if err != nil {
		return Payload{}, fmt.Errorf("decode: %w", err)
	}

	return payload, nil
}

func (s *source) decode(b []byte, fet fetcher) (Payload, error) {
	entries, err := collect(b, fet.decodeFunc)
	if err != nil {
		return Payload{}, fmt.Errorf("%s decode func: %w", fet.resource.Format, err)
	}

	digest, err := hashio.Sum(b, s.hasher)
	if err != nil {
		return Payload{}, fmt.Errorf("digest: %w", err)
	}

	return Payload{
		Resource: fet.resource.String(),
		Entries:  entries,
		Digest:   digest,
	}, nil
}

func acceptFor(format Format) string {
	if format == FormatCSV {
		return "text/csv"
	}

	return "application/xml, text/xml"
}

func decoderFor(format Format) (decodeFunc, error) {
	switch format {
	case FormatXML:
		return decodeXML(), nil
	case FormatCSV:
		return decodeCSV(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
