package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	testCases := []struct {
		name     string
		env      map[string]string
		expected *Config
		err      error
	}{
		{
			name: "test_defaults",
			expected: &Config{
				FeedURL:        "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist-90d.xml",
				FeedFormat:     "xml",
				RequestTimeout: 10 * time.Second,
				RetryNum:       1,
				RetryDuration:  5 * time.Second,
				BaseCurrency:   "EUR",
				LogLevel:       "info",
			},
		},
		{
			name: "test_overrides",
			env: map[string]string{
				"EUROFX_FEED_URL":        "http://localhost:8080/rates.csv",
				"EUROFX_FEED_FORMAT":     "csv",
				"EUROFX_REQUEST_TIMEOUT": "30s",
				"EUROFX_RETRY_NUM":       "3",
				"EUROFX_RETRY_DURATION":  "250ms",
				"EUROFX_BASE_CURRENCY":   " eur ",
				"EUROFX_LOG_LEVEL":       "debug",
			},
			expected: &Config{
				FeedURL:        "http://localhost:8080/rates.csv",
				FeedFormat:     "csv",
				RequestTimeout: 30 * time.Second,
				RetryNum:       3,
				RetryDuration:  250 * time.Millisecond,
				BaseCurrency:   "EUR",
				LogLevel:       "debug",
			},
		},
		{
			name: "test_zero_timeout",
			env:  map[string]string{"EUROFX_REQUEST_TIMEOUT": "0s"},
			err:  ErrInvalidConfig,
		},
		{
			name: "test_zero_retry_duration",
			env:  map[string]string{"EUROFX_RETRY_DURATION": "0s"},
			err:  ErrInvalidConfig,
		},
		{
			name: "test_negative_retry_duration",
			env:  map[string]string{"EUROFX_RETRY_DURATION": "-1s"},
			err:  ErrInvalidConfig,
		},
		{
			name: "test_unknown_format",
			env:  map[string]string{"EUROFX_FEED_FORMAT": "json"},
			err:  ErrInvalidConfig,
		},
		{
			name: "test_bad_url",
			env:  map[string]string{"EUROFX_FEED_URL": "not a url"},
			err:  ErrInvalidConfig,
		},
		{
			name: "test_unknown_log_level",
			env:  map[string]string{"EUROFX_LOG_LEVEL": "trace"},
			err:  ErrInvalidConfig,
		},
		{
			name: "test_bad_base_currency",
			env:  map[string]string{"EUROFX_BASE_CURRENCY": "euro"},
			err:  ErrInvalidConfig,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			got, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Errorf("mismatch error: want %v, got %v", tc.err, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("load: %v", err)
			}

			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "EUROFX_RETRY_NUM"

	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s is set in the environment", key)
	}

	t.Cleanup(func() {
		_ = os.Unsetenv(key)
	})

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=7\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if diff := cmp.Diff(uint64(7), got.RetryNum); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}
