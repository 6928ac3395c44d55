package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/robotomize/eurofx"
	"github.com/robotomize/eurofx/internal/config"
	"github.com/robotomize/eurofx/internal/logging"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const testCSV = "Date,USD,GBP,\n2019-01-03,1.15,0.87,\n2019-01-02,1.14,0.86,\n"

func TestRealMain(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testCSV))
	}))
	defer srv.Close()

	cfg := &config.Config{
		FeedURL:        srv.URL,
		FeedFormat:     "csv",
		RequestTimeout: 5 * time.Second,
		RetryDuration:  time.Millisecond,
		BaseCurrency:   "EUR",
	}

	testCases := []struct {
		name     string
		opts     cliOptions
		expected string
		err      error
	}{
		{
			name:     "test_list",
			opts:     cliOptions{list: true},
			expected: "2019-01-03 1 EUR\nUSD        1.15\nGBP        0.87\n",
		},
		{
			name:     "test_convert",
			opts:     cliOptions{amount: "100", from: "usd", to: "gbp"},
			expected: "100 USD = 75.652 GBP\n",
		},
		{
			name:     "test_series",
			opts:     cliOptions{series: "usd", hash: "sha1"},
			expected: "2019-01-02 1.14\n2019-01-03 1.15\n",
		},
		{
			name: "test_bad_amount",
			opts: cliOptions{amount: "ten", from: "usd", to: "gbp"},
			err:  eurofx.ErrInvalidAmount,
		},
		{
			name: "test_unknown_currency",
			opts: cliOptions{series: "JPY"},
			err:  eurofx.ErrCurrencyNotFound,
		},
		{
			name: "test_unknown_hash",
			opts: cliOptions{list: true, hash: "crc32"},
			err:  errUnknownHash,
		},
		{
			name: "test_nothing_to_do",
			err:  errNothingToDo,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := logging.WithLogger(context.Background(), log.NewNopLogger())

			var buf bytes.Buffer
			err := realMain(ctx, cfg, tc.opts, &buf)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Errorf("mismatch error: want %v, got %v", tc.err, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("real main: %v", err)
			}

			if diff := cmp.Diff(tc.expected, buf.String()); diff != "" {
				t.Errorf("mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}
