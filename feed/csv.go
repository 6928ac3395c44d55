package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robotomize/eurofx"
	"github.com/robotomize/eurofx/internal/strutil"
)

const csvDateColumn = "Date"

// csvDateLayouts are the date layouts of the ECB csv files, the first one is
// the layout of the history archive, the second of the daily file
var csvDateLayouts = []string{eurofx.DateLayout, "02 January 2006"}

// csvMissingValue marks a currency not quoted on that date in the history archive
const csvMissingValue = "N/A"

// decodeCSV returns the decoding function for the ECB csv layout:
// a header row "Date, USD, JPY, ..." followed by one row per date
func decodeCSV() decodeFunc {
	return func(b []byte, iterFunc func(entry eurofx.FeedEntry) error) error {
		if iterFunc == nil {
			return errMissingIterFunc
		}
		decoder := csv.NewReader(bytes.NewReader(b))
		idx := 0
		var header []string
	TokenLoop:
		for {
			line, err := decoder.Read()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break TokenLoop
				}

				var parseError *csv.ParseError
				if errors.As(err, &parseError) {
					return fmt.Errorf("%w: %v", errDecodeToken, parseError.Error())
				}

				return fmt.Errorf("csv decoder read: %w", err)
			}

			if idx == 0 {
				for _, column := range line {
					header = append(header, strutil.TrimToken(column))
				}

				if len(header) == 0 || header[0] != csvDateColumn {
					return fmt.Errorf("%w: first column must be %q", errAttributeNotValid, csvDateColumn)
				}

				idx++
				continue TokenLoop
			}

			entry := eurofx.FeedEntry{Date: normalizeCSVDate(strutil.TrimToken(line[0]))}

			for n := 1; n < len(line); n++ {
				token := strutil.TrimToken(line[n])
				if token == "" || strings.EqualFold(token, csvMissingValue) || header[n] == "" {
					continue
				}

				entry.Rates = append(entry.Rates, eurofx.FeedRate{
					Currency: header[n],
					Rate:     token,
				})
			}

			if err := iterFunc(entry); err != nil {
				return fmt.Errorf("handle func: %w", err)
			}
		}

		return nil
	}
}

// normalizeCSVDate rewrites known date layouts to eurofx.DateLayout and
// leaves anything else untouched for the ingest validation to reject
func normalizeCSVDate(s string) string {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(eurofx.DateLayout)
		}
	}

	return s
}
