package eurofx

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robotomize/eurofx/internal/strutil"
	"github.com/samber/lo"
)

const (
	// DefaultBaseCurrency is the currency the ECB reference rates are quoted against
	DefaultBaseCurrency = "EUR"
	// DateLayout is the calendar date layout of feed entries
	DateLayout = "2006-01-02"
)

var (
	errMissingValue  = errors.New("value is missing")
	errNotNumeric    = errors.New("value is not numeric")
	errNotFinite     = errors.New("value is not finite")
	errNotPositive   = errors.New("value must be positive")
	errMalformedCode = errors.New("currency code must be three latin letters")
	errDuplicateCode = errors.New("currency code is duplicated within the entry")
	errNoRates       = errors.New("entry has no rates")
	errNoEntries     = errors.New("feed has no entries")
)

// FeedEntry is one structurally parsed feed element: a date and the rates
// published for it. It is the inbound boundary of the rate table
type FeedEntry struct {
	Date  string
	Rates []FeedRate
}

// FeedRate is a currency/rate attribute pair. Rate may be a string or any
// of float64, float32, int, int32, int64, json.Number
type FeedRate struct {
	Currency string
	Rate     interface{}
}

// RateRecord is the rate of one unit of the base currency expressed in Code
type RateRecord struct {
	code string
	rate float64
}

func (r RateRecord) Code() string {
	return r.code
}

func (r RateRecord) Rate() float64 {
	return r.rate
}

func (r RateRecord) String() string {
	return r.code + " " + strconv.FormatFloat(r.rate, 'f', -1, 64)
}

// DateSnapshot holds every rate recorded for a single calendar date
type DateSnapshot struct {
	date    time.Time
	base    string
	records []RateRecord
}

// Date returns the snapshot date at 00:00 UTC
func (s DateSnapshot) Date() time.Time {
	return s.date
}

// Records returns a copy of the snapshot records in feed order
func (s DateSnapshot) Records() []RateRecord {
	records := make([]RateRecord, len(s.records))
	copy(records, s.records)

	return records
}

func (s DateSnapshot) Len() int {
	return len(s.records)
}

// Lookup finds the record for code, ignoring case. The base currency
// resolves to a rate of 1 when the feed does not list it explicitly
func (s DateSnapshot) Lookup(code string) (RateRecord, error) {
	code = strutil.NormalizeCode(code)
	for _, r := range s.records {
		if r.code == code {
			return r, nil
		}
	}

	if s.base != "" && code == s.base {
		return RateRecord{code: s.base, rate: 1}, nil
	}

	return RateRecord{}, fmt.Errorf("%w: %q on %s", ErrCurrencyNotFound, code, s.date.Format(DateLayout))
}

// IngestMode selects how Ingest combines the payload with the table contents
type IngestMode byte

const (
	// Replace discards all existing snapshots, used by a manual refresh
	Replace IngestMode = iota
	// Append keeps existing snapshots. Dates are not de-duplicated across calls
	Append
)

func (m IngestMode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

type Option func(*Table)

// WithBaseCurrency sets the implicit currency the feed rates are relative to
func WithBaseCurrency(code string) Option {
	return func(t *Table) {
		t.base = strutil.NormalizeCode(code)
	}
}

// NewTable returns an empty rate table
func NewTable(opts ...Option) *Table {
	t := &Table{base: DefaultBaseCurrency}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Table owns the ingested rate history. Snapshots are kept newest-first.
// Readers always receive copies, and ingestion swaps the whole history at
// once, so a reader observes the table either before or after an ingest
type Table struct {
	base string

	mtx       sync.RWMutex
	snapshots []DateSnapshot
}

// Base returns the base currency code
func (t *Table) Base() string {
	return t.base
}

// Ingest validates the whole payload and only then applies it according to
// mode. Any malformed entry aborts the call and leaves the table untouched;
// the returned error aggregates every *ParseError found and matches ErrParse.
// Entries sharing a date keep their payload order
func (t *Table) Ingest(feed []FeedEntry, mode IngestMode) error {
	parsed, err := t.parse(feed)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	sortNewestFirst(parsed)

	t.mtx.Lock()
	defer t.mtx.Unlock()

	switch mode {
	case Append:
		merged := make([]DateSnapshot, 0, len(t.snapshots)+len(parsed))
		merged = append(merged, t.snapshots...)
		merged = append(merged, parsed...)
		sortNewestFirst(merged)
		t.snapshots = merged
	default:
		t.snapshots = parsed
	}

	return nil
}

// Clear removes every snapshot
func (t *Table) Clear() {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.snapshots = nil
}

// Len returns the number of snapshots
func (t *Table) Len() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	return len(t.snapshots)
}

// Snapshots returns a newest-first copy of the history
func (t *Table) Snapshots() []DateSnapshot {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	list := make([]DateSnapshot, len(t.snapshots))
	copy(list, t.snapshots)

	return list
}

// LatestSnapshot returns the chronologically most recent snapshot
func (t *Table) LatestSnapshot() (DateSnapshot, error) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	if len(t.snapshots) == 0 {
		return DateSnapshot{}, ErrEmptyTable
	}

	return t.snapshots[0], nil
}

// FindRate looks up code in snapshot, ignoring case
func (t *Table) FindRate(snapshot DateSnapshot, code string) (RateRecord, error) {
	return snapshot.Lookup(code)
}

// ListCurrencies returns the codes listed in the latest snapshot in feed order
func (t *Table) ListCurrencies() ([]string, error) {
	latest, err := t.LatestSnapshot()
	if err != nil {
		return nil, err
	}

	return lo.Map(latest.records, func(r RateRecord, _ int) string {
		return r.code
	}), nil
}

func (t *Table) parse(feed []FeedEntry) ([]DateSnapshot, error) {
	if len(feed) == 0 {
		return nil, &ParseError{Entry: -1, Pair: -1, Field: FieldEntries, Err: errNoEntries}
	}

	var merr *multierror.Error
	snapshots := make([]DateSnapshot, 0, len(feed))

	for i, entry := range feed {
		snapshot := DateSnapshot{base: t.base, records: make([]RateRecord, 0, len(entry.Rates))}

		date, err := time.Parse(DateLayout, strutil.TrimToken(entry.Date))
		if err != nil {
			merr = multierror.Append(merr, &ParseError{Entry: i, Pair: -1, Field: FieldDate, Value: entry.Date, Err: err})
		}
		snapshot.date = date

		if len(entry.Rates) == 0 {
			merr = multierror.Append(merr, &ParseError{Entry: i, Pair: -1, Field: FieldRates, Err: errNoRates})
		}

		seen := make(map[string]struct{}, len(entry.Rates))
		for j, pair := range entry.Rates {
			code := strutil.NormalizeCode(pair.Currency)
			if !strutil.IsCurrencyCode(code) {
				merr = multierror.Append(merr, &ParseError{Entry: i, Pair: j, Field: FieldCurrency, Value: pair.Currency, Err: errMalformedCode})
				continue
			}

			if _, ok := seen[code]; ok {
				merr = multierror.Append(merr, &ParseError{Entry: i, Pair: j, Field: FieldCurrency, Value: pair.Currency, Err: errDuplicateCode})
				continue
			}
			seen[code] = struct{}{}

			rate, err := parseRate(pair.Rate)
			if err != nil {
				merr = multierror.Append(merr, &ParseError{Entry: i, Pair: j, Field: FieldRate, Value: rawValue(pair.Rate), Err: err})
				continue
			}

			snapshot.records = append(snapshot.records, RateRecord{code: code, rate: rate})
		}

		snapshots = append(snapshots, snapshot)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

func parseRate(v interface{}) (float64, error) {
	var rate float64

	switch val := v.(type) {
	case nil:
		return 0, errMissingValue
	case string:
		token := strutil.TrimToken(val)
		if token == "" {
			return 0, errMissingValue
		}

		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return 0, errNotNumeric
		}
		rate = f
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, errNotNumeric
		}
		rate = f
	case float64:
		rate = val
	case float32:
		rate = float64(val)
	case int:
		rate = float64(val)
	case int32:
		rate = float64(val)
	case int64:
		rate = float64(val)
	default:
		return 0, fmt.Errorf("%w: %T", errNotNumeric, v)
	}

	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, errNotFinite
	}

	if rate <= 0 {
		return 0, errNotPositive
	}

	return rate, nil
}

func rawValue(v interface{}) string {
	if v == nil {
		return ""
	}

	return fmt.Sprint(v)
}

func sortNewestFirst(list []DateSnapshot) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].date.After(list[j].date)
	})
}
