package eurofx

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a malformed feed entry rejected during ingestion
	ErrParse = errors.New("malformed feed entry")
	// ErrEmptyTable is returned by queries against a table with no snapshots
	ErrEmptyTable = errors.New("rate table is empty")
	// ErrCurrencyNotFound is returned when a requested currency code is absent
	ErrCurrencyNotFound = errors.New("currency not found")
	// ErrInvalidAmount is returned for non-finite amounts and non-positive rates
	ErrInvalidAmount = errors.New("invalid amount")
)

// Fields of a feed entry reported by ParseError
const (
	FieldEntries  = "entries"
	FieldDate     = "date"
	FieldRates    = "rates"
	FieldCurrency = "currency"
	FieldRate     = "rate"
)

// ParseError describes a single rejected value of the feed payload.
// Entry is the zero-based index of the feed entry, Pair the index of the
// currency/rate pair inside it. Pair is -1 when the problem concerns the
// entry itself, Entry is -1 when it concerns the whole feed
type ParseError struct {
	Entry int
	Pair  int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	where := fmt.Sprintf("entry %d", e.Entry)
	switch {
	case e.Entry < 0:
		where = "feed"
	case e.Pair >= 0:
		where = fmt.Sprintf("entry %d pair %d", e.Entry, e.Pair)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s %q: %v", ErrParse, where, e.Field, e.Value, e.Err)
	}

	return fmt.Sprintf("%s: %s %s %q", ErrParse, where, e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
