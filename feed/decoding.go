package feed

import (
	"errors"

	"github.com/robotomize/eurofx"
)

// ErrUnknownFormat is returned for a resource format without a decoder
var ErrUnknownFormat = errors.New("unknown feed format")

var (
	errNoResources       = errors.New("no feed resources configured")
	errDecodeToken       = errors.New("decoding of the markup failed")
	errAttributeNotValid = errors.New("attr is not valid")
	errMissingIterFunc   = errors.New("missing iter function")
)

// decodeFunc parses a raw document in streaming mode and hands every dated
// element to the iter function in document order
type decodeFunc func([]byte, func(entry eurofx.FeedEntry) error) error

// Decode parses a raw ECB document of the given format into feed entries.
// Only markup is checked here; values are validated by eurofx.Table.Ingest
func Decode(format Format, b []byte) ([]eurofx.FeedEntry, error) {
	decode, err := decoderFor(format)
	if err != nil {
		return nil, err
	}

	return collect(b, decode)
}

func collect(b []byte, decode decodeFunc) ([]eurofx.FeedEntry, error) {
	var entries []eurofx.FeedEntry
	if err := decode(b, func(entry eurofx.FeedEntry) error {
		entries = append(entries, entry)
		return nil
	}); err != nil {
		return nil, err
	}

	return entries, nil
}
