package eurofx

import "fmt"

// Point is a single chart sample: Timestamp is the snapshot date in Unix
// seconds, Value the rate on that date
type Point struct {
	Timestamp int64
	Value     float64
}

// BuildSeries walks the table oldest-first and emits one point per snapshot
// that lists code. Snapshots without the currency are skipped; if no snapshot
// lists it at all the result is ErrCurrencyNotFound
func BuildSeries(t *Table, code string) ([]Point, error) {
	snapshots := t.Snapshots()

	points := make([]Point, 0, len(snapshots))
	for i := len(snapshots) - 1; i >= 0; i-- {
		r, err := snapshots[i].Lookup(code)
		if err != nil {
			continue
		}

		points = append(points, Point{
			Timestamp: snapshots[i].date.Unix(),
			Value:     r.rate,
		})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %q in any snapshot", ErrCurrencyNotFound, code)
	}

	return points, nil
}
