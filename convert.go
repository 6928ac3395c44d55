package eurofx

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of decimal places of a displayed conversion
const DisplayPlaces = 3

// Conversion is the result of a cross-rate conversion. Value is the
// unrounded computed value and must be used for any further arithmetic;
// Rounded and Display are for presentation only
type Conversion struct {
	Amount   float64
	FromRate float64
	ToRate   float64
	Value    float64
}

// Rounded returns Value rounded half away from zero to DisplayPlaces
func (c Conversion) Rounded() float64 {
	f, _ := decimal.NewFromFloat(c.Value).Round(DisplayPlaces).Float64()
	return f
}

// Display returns Value formatted with exactly DisplayPlaces decimals
func (c Conversion) Display() string {
	return decimal.NewFromFloat(c.Value).StringFixed(DisplayPlaces)
}

func (c Conversion) String() string {
	return fmt.Sprintf(
		"Amount: %f, FromRate: %f, ToRate: %f, Value: %s",
		c.Amount,
		c.FromRate,
		c.ToRate,
		c.Display(),
	)
}

// Convert computes amount / fromRate * toRate where both rates are quoted
// against the same base currency. A zero amount is valid and yields zero
func Convert(amount, fromRate, toRate float64) (Conversion, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Conversion{}, fmt.Errorf("%w: amount %v is not finite", ErrInvalidAmount, amount)
	}

	if !validRate(fromRate) {
		return Conversion{}, fmt.Errorf("%w: from rate %v must be positive and finite", ErrInvalidAmount, fromRate)
	}

	if !validRate(toRate) {
		return Conversion{}, fmt.Errorf("%w: to rate %v must be positive and finite", ErrInvalidAmount, toRate)
	}

	return Conversion{
		Amount:   amount,
		FromRate: fromRate,
		ToRate:   toRate,
		Value:    amount / fromRate * toRate,
	}, nil
}

// ConvertRecords converts amount of from's currency into to's currency
func ConvertRecords(amount float64, from, to RateRecord) (Conversion, error) {
	return Convert(amount, from.rate, to.rate)
}

func validRate(r float64) bool {
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}
