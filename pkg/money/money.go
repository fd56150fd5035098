// Package money holds peso amounts as integer centavos so order totals
// reconcile exactly.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a count of centavos.
type Amount int64

const centsPerPeso = 100

var hundred = decimal.NewFromInt(centsPerPeso)

// Zero is the empty amount.
const Zero Amount = 0

// Cents builds an Amount from a raw centavo count.
func Cents(c int64) Amount {
	return Amount(c)
}

// Pesos builds an Amount from whole pesos.
func Pesos(p int64) Amount {
	return Amount(p * centsPerPeso)
}

// FromDecimal converts a peso value, rejecting more than two fractional digits.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than two decimal places", d.String())
	}
	return fromCents(cents)
}

// Parse reads a peso string such as "1050.50".
func Parse(value string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return FromDecimal(d)
}

// Cents returns the raw centavo count.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Decimal returns the amount in pesos.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// ErrOutOfRange reports arithmetic whose result does not fit in an Amount.
var ErrOutOfRange = errors.New("amount out of range")

// Times multiplies by a line quantity.
func (a Amount) Times(qty int) (Amount, error) {
	product := decimal.NewFromInt(int64(a)).Mul(decimal.NewFromInt(int64(qty)))
	return fromCents(product)
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a < 0
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// MarshalJSON emits the amount as a peso number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal().String()), nil
}

// UnmarshalJSON accepts a peso number or a quoted peso string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	parsed, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum adds amounts, failing instead of wrapping around.
func Sum(values ...Amount) (Amount, error) {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromInt(int64(v)))
	}
	return fromCents(total)
}

func fromCents(cents decimal.Decimal) (Amount, error) {
	if !cents.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s centavos", ErrOutOfRange, cents.String())
	}
	return Amount(cents.IntPart()), nil
}
