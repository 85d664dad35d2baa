package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an immutable decimal amount paired with an ISO 4217 currency code.
// Arithmetic across currencies is refused, never converted.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New creates a Money from a decimal string amount like "19.99".
func New(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	cur, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: d, Currency: cur}, nil
}

// MustNew is New for constant inputs; it panics on error.
func MustNew(amount, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents builds a Money from an amount in minor units.
func FromCents(cents int64, currency string) (Money, error) {
	cur, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: decimal.New(cents, -2), Currency: cur}, nil
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	cur, err := normalizeCurrency(currency)
	if err != nil {
		cur = strings.ToUpper(strings.TrimSpace(currency))
	}
	return Money{Amount: decimal.Zero, Currency: cur}
}

// Add returns m + other, failing on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if err := m.assertSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other, failing on currency mismatch.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.assertSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// MulInt returns m multiplied by a whole quantity.
func (m Money) MulInt(n int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(n))), Currency: m.Currency}
}

// Cents returns the amount in minor units, rounded half-up to two decimals.
func (m Money) Cents() int64 {
	return m.Amount.Round(2).Shift(2).IntPart()
}

// Equal reports whether amount and currency both match.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// String renders the amount with two decimal places, e.g. "210.00 USD".
func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

func (m Money) assertSameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return nil
}

func normalizeCurrency(currency string) (string, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if len(cur) != 3 {
		return "", fmt.Errorf("invalid currency code %q", currency)
	}
	return cur, nil
}
