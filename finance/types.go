/*
Package finance provides the core value types for the allocation and
settlement engine.

PURPOSE:

	Currency and weight arithmetic must be exact. Binary floating point
	cannot represent 0.1 BRL or a 7-decimal cost weight, so every value
	that participates in allocation or settlement math is held as a
	scaled integer:

	  Money:  int64 centavos (1 BRL = 100)
	  Weight: int64 units of 1e-7 (one "weight unit")

	decimal.Decimal is used only at the boundary: parsing user input,
	formatting output, JSON DTOs. Inside the engine everything is integer
	addition and comparison, which makes exact-sum invariants provable.

KEY TYPES:
  - Money:  a currency amount in integer centavos
  - Weight: a cost-share weight with 7 fractional digits

DESIGN PRINCIPLES:
 1. Exactness: no float64 in any engine computation
 2. Precision at the edge: decimal.Decimal for parse/format only
 3. Locale tolerance: parsers accept both "1234.56" and "1.234,56"

SEE ALSO:
  - time.go: Date and Competency (the temporal value types)
  - errors.go: shared validation errors
*/
package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount in integer centavos
// =============================================================================

// Money is a currency amount in centavos. Money(12345) is R$ 123,45.
type Money int64

// MoneyFromDecimal converts a decimal currency value to centavos,
// rounding half away from zero (banker's rounding would bias the
// allocation remainders).
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

// ParseMoney parses a currency string. Both "1234.56" and the
// Brazilian "1.234,56" form are accepted.
func ParseMoney(s string) (Money, error) {
	d, err := parseLocalized(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d), nil
}

// MustParseMoney is ParseMoney for test fixtures and constants.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -2) }
func (m Money) Float64() float64         { f, _ := m.Decimal().Float64(); return f }
func (m Money) String() string           { return m.Decimal().StringFixed(2) }

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }
func (m Money) IsZero() bool      { return m == 0 }
func (m Money) IsPositive() bool  { return m > 0 }
func (m Money) IsNegative() bool  { return m < 0 }

func (m Money) Min(o Money) Money {
	if m < o {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m > o {
		return m
	}
	return o
}

// =============================================================================
// WEIGHT - Cost-share weight, fixed point with 7 fractional digits
// =============================================================================

// WeightScale is the number of weight units in 1.0.
const WeightScale = 10_000_000

// Weight is a cost-share weight in units of 1e-7. Weight(10_000_000)
// is 1.0000000; Weight(81_000) is 0.0081000.
type Weight int64

// WeightFromDecimal converts a decimal weight, rounding to 7 places.
func WeightFromDecimal(d decimal.Decimal) Weight {
	return Weight(d.Shift(7).Round(0).IntPart())
}

// ParseWeight parses a weight string in either decimal-point or
// Brazilian comma notation ("0.0081" or "0,0081000").
func ParseWeight(s string) (Weight, error) {
	d, err := parseLocalized(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeight, s)
	}
	return WeightFromDecimal(d), nil
}

// MustParseWeight is ParseWeight for test fixtures.
func MustParseWeight(s string) Weight {
	w, err := ParseWeight(s)
	if err != nil {
		panic(err)
	}
	return w
}

func (w Weight) Decimal() decimal.Decimal { return decimal.New(int64(w), -7) }

// String formats with all 7 fractional digits, the canonical form used
// for display-group keying (equal weights must render identically).
func (w Weight) String() string { return w.Decimal().StringFixed(7) }

func (w Weight) Add(o Weight) Weight { return w + o }
func (w Weight) Sub(o Weight) Weight { return w - o }
func (w Weight) IsPositive() bool    { return w > 0 }

// =============================================================================
// LOCALIZED NUMBER PARSING
// =============================================================================

// parseLocalized accepts "1234.56", "1,234.56" is NOT supported; the
// comma form follows Brazilian convention: "." thousands, "," decimal.
func parseLocalized(s string) (decimal.Decimal, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	t = strings.ReplaceAll(t, " ", "")
	if strings.Contains(t, ",") {
		t = strings.ReplaceAll(t, ".", "")
		t = strings.Replace(t, ",", ".", 1)
	}
	return decimal.NewFromString(t)
}
