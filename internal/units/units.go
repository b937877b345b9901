package units

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// SqInPerSqFt is the number of square inches in a square foot.
	SqInPerSqFt = 144.0
	// MMPerInch is the number of millimetres in an inch.
	MMPerInch = 25.4
	// InchesPerFoot is the number of inches in a foot.
	InchesPerFoot = 12.0
	// CuInPerFlOz is the volume of one US fluid ounce in cubic inches.
	CuInPerFlOz = 1.80469
)

// SqInToSqFt converts square inches to square feet.
func SqInToSqFt(sqIn float64) float64 {
	return sqIn / SqInPerSqFt
}

// MMToIn converts millimetres to inches.
func MMToIn(mm float64) float64 {
	return mm / MMPerInch
}

// InToFt converts inches to feet.
func InToFt(in float64) float64 {
	return in / InchesPerFoot
}

// MaxCount caps purchasable quantities.
const MaxCount = math.MaxInt32

// CeilCount rounds a purchasable quantity up to a whole unit. Negative and NaN
// requirements clamp to zero; anything at or past MaxCount, +Inf included,
// clamps to MaxCount.
func CeilCount(x float64) int {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x >= MaxCount {
		return MaxCount
	}
	return int(math.Ceil(x))
}

// RoundTo rounds x to the given number of decimal places.
func RoundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// RoundToHalf rounds x to the nearest 0.5.
func RoundToHalf(x float64) float64 {
	return math.Round(x*2) / 2
}

// ParseFraction parses decimal or fractional inch strings such as "0.125",
// "1/8" or "1 1/2".
func ParseFraction(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), `"`))
	if s == "" {
		return 0, fmt.Errorf("parse fraction: empty value")
	}

	whole := 0.0
	if head, tail, ok := strings.Cut(s, " "); ok {
		w, err := strconv.ParseFloat(head, 64)
		if err != nil {
			return 0, fmt.Errorf("parse fraction %q: %w", s, err)
		}
		whole = w
		s = strings.TrimSpace(tail)
	}

	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse fraction %q: %w", s, err)
		}
		return whole + v, nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("parse fraction numerator %q: %w", num, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, fmt.Errorf("parse fraction denominator %q: %w", den, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("parse fraction %q: zero denominator", s)
	}
	return whole + n/d, nil
}

// Fraction formats inches to the nearest sixteenth, e.g. 0.75 -> "3/4".
func Fraction(in float64) string {
	sixteenths := int(math.Round(in * 16))
	if sixteenths < 0 {
		return "-" + Fraction(-in)
	}
	whole, rem := sixteenths/16, sixteenths%16
	if rem == 0 {
		return strconv.Itoa(whole)
	}
	den := 16
	for rem%2 == 0 {
		rem /= 2
		den /= 2
	}
	if whole == 0 {
		return fmt.Sprintf("%d/%d", rem, den)
	}
	return fmt.Sprintf("%d %d/%d", whole, rem, den)
}

// ToFloat coerces loosely typed values, as found in the project state tree or
// decoded JSON, to a float64. NaN and infinities are rejected.
func ToFloat(v any) (float64, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		f, err := ParseFraction(s)
		return f, err == nil
	default:
		return 0, false
	}
}
