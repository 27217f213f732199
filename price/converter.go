// Package price converts between the human-facing currency and the
// ledger's native minor unit at a fixed exchange rate.
package price

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

const (
	// DefaultRatePerToken is the fixed number of human currency units per
	// whole ledger token.
	DefaultRatePerToken = 4000
	// DefaultMinorPerToken is the number of minor units in a whole token.
	DefaultMinorPerToken = 1_000_000_000
)

// ErrInvalidPrice signals an amount that cannot be represented as a
// positive minor-unit price. It is returned before any network call.
var ErrInvalidPrice = errors.New("price: invalid price")

// Converter performs fixed-rate conversion between the human currency and
// the ledger minor unit. The zero value is not usable; construct with
// NewConverter or Default.
//
// Round trips are lossy by design: ToHuman(ToMinorUnit(x)) differs from x
// by less than one minor-unit's worth of the human currency, because the
// minor unit has finite precision. This is accepted rounding, not a defect.
type Converter struct {
	ratePerToken  uint64
	minorPerToken uint64
}

// NewConverter builds a converter with the given human-currency-per-token
// rate and minor-units-per-token scale. Both must be positive.
func NewConverter(ratePerToken, minorPerToken uint64) (Converter, error) {
	if ratePerToken == 0 || minorPerToken == 0 {
		return Converter{}, fmt.Errorf("price: rate and scale must be positive (rate=%d, scale=%d)", ratePerToken, minorPerToken)
	}
	return Converter{ratePerToken: ratePerToken, minorPerToken: minorPerToken}, nil
}

// Default returns a converter at the standard rate and scale.
func Default() Converter {
	c, err := NewConverter(DefaultRatePerToken, DefaultMinorPerToken)
	if err != nil {
		panic(err)
	}
	return c
}

// ToMinorUnit converts a human currency amount to minor units, rounding
// half-up to the nearest minor unit. Non-finite, non-positive, or
// overflowing amounts fail with ErrInvalidPrice.
func (c Converter) ToMinorUnit(human float64) (uint64, error) {
	if math.IsNaN(human) || math.IsInf(human, 0) || human <= 0 {
		return 0, fmt.Errorf("%w: amount %v", ErrInvalidPrice, human)
	}
	r := new(big.Rat).SetFloat64(human)
	if r == nil {
		return 0, fmt.Errorf("%w: amount %v", ErrInvalidPrice, human)
	}
	return c.toMinor(r)
}

// ParseToMinorUnit converts a decimal string (e.g. a form value like
// "5000" or "1250.50") to minor units under the same rules as ToMinorUnit.
func (c Converter) ParseToMinorUnit(s string) (uint64, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalidPrice, s)
	}
	if r.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalidPrice, s)
	}
	return c.toMinor(r)
}

func (c Converter) toMinor(human *big.Rat) (uint64, error) {
	// minor = human * minorPerToken / ratePerToken, rounded half-up.
	v := new(big.Rat).Mul(human, new(big.Rat).SetUint64(c.minorPerToken))
	v.Quo(v, new(big.Rat).SetUint64(c.ratePerToken))

	num := new(big.Int).Mul(v.Num(), big.NewInt(2))
	num.Add(num, v.Denom())
	den := new(big.Int).Mul(v.Denom(), big.NewInt(2))
	minor := new(big.Int).Quo(num, den)

	if minor.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount %s rounds to zero minor units", ErrInvalidPrice, human.FloatString(12))
	}
	if !minor.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s overflows the minor unit", ErrInvalidPrice, human.FloatString(12))
	}
	return minor.Uint64(), nil
}

// ToHuman converts a minor-unit price back to the human currency.
func (c Converter) ToHuman(minor uint64) float64 {
	r := new(big.Rat).SetUint64(minor)
	r.Mul(r, new(big.Rat).SetUint64(c.ratePerToken))
	r.Quo(r, new(big.Rat).SetUint64(c.minorPerToken))
	f, _ := r.Float64()
	return f
}

// MinorUnitWorth is the human-currency value of a single minor unit, the
// bound on round-trip error.
func (c Converter) MinorUnitWorth() float64 {
	r := new(big.Rat).SetUint64(c.ratePerToken)
	r.Quo(r, new(big.Rat).SetUint64(c.minorPerToken))
	f, _ := r.Float64()
	return f
}
