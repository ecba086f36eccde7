// Package fixedpoint implements the backtest core's money and ratio types.
//
// Every economic quantity in the matching, ledger and portfolio packages is
// an Amount: a signed fixed-point integer scaled by AmountScale (8 decimal
// places), backed by math/big so it never silently wraps. Arithmetic is
// saturating by default (Add/Sub/Mul) with a checked variant (AddChecked)
// that reports overflow explicitly, since an overflow in the ledger
// is an accounting violation, not a value to clamp and move on from.
package fixedpoint

import (
	"fmt"
	"math/big"
)

// AmountScale is the number of fixed-point units per whole unit of currency.
const AmountScale int64 = 100_000_000 // 1e8, 8 decimal places

var (
	scaleBig = big.NewInt(AmountScale)
	maxI128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minI128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Amount is a signed 128-bit-range fixed-point number. The zero value is 0.
type Amount struct {
	v *big.Int
}

func fromBig(v *big.Int) Amount {
	return Amount{v: new(big.Int).Set(v)}
}

// Zero returns the additive identity.
func Zero() Amount { return Amount{v: big.NewInt(0)} }

// FromUnits builds an Amount from an integer count of AmountScale units.
func FromUnits(units int64) Amount {
	return Amount{v: big.NewInt(units)}
}

// FromWhole builds an Amount from a whole-number quantity (e.g. 5 dollars).
func FromWhole(whole int64) Amount {
	return Amount{v: new(big.Int).Mul(big.NewInt(whole), scaleBig)}
}

// FromFloat builds an Amount from a float64, rounding to the nearest unit.
// Intended for test fixtures and config boundaries, not for hot-path
// arithmetic where precision loss would be unacceptable.
func FromFloat(f float64) Amount {
	scaled := f * float64(AmountScale)
	if scaled < 0 {
		scaled -= 0.5
	} else {
		scaled += 0.5
	}
	r := big.NewFloat(scaled)
	i, _ := r.Int(nil)
	return Amount{v: i}
}

func (a Amount) bigOrZero() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// Units returns the raw fixed-point integer as an int64, panicking if it
// does not fit — callers on a path where that can happen should use
// Big() instead.
func (a Amount) Units() int64 {
	v := a.bigOrZero()
	if !v.IsInt64() {
		panic("fixedpoint: Amount does not fit in int64 units")
	}
	return v.Int64()
}

// Big exposes the underlying big.Int for callers (e.g. persistence) that
// need the full-precision value.
func (a Amount) Big() *big.Int {
	return new(big.Int).Set(a.bigOrZero())
}

func (a Amount) Float64() float64 {
	f := new(big.Float).SetInt(a.bigOrZero())
	f.Quo(f, new(big.Float).SetInt64(AmountScale))
	out, _ := f.Float64()
	return out
}

func clamp(v *big.Int) Amount {
	if v.Cmp(maxI128) > 0 {
		return Amount{v: new(big.Int).Set(maxI128)}
	}
	if v.Cmp(minI128) < 0 {
		return Amount{v: new(big.Int).Set(minI128)}
	}
	return Amount{v: v}
}

// Add returns a+b, saturating at the int128 range.
func (a Amount) Add(b Amount) Amount {
	return clamp(new(big.Int).Add(a.bigOrZero(), b.bigOrZero()))
}

// Sub returns a-b, saturating at the int128 range.
func (a Amount) Sub(b Amount) Amount {
	return clamp(new(big.Int).Sub(a.bigOrZero(), b.bigOrZero()))
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return clamp(new(big.Int).Neg(a.bigOrZero()))
}

// MulAmount multiplies two fixed-point Amounts, rescaling the product back
// down by AmountScale.
func (a Amount) MulAmount(b Amount) Amount {
	prod := new(big.Int).Mul(a.bigOrZero(), b.bigOrZero())
	prod.Quo(prod, scaleBig)
	return clamp(prod)
}

// MulInt scales a by a plain integer multiplier (e.g. a quantity of ticks).
func (a Amount) MulInt(n int64) Amount {
	return clamp(new(big.Int).Mul(a.bigOrZero(), big.NewInt(n)))
}

// DivAmount divides a by b, both fixed-point, rescaling. Panics on division
// by zero — callers dividing by a quantity that can legitimately be zero
// must check first, exactly as RatioValue.New does for ratios.
func (a Amount) DivAmount(b Amount) Amount {
	if b.IsZero() {
		panic("fixedpoint: division by zero Amount")
	}
	num := new(big.Int).Mul(a.bigOrZero(), scaleBig)
	num.Quo(num, b.bigOrZero())
	return clamp(num)
}

// AddChecked returns a+b and false if the true sum would overflow the
// int128 range (rather than silently saturating).
func (a Amount) AddChecked(b Amount) (Amount, bool) {
	sum := new(big.Int).Add(a.bigOrZero(), b.bigOrZero())
	if sum.Cmp(maxI128) > 0 || sum.Cmp(minI128) < 0 {
		return Amount{}, false
	}
	return Amount{v: sum}, true
}

func (a Amount) IsZero() bool { return a.bigOrZero().Sign() == 0 }
func (a Amount) IsNeg() bool  { return a.bigOrZero().Sign() < 0 }
func (a Amount) IsPos() bool  { return a.bigOrZero().Sign() > 0 }

func (a Amount) Cmp(b Amount) int { return a.bigOrZero().Cmp(b.bigOrZero()) }

func (a Amount) Abs() Amount {
	if a.IsNeg() {
		return a.Neg()
	}
	return a
}

func (a Amount) String() string {
	return fmt.Sprintf("%.8f", a.Float64())
}
