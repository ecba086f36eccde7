package fixedpoint

import "math/big"

// RatioScale is the fixed-point scale used for RatioValue's internal
// representation, distinct from AmountScale because ratios need more
// headroom below the decimal point than money does.
const RatioScale int64 = 1_000_000_000 // 1e9

var ratioScaleBig = big.NewInt(RatioScale)

// RatioValue is numerator/denominator expressed as a fixed-point fraction.
// There is deliberately no way to construct one with a zero denominator:
// NewRatio returns ok=false instead, so "undefined" is always explicit and
// never collapses to a silent zero or infinity.
type RatioValue struct {
	FixedPoint  *big.Int
	Numerator   Amount
	Denominator Amount
}

// NewRatio computes numerator/denominator scaled by RatioScale. ok is false
// when denominator is zero.
func NewRatio(numerator, denominator Amount) (RatioValue, bool) {
	if denominator.IsZero() {
		return RatioValue{}, false
	}
	fp := new(big.Int).Mul(numerator.bigOrZero(), ratioScaleBig)
	fp.Quo(fp, denominator.bigOrZero())
	return RatioValue{
		FixedPoint:  fp,
		Numerator:   numerator,
		Denominator: denominator,
	}, true
}

func (r RatioValue) Float64() float64 {
	f := new(big.Float).SetInt(r.FixedPoint)
	f.Quo(f, new(big.Float).SetInt64(RatioScale))
	out, _ := f.Float64()
	return out
}

func (r RatioValue) Percentage() float64 {
	return r.Float64() * 100.0
}

// PerWindowValue is a total paired with the count of windows it accrued
// over, with the same "undefined on zero count" discipline as RatioValue.
type PerWindowValue struct {
	Total   Amount
	Windows uint64
	Average Amount
}

// NewPerWindowValue returns ok=false when windows is zero.
func NewPerWindowValue(total Amount, windows uint64) (PerWindowValue, bool) {
	if windows == 0 {
		return PerWindowValue{}, false
	}
	avg := total.DivAmount(FromWhole(int64(windows)))
	return PerWindowValue{Total: total, Windows: windows, Average: avg}, true
}

func (p PerWindowValue) AverageFloat64() float64 { return p.Average.Float64() }
func (p PerWindowValue) TotalFloat64() float64   { return p.Total.Float64() }
