package fixedpoint

import (
	"math/big"
	"testing"
)

func TestFromWholeAndUnits(t *testing.T) {
	t.Parallel()

	a := FromWhole(5)
	if got, want := a.Units(), int64(5*AmountScale); got != want {
		t.Errorf("FromWhole(5).Units() = %d, want %d", got, want)
	}
}

func TestFromFloatRounds(t *testing.T) {
	t.Parallel()

	a := FromFloat(1.5)
	want := FromUnits(150_000_000)
	if a.Cmp(want) != 0 {
		t.Errorf("FromFloat(1.5) = %s, want %s", a, want)
	}
}

func TestAddSub(t *testing.T) {
	t.Parallel()

	a := FromWhole(10)
	b := FromWhole(3)

	if got, want := a.Add(b), FromWhole(13); got.Cmp(want) != 0 {
		t.Errorf("10+3 = %s, want %s", got, want)
	}
	if got, want := a.Sub(b), FromWhole(7); got.Cmp(want) != 0 {
		t.Errorf("10-3 = %s, want %s", got, want)
	}
}

func TestMulAmount(t *testing.T) {
	t.Parallel()

	price := FromFloat(0.65)
	size := FromWhole(100)

	got := price.MulAmount(size)
	want := FromFloat(65.0)
	if got.Cmp(want) != 0 {
		t.Errorf("0.65 * 100 = %s, want %s", got, want)
	}
}

func TestMulInt(t *testing.T) {
	t.Parallel()

	a := FromUnits(7)
	got := a.MulInt(3)
	want := FromUnits(21)
	if got.Cmp(want) != 0 {
		t.Errorf("7*3 = %s, want %s", got, want)
	}
}

func TestDivAmount(t *testing.T) {
	t.Parallel()

	got := FromWhole(10).DivAmount(FromWhole(4))
	want := FromFloat(2.5)
	if got.Cmp(want) != 0 {
		t.Errorf("10/4 = %s, want %s", got, want)
	}
}

func TestDivAmountByZeroPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Error("DivAmount by zero did not panic")
		}
	}()
	FromWhole(1).DivAmount(Zero())
}

func TestNegAbs(t *testing.T) {
	t.Parallel()

	a := FromWhole(4)
	if got := a.Neg(); !got.IsNeg() {
		t.Errorf("Neg(4) = %s, want negative", got)
	}
	if got := a.Neg().Abs(); got.Cmp(a) != 0 {
		t.Errorf("Abs(Neg(4)) = %s, want %s", got, a)
	}
}

func TestSignPredicates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		v                  Amount
		zero, neg, pos bool
	}{
		{Zero(), true, false, false},
		{FromWhole(1), false, false, true},
		{FromWhole(-1), false, true, false},
	}
	for _, c := range cases {
		if got := c.v.IsZero(); got != c.zero {
			t.Errorf("%s.IsZero() = %v, want %v", c.v, got, c.zero)
		}
		if got := c.v.IsNeg(); got != c.neg {
			t.Errorf("%s.IsNeg() = %v, want %v", c.v, got, c.neg)
		}
		if got := c.v.IsPos(); got != c.pos {
			t.Errorf("%s.IsPos() = %v, want %v", c.v, got, c.pos)
		}
	}
}

func TestAddChecked(t *testing.T) {
	t.Parallel()

	if _, ok := FromWhole(1).AddChecked(FromWhole(2)); !ok {
		t.Error("AddChecked(1, 2) reported overflow for a trivial sum")
	}

	huge := fromBig(new(big.Int).Set(maxI128))
	if _, ok := huge.AddChecked(FromWhole(1)); ok {
		t.Error("AddChecked at maxI128 + 1 should report overflow")
	}
}

func TestAddSaturates(t *testing.T) {
	t.Parallel()

	huge := fromBig(new(big.Int).Set(maxI128))
	got := huge.Add(FromWhole(1))
	if got.Big().Cmp(maxI128) != 0 {
		t.Errorf("Add saturation at max = %s, want clamp to maxI128", got)
	}
}

func TestBigRoundTrip(t *testing.T) {
	t.Parallel()

	a := FromWhole(42)
	got := fromBig(a.Big())
	if got.Cmp(a) != 0 {
		t.Errorf("fromBig(a.Big()) = %s, want %s", got, a)
	}
}

func TestCmp(t *testing.T) {
	t.Parallel()

	if FromWhole(1).Cmp(FromWhole(2)) >= 0 {
		t.Error("1.Cmp(2) should be negative")
	}
	if FromWhole(2).Cmp(FromWhole(1)) <= 0 {
		t.Error("2.Cmp(1) should be positive")
	}
	if FromWhole(1).Cmp(FromWhole(1)) != 0 {
		t.Error("1.Cmp(1) should be zero")
	}
}
