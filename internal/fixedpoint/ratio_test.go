package fixedpoint

import "testing"

func TestNewRatio(t *testing.T) {
	t.Parallel()

	r, ok := NewRatio(FromWhole(1), FromWhole(4))
	if !ok {
		t.Fatal("NewRatio(1, 4) returned ok=false")
	}
	if got, want := r.Float64(), 0.25; got != want {
		t.Errorf("Float64() = %v, want %v", got, want)
	}
	if got, want := r.Percentage(), 25.0; got != want {
		t.Errorf("Percentage() = %v, want %v", got, want)
	}
}

func TestNewRatioZeroDenominatorUndefined(t *testing.T) {
	t.Parallel()

	_, ok := NewRatio(FromWhole(1), Zero())
	if ok {
		t.Error("NewRatio with zero denominator should be undefined (ok=false)")
	}
}

func TestNewRatioNegative(t *testing.T) {
	t.Parallel()

	r, ok := NewRatio(FromWhole(-1), FromWhole(2))
	if !ok {
		t.Fatal("NewRatio(-1, 2) returned ok=false")
	}
	if got, want := r.Float64(), -0.5; got != want {
		t.Errorf("Float64() = %v, want %v", got, want)
	}
}

func TestNewPerWindowValue(t *testing.T) {
	t.Parallel()

	p, ok := NewPerWindowValue(FromWhole(100), 4)
	if !ok {
		t.Fatal("NewPerWindowValue(100, 4) returned ok=false")
	}
	if got, want := p.AverageFloat64(), 25.0; got != want {
		t.Errorf("AverageFloat64() = %v, want %v", got, want)
	}
	if got, want := p.TotalFloat64(), 100.0; got != want {
		t.Errorf("TotalFloat64() = %v, want %v", got, want)
	}
}

func TestNewPerWindowValueZeroWindowsUndefined(t *testing.T) {
	t.Parallel()

	_, ok := NewPerWindowValue(FromWhole(100), 0)
	if ok {
		t.Error("NewPerWindowValue with zero windows should be undefined (ok=false)")
	}
}
