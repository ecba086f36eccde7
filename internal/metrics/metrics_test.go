package metrics

import "testing"

func TestRegistryGathersRegisteredCollectors(t *testing.T) {
	r := Registry()

	families, err := r.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"backtestcore_orders_submitted_total",
		"backtestcore_orders_rejected_total",
		"backtestcore_fills_processed_total",
		"backtestcore_windows_finalized_total",
		"backtestcore_risk_blocks_total",
	} {
		if !names[want] {
			t.Errorf("Registry().Gather() missing collector %q", want)
		}
	}
}

func TestRegistryDoubleRegisterPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("registering the package-level collectors twice on the same registry should panic")
		}
	}()
	r := Registry()
	r.MustRegister(OrdersSubmitted)
}
