package config

import "testing"

func TestDefaultProfileValidates(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("embedded default fails Validate: %v", err)
	}
}

func TestLoadFallsBackOnMissingPath(t *testing.T) {
	p, err := Load("/nonexistent/path/profile.toml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Container.TickNs != 25 {
		t.Fatalf("TickNs = %d, want 25 (embedded default)", p.Container.TickNs)
	}
}

func TestValidateRejectsNonPositiveTick(t *testing.T) {
	p := &Profile{
		Fusion:    FusionSection{WeakThreshold: 0.15, MaxSplices: 64},
		Container: ContainerSection{TickNs: 0, DefaultRevolutions: 3},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected an error for tick_ns = 0")
	}
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	p := &Profile{
		Fusion:    FusionSection{WeakThreshold: 1.5, MaxSplices: 64},
		Container: ContainerSection{TickNs: 25, DefaultRevolutions: 3},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("expected an error for weak_threshold outside (0,1)")
	}
}
