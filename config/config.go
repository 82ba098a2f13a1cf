// Package config loads the preservation profile: fusion, container, and
// forensic settings, following the embed-then-override pattern the
// original drive-profile loader used, generalised so callers can run
// independent profiles concurrently instead of sharing one global drive.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultConfigData []byte

// Profile is the full preservation configuration.
type Profile struct {
	Fusion    FusionSection    `toml:"fusion"`
	Container ContainerSection `toml:"container"`
	Forensic  ForensicSection  `toml:"forensic"`
}

// FusionSection tunes the flux fusion kernel.
type FusionSection struct {
	WeakThreshold float64 `toml:"weak_threshold"`
	MaxSplices    int     `toml:"max_splices"`
}

// ContainerSection tunes UFF container creation.
type ContainerSection struct {
	TickNs             int `toml:"tick_ns"`
	DefaultRevolutions int `toml:"default_revolutions"`
}

// ForensicSection carries the examiner metadata written into the UFF
// forensic block.
type ForensicSection struct {
	Examiner   string `toml:"examiner"`
	CaseNumber string `toml:"case_number"`
}

// Default returns the embedded default profile.
func Default() (*Profile, error) {
	var p Profile
	if _, err := toml.Decode(string(defaultConfigData), &p); err != nil {
		return nil, fmt.Errorf("config: decoding embedded default: %w", err)
	}
	return &p, nil
}

// Load reads a profile from path, falling back to the embedded default
// when path is empty or the file does not exist.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default()
	}

	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate rejects non-positive tick resolution and out-of-range
// thresholds.
func (p *Profile) Validate() error {
	if p.Container.TickNs <= 0 {
		return fmt.Errorf("config: container.tick_ns must be positive, got %d", p.Container.TickNs)
	}
	if p.Fusion.WeakThreshold <= 0 || p.Fusion.WeakThreshold >= 1 {
		return fmt.Errorf("config: fusion.weak_threshold must be in (0,1), got %v", p.Fusion.WeakThreshold)
	}
	if p.Fusion.MaxSplices <= 0 {
		return fmt.Errorf("config: fusion.max_splices must be positive, got %d", p.Fusion.MaxSplices)
	}
	if p.Container.DefaultRevolutions <= 0 {
		return fmt.Errorf("config: container.default_revolutions must be positive, got %d", p.Container.DefaultRevolutions)
	}
	return nil
}
