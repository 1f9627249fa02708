package judge

import (
	"fmt"
	"math"
	"strings"
)

// Movement identifies the exercise being judged.
type Movement int

// Supported movements. The zero value is deliberately invalid.
const (
	AirSquat Movement = iota + 1
	Thruster
)

// String returns the display name of the movement.
func (m Movement) String() string {
	if p, ok := policies[m]; ok {
		return p.Name
	}
	return fmt.Sprintf("movement(%d)", int(m))
}

// Slug returns the identifier used in flags, config files and storage.
func (m Movement) Slug() string {
	if p, ok := policies[m]; ok {
		return p.Slug
	}
	return ""
}

// ParseMovement resolves a movement from its slug or display name.
func ParseMovement(value string) (Movement, error) {
	key := normalizeMovementName(value)
	for m, p := range policies {
		if key == normalizeMovementName(p.Slug) || key == normalizeMovementName(p.Name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown movement %q (available: %s)", ErrInvalidConfig, value, strings.Join(movementSlugs(), ", "))
}

func normalizeMovementName(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(value)
}

func movementSlugs() []string {
	movements := Movements()
	out := make([]string, len(movements))
	for i, m := range movements {
		out[i] = m.Slug()
	}
	return out
}

// Threshold limits and defaults, in degrees.
const (
	DefaultDepthThreshold     = 85.0
	DefaultExtensionThreshold = 165.0
	MinDepthThreshold         = 70.0
	MaxDepthThreshold         = 100.0
	MinExtensionThreshold     = 150.0
	MaxExtensionThreshold     = 180.0
)

// Config is the immutable standard a session is judged against.
type Config struct {
	Movement           Movement
	DepthThreshold     float64
	ExtensionThreshold float64
}

// DefaultConfig returns the standard thresholds for a movement.
func DefaultConfig(m Movement) Config {
	return Config{
		Movement:           m,
		DepthThreshold:     DefaultDepthThreshold,
		ExtensionThreshold: DefaultExtensionThreshold,
	}
}

// Validate checks the movement and threshold ranges.
func (c Config) Validate() error {
	if _, ok := policies[c.Movement]; !ok {
		return fmt.Errorf("%w: unknown movement %d", ErrInvalidConfig, int(c.Movement))
	}
	if math.IsNaN(c.DepthThreshold) || c.DepthThreshold < MinDepthThreshold || c.DepthThreshold > MaxDepthThreshold {
		return fmt.Errorf("%w: depth threshold %.1f must be between %.0f and %.0f", ErrInvalidConfig, c.DepthThreshold, MinDepthThreshold, MaxDepthThreshold)
	}
	if math.IsNaN(c.ExtensionThreshold) || c.ExtensionThreshold < MinExtensionThreshold || c.ExtensionThreshold > MaxExtensionThreshold {
		return fmt.Errorf("%w: extension threshold %.1f must be between %.0f and %.0f", ErrInvalidConfig, c.ExtensionThreshold, MinExtensionThreshold, MaxExtensionThreshold)
	}
	return nil
}
