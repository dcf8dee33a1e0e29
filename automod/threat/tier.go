package threat

import (
	"fmt"
)

// Coarse threat level of a link. Tiers are ordered: a higher tier is always more severe.
type Tier int

const (
	Safe Tier = iota
	Caution
	Suspicious
	Danger
)

var tierNames = []string{"safe", "caution", "suspicious", "danger"}

func (t Tier) String() string {
	if t < Safe || t > Danger {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) {
	if t < Safe || t > Danger {
		return nil, fmt.Errorf("invalid tier: %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if s == name {
			return Tier(i), nil
		}
	}
	return Safe, fmt.Errorf("unknown tier: %q", s)
}

// Lower score boundaries for the Caution, Suspicious and Danger tiers. A score exactly on a boundary maps to the higher tier.
type Thresholds struct {
	Caution    float64 `yaml:"caution" json:"caution"`
	Suspicious float64 `yaml:"suspicious" json:"suspicious"`
	Danger     float64 `yaml:"danger" json:"danger"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Caution:    0.2,
		Suspicious: 0.5,
		Danger:     0.8,
	}
}

// Boundaries must be strictly increasing, within (0, 1]
func (th Thresholds) Validate() error {
	if th.Caution <= 0 || th.Danger > 1 {
		return fmt.Errorf("tier thresholds must be within (0, 1]: %+v", th)
	}
	if !(th.Caution < th.Suspicious && th.Suspicious < th.Danger) {
		return fmt.Errorf("tier thresholds must be strictly increasing: %+v", th)
	}
	return nil
}

func (th Thresholds) Tier(score float64) Tier {
	switch {
	case score >= th.Danger:
		return Danger
	case score >= th.Suspicious:
		return Suspicious
	case score >= th.Caution:
		return Caution
	default:
		return Safe
	}
}
