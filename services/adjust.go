package services

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
	"github.com/noguchisakihand-source/apartment-dashboard/utils"
)

// neutralFactor applies when a listing attribute is absent or no
// configured rule matches it.
const neutralFactor = 1.0

// FactorRule is one adjustment rule. Numeric rules carry an inclusive
// [Min, Max] range; categorical rules carry an exact Value. Rules are
// scanned in order and the first match wins.
type FactorRule struct {
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
	Value  *string  `yaml:"value"`
	Factor float64  `yaml:"factor"`
}

// FactorConfig maps each adjustment dimension to its ordered rule list.
// An empty list leaves the dimension at the neutral multiplier.
type FactorConfig struct {
	WalkMinutes  []FactorRule `yaml:"walk_minutes"`
	Floor        []FactorRule `yaml:"floor"`
	Direction    []FactorRule `yaml:"direction"`
	Area         []FactorRule `yaml:"area"`
	TotalUnits   []FactorRule `yaml:"total_units"`
	TotalFloors  []FactorRule `yaml:"total_floors"`
	PetAllowed   []FactorRule `yaml:"pet_allowed"`
	GoodView     []FactorRule `yaml:"good_view"`
	GoodSunlight []FactorRule `yaml:"good_sunlight"`
}

// LoadFactorConfig reads the adjustment rules from a YAML file. A
// missing file is not an error: scoring degrades to neutral multipliers
// on every dimension.
func LoadFactorConfig(path string) (*FactorConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &FactorConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("factors: read %q: %w", path, err)
	}

	cfg := &FactorConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("factors: parse %q: %w", path, err)
	}
	return cfg, nil
}

// AdjustEngine turns a raw market price into a listing-specific
// adjusted price by multiplying nine independent per-dimension factors.
type AdjustEngine struct {
	logger *utils.Logger
	cfg    *FactorConfig
}

// NewAdjustEngine creates an AdjustEngine. A nil config behaves like an
// empty one.
func NewAdjustEngine(logger *utils.Logger, cfg *FactorConfig) *AdjustEngine {
	if cfg == nil {
		cfg = &FactorConfig{}
	}
	return &AdjustEngine{logger: logger, cfg: cfg}
}

// Adjust builds the valuation for a resolved estimate: the nine
// per-dimension multipliers, kept individually for audit, and the
// adjusted market price rounded to whole yen.
func (e *AdjustEngine) Adjust(l *models.Listing, est Estimate) *models.Valuation {
	v := &models.Valuation{
		MarketPrice:  est.MarketPrice,
		SampleCount:  est.SampleCount,
		FallbackTier: est.Tier,

		WalkFactor:      rangeFactor(e.cfg.WalkMinutes, intValue(l.WalkMinutes)),
		FloorFactor:     rangeFactor(e.cfg.Floor, intValue(l.Floor)),
		DirectionFactor: valueFactor(e.cfg.Direction, l.Direction),
		AreaFactor:      rangeFactor(e.cfg.Area, l.Area),
		UnitsFactor:     rangeFactor(e.cfg.TotalUnits, intValue(l.TotalUnits)),
		FloorsFactor:    rangeFactor(e.cfg.TotalFloors, intValue(l.TotalFloors)),
		PetFactor:       valueFactor(e.cfg.PetAllowed, boolValue(l.PetAllowed)),
		ViewFactor:      valueFactor(e.cfg.GoodView, boolValue(l.GoodView)),
		SunlightFactor:  valueFactor(e.cfg.GoodSunlight, boolValue(l.GoodSunlight)),
	}

	v.AdjustedMarketPrice = int64(math.Round(float64(est.MarketPrice) * v.CombinedFactor()))
	return v
}

// rangeFactor scans numeric rules in order and returns the factor of
// the first rule whose inclusive range contains the value. Nil bounds
// are unbounded on that side.
func rangeFactor(rules []FactorRule, value *float64) float64 {
	if value == nil {
		return neutralFactor
	}
	for _, r := range rules {
		if r.Value != nil {
			continue
		}
		if r.Min != nil && *value < *r.Min {
			continue
		}
		if r.Max != nil && *value > *r.Max {
			continue
		}
		return r.Factor
	}
	return neutralFactor
}

// valueFactor scans categorical rules in order and returns the factor
// of the first exact value match.
func valueFactor(rules []FactorRule, value *string) float64 {
	if value == nil {
		return neutralFactor
	}
	for _, r := range rules {
		if r.Value != nil && *r.Value == *value {
			return r.Factor
		}
	}
	return neutralFactor
}

func intValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func boolValue(v *bool) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatBool(*v)
	return &s
}
