package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
)

func rangeRule(min, max, factor float64) FactorRule {
	return FactorRule{Min: &min, Max: &max, Factor: factor}
}

func valueRule(value string, factor float64) FactorRule {
	return FactorRule{Value: &value, Factor: factor}
}

func fullListing() *models.Listing {
	l := testListing()
	l.WalkMinutes = intPtr(4)
	l.Floor = intPtr(8)
	l.Direction = strPtr("南")
	l.TotalUnits = intPtr(150)
	l.TotalFloors = intPtr(20)
	l.PetAllowed = boolPtr(true)
	l.GoodView = boolPtr(false)
	l.GoodSunlight = boolPtr(true)
	return l
}

func TestAdjustEmptyConfigIsNeutral(t *testing.T) {
	engine := NewAdjustEngine(newTestLogger(), &FactorConfig{})
	est := Estimate{MarketPrice: 60_000_000, SampleCount: 25, Tier: 1}

	v := engine.Adjust(fullListing(), est)

	if v.AdjustedMarketPrice != est.MarketPrice {
		t.Errorf("AdjustedMarketPrice: got %d, want %d", v.AdjustedMarketPrice, est.MarketPrice)
	}
	if cf := v.CombinedFactor(); cf != 1.0 {
		t.Errorf("CombinedFactor: got %v, want 1.0", cf)
	}
}

func TestAdjustNilConfigIsNeutral(t *testing.T) {
	engine := NewAdjustEngine(newTestLogger(), nil)
	v := engine.Adjust(fullListing(), Estimate{MarketPrice: 1_000_000, Tier: 4})
	if v.AdjustedMarketPrice != 1_000_000 {
		t.Errorf("AdjustedMarketPrice: got %d, want 1000000", v.AdjustedMarketPrice)
	}
}

func TestAdjustMultipliesAllDimensions(t *testing.T) {
	cfg := &FactorConfig{
		WalkMinutes:  []FactorRule{rangeRule(0, 5, 1.05)},
		Floor:        []FactorRule{rangeRule(6, 10, 1.02)},
		Direction:    []FactorRule{valueRule("南", 1.03)},
		PetAllowed:   []FactorRule{valueRule("true", 1.02)},
		GoodView:     []FactorRule{valueRule("true", 1.10)}, // listing has false — no match
		GoodSunlight: []FactorRule{valueRule("true", 1.02)},
	}
	engine := NewAdjustEngine(newTestLogger(), cfg)

	v := engine.Adjust(fullListing(), Estimate{MarketPrice: 10_000_000, SampleCount: 25, Tier: 1})

	if v.WalkFactor != 1.05 || v.FloorFactor != 1.02 || v.DirectionFactor != 1.03 {
		t.Errorf("factors: walk=%v floor=%v direction=%v", v.WalkFactor, v.FloorFactor, v.DirectionFactor)
	}
	if v.ViewFactor != 1.0 {
		t.Errorf("ViewFactor: got %v, want neutral 1.0 for unmatched value", v.ViewFactor)
	}
	// area/units/floors dimensions unconfigured
	if v.AreaFactor != 1.0 || v.UnitsFactor != 1.0 || v.FloorsFactor != 1.0 {
		t.Errorf("unconfigured dimensions must stay neutral")
	}

	want := int64(11_476_965) // 10,000,000 × 1.05 × 1.02 × 1.03 × 1.02 × 1.02, rounded
	if v.AdjustedMarketPrice != want {
		t.Errorf("AdjustedMarketPrice: got %d, want %d", v.AdjustedMarketPrice, want)
	}
}

func TestRangeFactorFirstMatchWins(t *testing.T) {
	rules := []FactorRule{
		rangeRule(0, 10, 1.05),
		rangeRule(5, 15, 0.90),
	}
	if got := rangeFactor(rules, floatPtr(7)); got != 1.05 {
		t.Errorf("overlapping rules: got %v, want first match 1.05", got)
	}
}

func TestRangeFactorBoundsInclusive(t *testing.T) {
	rules := []FactorRule{rangeRule(5, 10, 1.05)}

	tests := []struct {
		value *float64
		want  float64
	}{
		{floatPtr(5), 1.05},
		{floatPtr(10), 1.05},
		{floatPtr(4.99), 1.0},
		{floatPtr(10.01), 1.0},
		{nil, 1.0},
	}
	for _, tt := range tests {
		if got := rangeFactor(rules, tt.value); got != tt.want {
			t.Errorf("rangeFactor(%v): got %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestValueFactorExactMatch(t *testing.T) {
	rules := []FactorRule{valueRule("南", 1.03), valueRule("北", 0.97)}

	if got := valueFactor(rules, strPtr("北")); got != 0.97 {
		t.Errorf("got %v, want 0.97", got)
	}
	if got := valueFactor(rules, strPtr("南東")); got != 1.0 {
		t.Errorf("no exact match: got %v, want neutral 1.0", got)
	}
	if got := valueFactor(rules, nil); got != 1.0 {
		t.Errorf("absent value: got %v, want neutral 1.0", got)
	}
}

func TestLoadFactorConfigMissingFileIsEmpty(t *testing.T) {
	cfg, err := LoadFactorConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
	if len(cfg.WalkMinutes) != 0 {
		t.Errorf("expected empty config")
	}
}

func TestLoadFactorConfigParsesRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factors.yml")
	content := `
walk_minutes:
  - { min: 0, max: 5, factor: 1.05 }
direction:
  - { value: "南", factor: 1.03 }
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFactorConfig(path)
	if err != nil {
		t.Fatalf("LoadFactorConfig: %v", err)
	}
	if len(cfg.WalkMinutes) != 1 || cfg.WalkMinutes[0].Factor != 1.05 {
		t.Errorf("walk_minutes rules not parsed: %+v", cfg.WalkMinutes)
	}
	if len(cfg.Direction) != 1 || *cfg.Direction[0].Value != "南" || cfg.Direction[0].Factor != 1.03 {
		t.Errorf("direction rules not parsed: %+v", cfg.Direction)
	}
}
