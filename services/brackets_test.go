package services

import "testing"

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestAgeBracketFor(t *testing.T) {
	const currentYear = 2026

	tests := []struct {
		name string
		year *int
		want string // "" means no bracket
	}{
		{"new build", intPtr(2026), "0-10"},
		{"ten years old", intPtr(2016), "0-10"},
		{"eleven years old", intPtr(2015), "11-20"},
		{"twenty years old", intPtr(2006), "11-20"},
		{"thirty years old", intPtr(1996), "21-30"},
		{"old stock", intPtr(1980), "31+"},
		{"very old stock", intPtr(1920), "31+"},
		{"future year", intPtr(2030), ""},
		{"missing year", nil, ""},
	}

	for _, tt := range tests {
		got := AgeBracketFor(tt.year, currentYear)
		if tt.want == "" {
			if got != nil {
				t.Errorf("%s: expected no bracket, got %q", tt.name, got.Label)
			}
			continue
		}
		if got == nil {
			t.Errorf("%s: expected bracket %q, got none", tt.name, tt.want)
			continue
		}
		if got.Label != tt.want {
			t.Errorf("%s: got bracket %q, want %q", tt.name, got.Label, tt.want)
		}
	}
}

func TestAreaBracketFor(t *testing.T) {
	tests := []struct {
		name string
		area *float64
		want string
	}{
		{"below minimum", floatPtr(39.9), ""},
		{"at minimum", floatPtr(40), "40-50"},
		{"fractional boundary", floatPtr(49.99), "40-50"},
		{"band boundary", floatPtr(50), "50-60"},
		{"typical family size", floatPtr(65.5), "60-70"},
		{"large", floatPtr(120), "80+"},
		{"missing area", nil, ""},
	}

	for _, tt := range tests {
		got := AreaBracketFor(tt.area)
		if tt.want == "" {
			if got != nil {
				t.Errorf("%s: expected no bracket, got %q", tt.name, got.Label)
			}
			continue
		}
		if got == nil {
			t.Errorf("%s: expected bracket %q, got none", tt.name, tt.want)
			continue
		}
		if got.Label != tt.want {
			t.Errorf("%s: got bracket %q, want %q", tt.name, got.Label, tt.want)
		}
	}
}

func TestAreaBracketsAreMonotonicAndDisjoint(t *testing.T) {
	for i := 1; i < len(areaBrackets); i++ {
		prev, cur := areaBrackets[i-1], areaBrackets[i]
		if cur.MinArea != prev.MaxArea {
			t.Errorf("gap or overlap between %q and %q", prev.Label, cur.Label)
		}
		if cur.MinArea >= cur.MaxArea {
			t.Errorf("bracket %q is not ascending", cur.Label)
		}
	}
}

func TestAgeBracketYearRange(t *testing.T) {
	b := ageBrackets[1] // 11-20
	minYear, maxYear := b.YearRange(2026)
	if minYear != 2006 || maxYear != 2015 {
		t.Errorf("YearRange: got [%d, %d], want [2006, 2015]", minYear, maxYear)
	}
}
