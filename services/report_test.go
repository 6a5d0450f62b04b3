package services

import "testing"

func TestManYenFormatting(t *testing.T) {
	tests := []struct {
		yen  int64
		want string
	}{
		{54_800_000, "5,480"},
		{60_000_000, "6,000"},
		{9_990_000, "999"},
		{0, "0"},
		{-12_340_000, "-1,234"},
	}

	for _, tt := range tests {
		if got := manYen(tt.yen); got != tt.want {
			t.Errorf("manYen(%d) = %q, want %q", tt.yen, got, tt.want)
		}
	}
}

func TestSignedManYen(t *testing.T) {
	if got := signedManYen(50_000_000); got != "+5,000" {
		t.Errorf("positive diff: got %q, want +5,000", got)
	}
	if got := signedManYen(-50_000_000); got != "-5,000" {
		t.Errorf("negative diff: got %q, want -5,000", got)
	}
}
