package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
)

func TestDealScoreSignConvention(t *testing.T) {
	tests := []struct {
		name     string
		asking   int64
		adjusted int64
		want     float64
	}{
		{"bargain", 55_000_000, 60_000_000, 8.33},
		{"overpriced", 66_000_000, 60_000_000, -10.0},
		{"fairly priced", 60_000_000, 60_000_000, 0.0},
		{"zero market price", 55_000_000, 0, 0.0},
		{"negative market price", 55_000_000, -100, 0.0},
	}

	for _, tt := range tests {
		got := DealScore(tt.asking, tt.adjusted)
		if got != tt.want {
			t.Errorf("%s: DealScore(%d, %d) = %v, want %v",
				tt.name, tt.asking, tt.adjusted, got, tt.want)
		}
	}
}

func TestRound2Negative(t *testing.T) {
	if got := round2(-8.336); got != -8.34 {
		t.Errorf("round2(-8.336): got %v, want -8.34", got)
	}
	if got := round2(8.333333); got != 8.33 {
		t.Errorf("round2(8.333333): got %v, want 8.33", got)
	}
}

type fakeListingStore struct {
	listings   []*models.Listing
	valuations map[int64]*models.Valuation
	failIDs    map[int64]bool
	fetchErr   error
}

func newFakeListingStore(listings ...*models.Listing) *fakeListingStore {
	return &fakeListingStore{
		listings:   listings,
		valuations: make(map[int64]*models.Valuation),
		failIDs:    make(map[int64]bool),
	}
}

func (f *fakeListingStore) FetchActiveListings() ([]*models.Listing, error) {
	return f.listings, f.fetchErr
}

func (f *fakeListingStore) UpdateValuation(listingID int64, v *models.Valuation) error {
	if f.failIDs[listingID] {
		return errors.New("write conflict")
	}
	f.valuations[listingID] = v
	return nil
}

func newTestScorer(store *fakeListingStore, txs []*models.Transaction) *Scorer {
	logger := newTestLogger()
	market := NewMarketService(logger, txs, testYear)
	adjust := NewAdjustEngine(logger, &FactorConfig{})
	return NewScorer(logger, market, adjust, store, nil)
}

func TestScorerRunCounts(t *testing.T) {
	scorable := testListing()

	noPrice := testListing()
	noPrice.ID = 2
	noPrice.AskingPrice = nil

	noYear := testListing()
	noYear.ID = 3
	noYear.BuildingYear = nil

	noComps := testListing()
	noComps.ID = 4
	noComps.WardName = "足立区"
	noComps.StationName = strPtr("北千住")

	failing := testListing()
	failing.ID = 5

	store := newFakeListingStore(scorable, noPrice, noYear, noComps, failing)
	store.failIDs[5] = true

	txs := comps(25, 1_000_000, "江東区", strPtr("豊洲"), 65, 2010)
	scorer := newTestScorer(store, txs)

	summary, err := scorer.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Updated != 1 {
		t.Errorf("Updated: got %d, want 1", summary.Updated)
	}
	if summary.Skipped != 3 {
		t.Errorf("Skipped: got %d, want 3", summary.Skipped)
	}
	if summary.Errored != 1 {
		t.Errorf("Errored: got %d, want 1", summary.Errored)
	}
	if summary.TierCoverage[1] != 1 {
		t.Errorf("TierCoverage[1]: got %d, want 1", summary.TierCoverage[1])
	}

	// Skipped and errored listings must keep their derived fields untouched.
	for _, id := range []int64{2, 3, 4, 5} {
		if _, written := store.valuations[id]; written {
			t.Errorf("listing %d: valuation written despite skip/error", id)
		}
	}

	v := store.valuations[1]
	if v == nil {
		t.Fatal("listing 1: valuation not written")
	}
	if v.MarketPrice != 60_000_000 || v.AdjustedMarketPrice != 60_000_000 {
		t.Errorf("prices: got (%d, %d), want (60000000, 60000000)", v.MarketPrice, v.AdjustedMarketPrice)
	}
	if v.DealScore != 8.33 {
		t.Errorf("DealScore: got %v, want 8.33", v.DealScore)
	}
	if v.FallbackTier != 1 {
		t.Errorf("FallbackTier: got %d, want 1", v.FallbackTier)
	}
}

func TestScorerRunIsIdempotent(t *testing.T) {
	store := newFakeListingStore(testListing())
	txs := comps(25, 1_000_000, "江東区", strPtr("豊洲"), 65, 2010)
	scorer := newTestScorer(store, txs)

	if _, err := scorer.Run(); err != nil {
		t.Fatal(err)
	}
	first := *store.valuations[1]

	if _, err := scorer.Run(); err != nil {
		t.Fatal(err)
	}
	second := *store.valuations[1]

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-run produced different valuation:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestScorerNeutralConfigMatchesRawScore(t *testing.T) {
	store := newFakeListingStore(testListing())
	txs := comps(25, 1_000_000, "江東区", strPtr("豊洲"), 65, 2010)
	scorer := newTestScorer(store, txs) // empty factor config

	if _, err := scorer.Run(); err != nil {
		t.Fatal(err)
	}

	v := store.valuations[1]
	if v.AdjustedMarketPrice != v.MarketPrice {
		t.Errorf("neutral config: adjusted %d != raw %d", v.AdjustedMarketPrice, v.MarketPrice)
	}
	if want := DealScore(55_000_000, v.MarketPrice); v.DealScore != want {
		t.Errorf("neutral config: score %v != unadjusted score %v", v.DealScore, want)
	}
}

func TestScorerAbortsWhenStoreUnreachable(t *testing.T) {
	store := newFakeListingStore()
	store.fetchErr = errors.New("connection refused")
	scorer := newTestScorer(store, nil)

	if _, err := scorer.Run(); err == nil {
		t.Fatal("expected error when listing snapshot cannot be read")
	}
}
