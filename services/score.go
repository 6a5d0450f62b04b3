package services

import (
	"fmt"
	"math"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
	"github.com/noguchisakihand-source/apartment-dashboard/storage"
	"github.com/noguchisakihand-source/apartment-dashboard/utils"
)

// DealScore converts an asking price and an adjusted market price into
// the bargain percentage: positive means priced below fair value,
// negative means priced above it. A non-positive market price yields
// 0.0 rather than a division error.
func DealScore(askingPrice, adjustedMarketPrice int64) float64 {
	if adjustedMarketPrice <= 0 {
		return 0.0
	}
	score := float64(adjustedMarketPrice-askingPrice) / float64(adjustedMarketPrice) * 100
	return round2(score)
}

// Scorer recomputes the derived valuation fields for every active
// listing. One run reads a single snapshot of transactions and factor
// configuration, so re-running with unchanged inputs reproduces
// identical outputs.
type Scorer struct {
	logger *utils.Logger
	market *MarketService
	adjust *AdjustEngine
	store  storage.ListingStore
	retry  *utils.RetryConfig
}

// NewScorer wires a scoring run. retry guards the per-listing
// valuation write; it may be nil to write without retries.
func NewScorer(logger *utils.Logger, market *MarketService, adjust *AdjustEngine,
	store storage.ListingStore, retry *utils.RetryConfig) *Scorer {
	return &Scorer{
		logger: logger,
		market: market,
		adjust: adjust,
		store:  store,
		retry:  retry,
	}
}

// Run scores all active listings. Listings missing asking price, floor
// area or building year — or resolving to no comparable tier — are
// skipped and keep whatever valuation they had. Write failures are
// counted as errored and the run continues; only a failure to read the
// listing snapshot aborts the run.
func (s *Scorer) Run() (*models.ScoreRunSummary, error) {
	listings, err := s.store.FetchActiveListings()
	if err != nil {
		return nil, fmt.Errorf("scorer: fetch active listings: %w", err)
	}

	summary := &models.ScoreRunSummary{TierCoverage: make(map[int]int)}

	for _, l := range listings {
		if l.AskingPrice == nil || l.Area == nil || l.BuildingYear == nil {
			s.logger.Debug("[score] listing %d skipped: missing price, area or year", l.ID)
			summary.Skipped++
			continue
		}

		est := s.market.Resolve(l)
		if !est.Resolved() {
			s.logger.Debug("[score] listing %d skipped: no comparable estimate (n=%d)",
				l.ID, est.SampleCount)
			summary.Skipped++
			continue
		}

		v := s.adjust.Adjust(l, est)
		v.DealScore = DealScore(*l.AskingPrice, v.AdjustedMarketPrice)

		if err := s.persist(l.ID, v); err != nil {
			s.logger.Error("[score] listing %d update failed: %v", l.ID, err)
			summary.Errored++
			continue
		}

		summary.Updated++
		summary.TierCoverage[est.Tier]++
	}

	return summary, nil
}

func (s *Scorer) persist(listingID int64, v *models.Valuation) error {
	if s.retry == nil {
		return s.store.UpdateValuation(listingID, v)
	}
	return s.retry.Do("valuation update", func() error {
		return s.store.UpdateValuation(listingID, v)
	})
}

// round2 rounds to two decimal places, away from zero on ties, so
// negative scores round symmetrically to positive ones.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
