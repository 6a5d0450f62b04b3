package services

import (
	"math"
	"sort"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
	"github.com/noguchisakihand-source/apartment-dashboard/utils"
)

// TierUnresolved marks a listing for which no comparable-sales tier
// produced enough samples. Lower tier numbers are more specific.
const TierUnresolved = 5

// fallbackTiers are evaluated strictly in order; the first tier whose
// sample count meets its minimum wins, even when a later tier would
// have more samples. Specificity beats statistical power.
var fallbackTiers = []struct {
	rank           int
	minSamples     int
	useStation     bool
	useAreaBracket bool
}{
	{rank: 1, minSamples: 20, useStation: true, useAreaBracket: true},
	{rank: 2, minSamples: 15, useStation: true, useAreaBracket: false},
	{rank: 3, minSamples: 10, useStation: false, useAreaBracket: true},
	{rank: 4, minSamples: 5, useStation: false, useAreaBracket: false},
}

// CompQuery selects the comparable transactions for one aggregation
// bucket. An empty WardName leaves the ward unconstrained; station
// catchments cross ward boundaries, so station tiers match on the
// station alone.
type CompQuery struct {
	WardName    string
	StationName *string
	Age         *AgeBracket
	Area        *AreaBracket
}

// Estimate is the outcome of the fallback resolution for one listing.
// MarketPrice is only meaningful when Tier < TierUnresolved.
type Estimate struct {
	MarketPrice int64
	SampleCount int
	Tier        int
}

// Resolved reports whether a comparable-sales estimate exists.
func (e Estimate) Resolved() bool {
	return e.Tier < TierUnresolved
}

// MarketService estimates fair market prices from a snapshot of
// completed transactions taken at the start of a scoring run.
type MarketService struct {
	logger       *utils.Logger
	transactions []*models.Transaction
	currentYear  int
}

// NewMarketService creates a MarketService over the given transaction
// snapshot. currentYear anchors the building-age bracketing.
func NewMarketService(logger *utils.Logger, transactions []*models.Transaction, currentYear int) *MarketService {
	return &MarketService{
		logger:       logger,
		transactions: transactions,
		currentYear:  currentYear,
	}
}

// MedianUnitPrice returns the median yen/m² and sample count over the
// transactions matching the query. It enforces no minimum sample size;
// the fallback resolver owns that threshold.
func (s *MarketService) MedianUnitPrice(q CompQuery) (float64, int) {
	minYear, maxYear := 0, 0
	if q.Age != nil {
		minYear, maxYear = q.Age.YearRange(s.currentYear)
	}

	var prices []int64
	for _, t := range s.transactions {
		if t.UnitPrice <= 0 {
			continue
		}
		if q.WardName != "" && t.WardName != q.WardName {
			continue
		}
		if q.StationName != nil && (t.StationName == nil || *t.StationName != *q.StationName) {
			continue
		}
		if q.Age != nil && (t.BuildingYear < minYear || t.BuildingYear > maxYear) {
			continue
		}
		if q.Area != nil && !q.Area.Contains(t.Area) {
			continue
		}
		prices = append(prices, t.UnitPrice)
	}

	if len(prices) == 0 {
		return 0, 0
	}
	return median(prices), len(prices)
}

// Resolve walks the fallback tiers for one listing and returns the raw
// market price estimate. Missing building year or floor area makes
// estimation impossible regardless of tier; that is tier 5, not an error.
func (s *MarketService) Resolve(l *models.Listing) Estimate {
	ageBr := AgeBracketFor(l.BuildingYear, s.currentYear)
	if ageBr == nil || l.Area == nil {
		return Estimate{Tier: TierUnresolved}
	}

	areaBr := AreaBracketFor(l.Area)
	hasStation := l.StationName != nil && *l.StationName != ""

	lastCount := 0
	for _, t := range fallbackTiers {
		if t.useStation && !hasStation {
			continue
		}
		if t.useAreaBracket && areaBr == nil {
			continue
		}

		q := CompQuery{Age: ageBr}
		if t.useStation {
			q.StationName = l.StationName
		} else {
			q.WardName = l.WardName
		}
		if t.useAreaBracket {
			q.Area = areaBr
		}

		med, n := s.MedianUnitPrice(q)
		lastCount = n
		if n < t.minSamples {
			s.logger.Debug("[market] listing %d tier %d: %d samples < %d, falling back",
				l.ID, t.rank, n, t.minSamples)
			continue
		}

		return Estimate{
			MarketPrice: int64(math.Round(med * *l.Area)),
			SampleCount: n,
			Tier:        t.rank,
		}
	}

	return Estimate{SampleCount: lastCount, Tier: TierUnresolved}
}

// median returns the middle value of the prices, averaging the two
// central values for even-sized samples. Robust to outlier sales in a
// way the mean is not.
func median(prices []int64) float64 {
	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
