package models

import "time"

// Listing statuses. A listing stays active until an import batch no
// longer contains it, at which point it is marked sold.
const (
	StatusActive = "active"
	StatusSold   = "sold"
)

// Transaction is a completed sale from the transaction-price library.
// Historical fact: rows are only ever bulk-replaced, never mutated.
type Transaction struct {
	ID           int64
	WardName     string
	StationName  *string
	TradePrice   int64
	UnitPrice    int64 // yen per m²
	Area         float64
	BuildingYear int
	TradeDate    string
	CreatedAt    time.Time
}

// Listing is an active (or recently sold) for-sale apartment.
// Optional attributes are pointers so that "unknown" survives the
// round-trip through NULL columns instead of collapsing to zero.
type Listing struct {
	ID           int64
	SourceID     string
	PropertyName string
	WardName     string
	Address      string
	StationName  *string
	WalkMinutes  *int
	AskingPrice  *int64 // yen
	Area         *float64
	FloorPlan    string
	BuildingYear *int
	Floor        *int
	TotalFloors  *int
	TotalUnits   *int
	Direction    *string
	PetAllowed   *bool
	GoodView     *bool
	GoodSunlight *bool
	URL          string
	Status       string
	Valuation    *Valuation
	FirstSeenAt  time.Time
	UpdatedAt    time.Time
}

// Valuation is the derived field set written back by a scoring run.
// All fields are populated together or the whole struct is nil —
// a listing never carries a partial valuation.
type Valuation struct {
	MarketPrice         int64 // median comparable unit price × area
	AdjustedMarketPrice int64 // market price × combined multiplier
	SampleCount         int
	FallbackTier        int
	DealScore           float64 // percent, 2 decimals

	WalkFactor      float64
	FloorFactor     float64
	DirectionFactor float64
	AreaFactor      float64
	UnitsFactor     float64
	FloorsFactor    float64
	PetFactor       float64
	ViewFactor      float64
	SunlightFactor  float64
}

// CombinedFactor returns the product of the nine per-dimension
// multipliers. Factors are independent and multiplicative.
func (v *Valuation) CombinedFactor() float64 {
	return v.WalkFactor * v.FloorFactor * v.DirectionFactor *
		v.AreaFactor * v.UnitsFactor * v.FloorsFactor *
		v.PetFactor * v.ViewFactor * v.SunlightFactor
}

// PriceChange is one entry in a listing's asking-price history.
type PriceChange struct {
	ID         int64
	ListingID  int64
	Price      int64
	RecordedAt time.Time
}

// ScoreRunSummary aggregates the outcome of one scoring run.
type ScoreRunSummary struct {
	Updated      int
	Skipped      int
	Errored      int
	TierCoverage map[int]int
}

// ImportSummary aggregates the outcome of one listing-import run.
type ImportSummary struct {
	Inserted     int
	Updated      int
	PriceChanged int
	Rejected     int
	MarkedSold   int
}
