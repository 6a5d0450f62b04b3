package services

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
	"github.com/noguchisakihand-source/apartment-dashboard/storage"
	"github.com/noguchisakihand-source/apartment-dashboard/utils"
)

var (
	// tokyoWardRegexp extracts the ward from a Tokyo address.
	tokyoWardRegexp = regexp.MustCompile(`東京都(.+?区)`)
	// chibaCityRegexp extracts the city from a Chiba address.
	chibaCityRegexp = regexp.MustCompile(`千葉県(.+?市)`)
)

// RawListingEntry is one record of a listing import file. Prices are in
// man-yen (×10,000 yen), the unit used by listing sites.
type RawListingEntry struct {
	SourceID     string   `json:"source_id"`
	PropertyName string   `json:"property_name"`
	Address      string   `json:"address"`
	Price        *int64   `json:"price"`
	Station      *string  `json:"station"`
	WalkMinutes  *int     `json:"walk_minutes"`
	Area         *float64 `json:"area"`
	FloorPlan    string   `json:"floor_plan"`
	BuildingYear *int     `json:"building_year"`
	Floor        *int     `json:"floor"`
	TotalFloors  *int     `json:"total_floors"`
	TotalUnits   *int     `json:"total_units"`
	Direction    *string  `json:"direction"`
	PetAllowed   *bool    `json:"pet_allowed"`
	GoodView     *bool    `json:"good_view"`
	GoodSunlight *bool    `json:"good_sunlight"`
	URL          string   `json:"url"`
}

// Importer upserts listings from an import file into the store, tracks
// asking-price changes, and marks listings gone from the batch as sold.
type Importer struct {
	logger *utils.Logger
	store  storage.ListingImporter
}

// NewImporter creates an Importer over the given store.
func NewImporter(logger *utils.Logger, store storage.ListingImporter) *Importer {
	return &Importer{logger: logger, store: store}
}

// ImportFile reads a JSON listing file and runs the import batch.
func (im *Importer) ImportFile(path string) (*models.ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("importer: read %q: %w", path, err)
	}

	var entries []*RawListingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("importer: parse %q: %w", path, err)
	}

	return im.Import(entries)
}

// Import validates and upserts the entries. Entries without an address
// or price are rejected; duplicates within the batch are collapsed onto
// the first occurrence. Listings absent from the batch are marked sold.
func (im *Importer) Import(entries []*RawListingEntry) (*models.ImportSummary, error) {
	summary := &models.ImportSummary{}
	seen := make(map[string]struct{})

	for _, e := range entries {
		address := normaliseText(e.Address)
		if address == "" || e.Price == nil || *e.Price <= 0 {
			im.logger.Warn("[import] rejected entry %q: missing address or price",
				truncate(e.PropertyName, 40))
			summary.Rejected++
			continue
		}

		wardName := extractWardName(address)
		if wardName == "" {
			im.logger.Warn("[import] rejected entry %q: no ward in address %q",
				truncate(e.PropertyName, 40), truncate(address, 40))
			summary.Rejected++
			continue
		}

		askingPrice := *e.Price * 10000 // man-yen → yen
		sourceID := e.SourceID
		if sourceID == "" {
			sourceID = generateSourceID(address, e.FloorPlan, e.Floor, e.Area)
		}

		if _, dup := seen[sourceID]; dup {
			im.logger.Debug("[import] duplicate entry skipped: %s", sourceID)
			continue
		}
		seen[sourceID] = struct{}{}

		listing := &models.Listing{
			SourceID:     sourceID,
			PropertyName: normaliseText(e.PropertyName),
			WardName:     wardName,
			Address:      address,
			StationName:  e.Station,
			WalkMinutes:  e.WalkMinutes,
			AskingPrice:  &askingPrice,
			Area:         e.Area,
			FloorPlan:    normaliseText(e.FloorPlan),
			BuildingYear: e.BuildingYear,
			Floor:        e.Floor,
			TotalFloors:  e.TotalFloors,
			TotalUnits:   e.TotalUnits,
			Direction:    e.Direction,
			PetAllowed:   e.PetAllowed,
			GoodView:     e.GoodView,
			GoodSunlight: e.GoodSunlight,
			URL:          e.URL,
			Status:       models.StatusActive,
		}

		if err := im.upsert(listing, summary); err != nil {
			return nil, err
		}
	}

	marked, err := im.store.MarkMissingSold(seen)
	if err != nil {
		return nil, fmt.Errorf("importer: mark sold: %w", err)
	}
	summary.MarkedSold = marked

	im.logger.Info("[import] inserted %d, updated %d (%d price changes), rejected %d, marked sold %d",
		summary.Inserted, summary.Updated, summary.PriceChanged, summary.Rejected, summary.MarkedSold)
	return summary, nil
}

func (im *Importer) upsert(l *models.Listing, summary *models.ImportSummary) error {
	existing, err := im.store.FindBySourceID(l.SourceID)
	if err != nil {
		return fmt.Errorf("importer: lookup %s: %w", l.SourceID, err)
	}

	if existing == nil {
		id, err := im.store.InsertListing(l)
		if err != nil {
			return fmt.Errorf("importer: insert %s: %w", l.SourceID, err)
		}
		if err := im.store.RecordPriceChange(id, *l.AskingPrice); err != nil {
			return fmt.Errorf("importer: initial price history %s: %w", l.SourceID, err)
		}
		summary.Inserted++
		return nil
	}

	l.ID = existing.ID
	if err := im.store.UpdateListing(l); err != nil {
		return fmt.Errorf("importer: update %s: %w", l.SourceID, err)
	}
	summary.Updated++

	if existing.AskingPrice != nil && *existing.AskingPrice != *l.AskingPrice {
		im.logger.Info("[import] price change for %s: %d → %d yen",
			l.SourceID, *existing.AskingPrice, *l.AskingPrice)
		if err := im.store.RecordPriceChange(existing.ID, *l.AskingPrice); err != nil {
			return fmt.Errorf("importer: price history %s: %w", l.SourceID, err)
		}
		summary.PriceChanged++
	}
	return nil
}

// extractWardName pulls the administrative area out of an address.
// Tokyo wards and Chiba cities are recognised.
func extractWardName(address string) string {
	if m := tokyoWardRegexp.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	if m := chibaCityRegexp.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	return ""
}

// generateSourceID derives a stable listing key for entries without an
// explicit one. The key must survive asking-price changes, so it hashes
// the address plus the attributes that distinguish units in a building.
func generateSourceID(address, floorPlan string, floor *int, area *float64) string {
	f, a := -1, -1.0
	if floor != nil {
		f = *floor
	}
	if area != nil {
		a = *area
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%d|%.2f", address, floorPlan, f, a)))
	return "manual_" + hex.EncodeToString(sum[:])[:12]
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
