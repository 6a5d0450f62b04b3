package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
)

// CSVExporter writes ranked, scored listings to a CSV file for the
// dashboard and spreadsheet consumers.
type CSVExporter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVExporter creates (or truncates) the CSV file at the given path
// and writes the header row. Intermediate directories are created
// automatically.
func NewCSVExporter(path string) (*CSVExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"rank", "deal_score", "asking_price", "market_price", "adjusted_market_price",
		"fallback_tier", "sample_count", "ward", "station", "walk_minutes",
		"area", "floor_plan", "building_year", "property_name", "url",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVExporter{file: f, writer: w}, nil
}

// Export writes the listings in the order given; rank is positional.
// Listings without a valuation are skipped — an absent score must not
// be exported as zero.
func (c *CSVExporter) Export(listings []*models.Listing) error {
	rank := 0
	for _, l := range listings {
		if l.Valuation == nil {
			continue
		}
		rank++

		row := []string{
			strconv.Itoa(rank),
			strconv.FormatFloat(l.Valuation.DealScore, 'f', 2, 64),
			optInt64(l.AskingPrice),
			strconv.FormatInt(l.Valuation.MarketPrice, 10),
			strconv.FormatInt(l.Valuation.AdjustedMarketPrice, 10),
			strconv.Itoa(l.Valuation.FallbackTier),
			strconv.Itoa(l.Valuation.SampleCount),
			l.WardName,
			optString(l.StationName),
			optInt(l.WalkMinutes),
			optFloat(l.Area),
			l.FloorPlan,
			optInt(l.BuildingYear),
			l.PropertyName,
			l.URL,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVExporter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
