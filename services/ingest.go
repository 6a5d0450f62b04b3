package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
	"github.com/noguchisakihand-source/apartment-dashboard/storage"
	"github.com/noguchisakihand-source/apartment-dashboard/utils"
)

// transactionColumns is the header of a transaction-price export file.
var transactionColumns = []string{
	"ward_name", "station_name", "trade_price", "unit_price", "area", "building_year", "trade_date",
}

// Ingestor bulk-loads completed transactions from a CSV export,
// replacing the previous dataset wholesale. Transactions are immutable
// facts; re-ingestion is the only way they change.
type Ingestor struct {
	logger *utils.Logger
	store  storage.TransactionStore
}

// NewIngestor creates an Ingestor over the given store.
func NewIngestor(logger *utils.Logger, store storage.TransactionStore) *Ingestor {
	return &Ingestor{logger: logger, store: store}
}

// IngestFile parses the CSV at path and replaces the transaction table
// with its rows. Returns the number of rows loaded and skipped.
func (in *Ingestor) IngestFile(path string) (loaded, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("ingest: open %q: %w", path, err)
	}
	defer f.Close()

	transactions, skipped, err := in.parse(csv.NewReader(f))
	if err != nil {
		return 0, skipped, err
	}

	if err := in.store.ReplaceTransactions(transactions); err != nil {
		return 0, skipped, fmt.Errorf("ingest: replace transactions: %w", err)
	}

	in.logger.Info("[ingest] loaded %d transactions (%d rows skipped)", len(transactions), skipped)
	return len(transactions), skipped, nil
}

func (in *Ingestor) parse(r *csv.Reader) ([]*models.Transaction, int, error) {
	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range transactionColumns {
		if name == "unit_price" || name == "station_name" || name == "trade_date" {
			continue // optional columns
		}
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("ingest: missing column %q", name)
		}
	}

	var transactions []*models.Transaction
	skipped := 0
	line := 1

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("ingest: read row %d: %w", line+1, err)
		}
		line++

		t, ok := in.parseRow(row, col)
		if !ok {
			in.logger.Debug("[ingest] row %d skipped: unusable values", line)
			skipped++
			continue
		}
		transactions = append(transactions, t)
	}

	return transactions, skipped, nil
}

// parseRow converts one CSV row. Rows without a ward, a positive trade
// price, a positive area or a building year cannot feed the aggregator
// and are dropped. A missing unit price is derived from price / area.
func (in *Ingestor) parseRow(row []string, col map[string]int) (*models.Transaction, bool) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	ward := get("ward_name")
	tradePrice, err1 := strconv.ParseInt(get("trade_price"), 10, 64)
	area, err2 := strconv.ParseFloat(get("area"), 64)
	buildingYear, err3 := strconv.Atoi(get("building_year"))

	if ward == "" || err1 != nil || err2 != nil || err3 != nil || tradePrice <= 0 || area <= 0 {
		return nil, false
	}

	t := &models.Transaction{
		WardName:     ward,
		TradePrice:   tradePrice,
		Area:         area,
		BuildingYear: buildingYear,
		TradeDate:    get("trade_date"),
	}

	if station := get("station_name"); station != "" {
		t.StationName = &station
	}

	if up, err := strconv.ParseInt(get("unit_price"), 10, 64); err == nil && up > 0 {
		t.UnitPrice = up
	} else {
		t.UnitPrice = int64(float64(tradePrice) / area)
	}

	return t, true
}
