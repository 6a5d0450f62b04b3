package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/noguchisakihand-source/apartment-dashboard/models"
)

// PostgresStore persists transactions, listings and price history.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id            SERIAL PRIMARY KEY,
			ward_name     TEXT    NOT NULL,
			station_name  TEXT,
			trade_price   BIGINT  NOT NULL,
			unit_price    BIGINT  NOT NULL,
			area          DOUBLE PRECISION NOT NULL,
			building_year INTEGER NOT NULL,
			trade_date    TEXT    NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS listings (
			id               SERIAL PRIMARY KEY,
			source_id        TEXT UNIQUE NOT NULL,
			property_name    TEXT NOT NULL DEFAULT '',
			ward_name        TEXT NOT NULL,
			address          TEXT NOT NULL DEFAULT '',
			station_name     TEXT,
			walk_minutes     INTEGER,
			asking_price     BIGINT,
			area             DOUBLE PRECISION,
			floor_plan       TEXT NOT NULL DEFAULT '',
			building_year    INTEGER,
			floor            INTEGER,
			total_floors     INTEGER,
			total_units      INTEGER,
			direction        TEXT,
			pet_allowed      BOOLEAN,
			good_view        BOOLEAN,
			good_sunlight    BOOLEAN,
			url              TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'active',

			market_price          BIGINT,
			adjusted_market_price BIGINT,
			sample_count          INTEGER,
			fallback_tier         INTEGER,
			deal_score            DOUBLE PRECISION,
			walk_factor           DOUBLE PRECISION,
			floor_factor          DOUBLE PRECISION,
			direction_factor      DOUBLE PRECISION,
			area_factor           DOUBLE PRECISION,
			units_factor          DOUBLE PRECISION,
			floors_factor         DOUBLE PRECISION,
			pet_factor            DOUBLE PRECISION,
			view_factor           DOUBLE PRECISION,
			sunlight_factor       DOUBLE PRECISION,

			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS price_history (
			id          SERIAL PRIMARY KEY,
			listing_id  INTEGER NOT NULL REFERENCES listings(id),
			price       BIGINT  NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_ward    ON transactions(ward_name);
		CREATE INDEX IF NOT EXISTS idx_transactions_station ON transactions(station_name);
		CREATE INDEX IF NOT EXISTS idx_listings_ward        ON listings(ward_name);
		CREATE INDEX IF NOT EXISTS idx_listings_station     ON listings(station_name);
		CREATE INDEX IF NOT EXISTS idx_listings_status      ON listings(status);
		CREATE INDEX IF NOT EXISTS idx_listings_deal_score  ON listings(deal_score);
		CREATE INDEX IF NOT EXISTS idx_price_history_listing ON price_history(listing_id);
	`)
	return err
}

// ReplaceTransactions swaps the whole transaction dataset inside one
// database transaction, so readers never observe a half-ingested table.
func (s *PostgresStore) ReplaceTransactions(transactions []*models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM transactions"); err != nil {
		return fmt.Errorf("postgres: clear transactions: %w", err)
	}

	const batchSize = 50
	for i := 0; i < len(transactions); i += batchSize {
		end := i + batchSize
		if end > len(transactions) {
			end = len(transactions)
		}
		if err := insertTransactionBatch(tx, transactions[i:end]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertTransactionBatch(tx *sql.Tx, batch []*models.Transaction) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*6)

	for idx, t := range batch {
		base := idx * 6
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
		valueArgs = append(valueArgs,
			t.WardName, t.StationName, t.TradePrice, t.UnitPrice, t.Area, t.BuildingYear)
	}

	query := fmt.Sprintf(`
		INSERT INTO transactions (ward_name, station_name, trade_price, unit_price, area, building_year)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert transaction batch: %w", err)
	}
	return nil
}

// FetchTransactions reads the full comparable-sales snapshot.
func (s *PostgresStore) FetchTransactions() ([]*models.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, ward_name, station_name, trade_price, unit_price, area, building_year, trade_date, created_at
		FROM transactions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		if err := rows.Scan(
			&t.ID, &t.WardName, &t.StationName, &t.TradePrice,
			&t.UnitPrice, &t.Area, &t.BuildingYear, &t.TradeDate, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

const listingColumns = `
	id, source_id, property_name, ward_name, address, station_name,
	walk_minutes, asking_price, area, floor_plan, building_year,
	floor, total_floors, total_units, direction,
	pet_allowed, good_view, good_sunlight, url, status,
	market_price, adjusted_market_price, sample_count, fallback_tier, deal_score,
	walk_factor, floor_factor, direction_factor, area_factor, units_factor,
	floors_factor, pet_factor, view_factor, sunlight_factor,
	first_seen_at, updated_at
`

// FetchActiveListings reads the snapshot of listings a scoring run
// iterates over.
func (s *PostgresStore) FetchActiveListings() ([]*models.Listing, error) {
	return s.queryListings(`
		SELECT `+listingColumns+`
		FROM listings
		WHERE status = $1
		ORDER BY id
	`, models.StatusActive)
}

// TopByScore returns the best-scored active listings, ties broken by id
// ascending for determinism. Listings without a score never rank.
func (s *PostgresStore) TopByScore(limit int) ([]*models.Listing, error) {
	return s.queryListings(`
		SELECT `+listingColumns+`
		FROM listings
		WHERE status = $1 AND deal_score IS NOT NULL
		ORDER BY deal_score DESC, id ASC
		LIMIT $2
	`, models.StatusActive, limit)
}

// FindBySourceID returns the listing with the given source key, or nil.
func (s *PostgresStore) FindBySourceID(sourceID string) (*models.Listing, error) {
	listings, err := s.queryListings(`
		SELECT `+listingColumns+`
		FROM listings
		WHERE source_id = $1
	`, sourceID)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}
	return listings[0], nil
}

func (s *PostgresStore) queryListings(query string, args ...interface{}) ([]*models.Listing, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func scanListing(rows *sql.Rows) (*models.Listing, error) {
	l := &models.Listing{}

	var (
		marketPrice, adjustedPrice        sql.NullInt64
		sampleCount, fallbackTier         sql.NullInt64
		dealScore                         sql.NullFloat64
		walkF, floorF, dirF, areaF, unitF sql.NullFloat64
		floorsF, petF, viewF, sunF        sql.NullFloat64
	)

	if err := rows.Scan(
		&l.ID, &l.SourceID, &l.PropertyName, &l.WardName, &l.Address, &l.StationName,
		&l.WalkMinutes, &l.AskingPrice, &l.Area, &l.FloorPlan, &l.BuildingYear,
		&l.Floor, &l.TotalFloors, &l.TotalUnits, &l.Direction,
		&l.PetAllowed, &l.GoodView, &l.GoodSunlight, &l.URL, &l.Status,
		&marketPrice, &adjustedPrice, &sampleCount, &fallbackTier, &dealScore,
		&walkF, &floorF, &dirF, &areaF, &unitF,
		&floorsF, &petF, &viewF, &sunF,
		&l.FirstSeenAt, &l.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("postgres: scan listing: %w", err)
	}

	// Derived fields are written together, so a present tier implies
	// the whole valuation is present.
	if fallbackTier.Valid {
		l.Valuation = &models.Valuation{
			MarketPrice:         marketPrice.Int64,
			AdjustedMarketPrice: adjustedPrice.Int64,
			SampleCount:         int(sampleCount.Int64),
			FallbackTier:        int(fallbackTier.Int64),
			DealScore:           dealScore.Float64,
			WalkFactor:          walkF.Float64,
			FloorFactor:         floorF.Float64,
			DirectionFactor:     dirF.Float64,
			AreaFactor:          areaF.Float64,
			UnitsFactor:         unitF.Float64,
			FloorsFactor:        floorsF.Float64,
			PetFactor:           petF.Float64,
			ViewFactor:          viewF.Float64,
			SunlightFactor:      sunF.Float64,
		}
	}

	return l, nil
}

// InsertListing stores a new listing and returns its id.
func (s *PostgresStore) InsertListing(l *models.Listing) (int64, error) {
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO listings (
			source_id, property_name, ward_name, address, station_name,
			walk_minutes, asking_price, area, floor_plan, building_year,
			floor, total_floors, total_units, direction,
			pet_allowed, good_view, good_sunlight, url, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id
	`,
		l.SourceID, l.PropertyName, l.WardName, l.Address, l.StationName,
		l.WalkMinutes, l.AskingPrice, l.Area, l.FloorPlan, l.BuildingYear,
		l.Floor, l.TotalFloors, l.TotalUnits, l.Direction,
		l.PetAllowed, l.GoodView, l.GoodSunlight, l.URL, l.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert listing: %w", err)
	}
	return id, nil
}

// UpdateListing refreshes the raw (scraped/imported) attributes of an
// existing listing. Derived valuation fields are untouched: attribute
// updates and valuation updates are separate write phases.
func (s *PostgresStore) UpdateListing(l *models.Listing) error {
	_, err := s.db.Exec(`
		UPDATE listings SET
			property_name = $1, ward_name = $2, address = $3, station_name = $4,
			walk_minutes = $5, asking_price = $6, area = $7, floor_plan = $8,
			building_year = $9, floor = $10, total_floors = $11, total_units = $12,
			direction = $13, pet_allowed = $14, good_view = $15, good_sunlight = $16,
			url = $17, status = $18, updated_at = NOW()
		WHERE id = $19
	`,
		l.PropertyName, l.WardName, l.Address, l.StationName,
		l.WalkMinutes, l.AskingPrice, l.Area, l.FloorPlan,
		l.BuildingYear, l.Floor, l.TotalFloors, l.TotalUnits,
		l.Direction, l.PetAllowed, l.GoodView, l.GoodSunlight,
		l.URL, l.Status, l.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update listing %d: %w", l.ID, err)
	}
	return nil
}

// UpdateValuation writes the full derived field set for one listing in
// a single statement, so an interrupted run never leaves a listing
// partially scored.
func (s *PostgresStore) UpdateValuation(listingID int64, v *models.Valuation) error {
	_, err := s.db.Exec(`
		UPDATE listings SET
			market_price = $1, adjusted_market_price = $2,
			sample_count = $3, fallback_tier = $4, deal_score = $5,
			walk_factor = $6, floor_factor = $7, direction_factor = $8,
			area_factor = $9, units_factor = $10, floors_factor = $11,
			pet_factor = $12, view_factor = $13, sunlight_factor = $14,
			updated_at = NOW()
		WHERE id = $15
	`,
		v.MarketPrice, v.AdjustedMarketPrice,
		v.SampleCount, v.FallbackTier, v.DealScore,
		v.WalkFactor, v.FloorFactor, v.DirectionFactor,
		v.AreaFactor, v.UnitsFactor, v.FloorsFactor,
		v.PetFactor, v.ViewFactor, v.SunlightFactor,
		listingID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update valuation %d: %w", listingID, err)
	}
	return nil
}

// RecordPriceChange appends an asking-price history entry.
func (s *PostgresStore) RecordPriceChange(listingID int64, price int64) error {
	_, err := s.db.Exec(`
		INSERT INTO price_history (listing_id, price) VALUES ($1, $2)
	`, listingID, price)
	if err != nil {
		return fmt.Errorf("postgres: record price change %d: %w", listingID, err)
	}
	return nil
}

// MarkMissingSold flips active listings whose source id is absent from
// the latest import batch to sold. Returns the number marked.
func (s *PostgresStore) MarkMissingSold(seenSourceIDs map[string]struct{}) (int, error) {
	rows, err := s.db.Query(`
		SELECT id, source_id FROM listings WHERE status = $1
	`, models.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("postgres: fetch active ids: %w", err)
	}
	defer rows.Close()

	var missing []int64
	for rows.Next() {
		var id int64
		var sourceID string
		if err := rows.Scan(&id, &sourceID); err != nil {
			return 0, fmt.Errorf("postgres: scan active id: %w", err)
		}
		if _, seen := seenSourceIDs[sourceID]; !seen {
			missing = append(missing, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}

	res, err := s.db.Exec(`
		UPDATE listings SET status = $1, updated_at = NOW() WHERE id = ANY($2)
	`, models.StatusSold, pq.Array(missing))
	if err != nil {
		return 0, fmt.Errorf("postgres: mark sold: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PriceHistory returns the recorded asking prices for a listing, oldest first.
func (s *PostgresStore) PriceHistory(listingID int64) ([]*models.PriceChange, error) {
	rows, err := s.db.Query(`
		SELECT id, listing_id, price, recorded_at
		FROM price_history
		WHERE listing_id = $1
		ORDER BY recorded_at, id
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("postgres: price history %d: %w", listingID, err)
	}
	defer rows.Close()

	var history []*models.PriceChange
	for rows.Next() {
		p := &models.PriceChange{}
		if err := rows.Scan(&p.ID, &p.ListingID, &p.Price, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan price change: %w", err)
		}
		history = append(history, p)
	}
	return history, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
