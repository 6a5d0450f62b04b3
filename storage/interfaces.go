package storage

import "github.com/noguchisakihand-source/apartment-dashboard/models"

// TransactionStore is the read side of the comparable-sales data.
type TransactionStore interface {
	FetchTransactions() ([]*models.Transaction, error)
	ReplaceTransactions(transactions []*models.Transaction) error
}

// ListingStore is what a scoring run needs from the listing table:
// a snapshot of active listings and a per-row atomic valuation write.
type ListingStore interface {
	FetchActiveListings() ([]*models.Listing, error)
	UpdateValuation(listingID int64, v *models.Valuation) error
}

// ListingImporter is the write side used by the listing import batch.
type ListingImporter interface {
	FindBySourceID(sourceID string) (*models.Listing, error)
	InsertListing(l *models.Listing) (int64, error)
	UpdateListing(l *models.Listing) error
	RecordPriceChange(listingID int64, price int64) error
	MarkMissingSold(seenSourceIDs map[string]struct{}) (int, error)
}
