// Package repository declares the persistence contract shared by the SQL and
// MongoDB store implementations.
package repository

import (
	"context"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

// Store is the durable stock/archive/accrual store. Every method that touches
// more than one row runs in a single transaction.
type Store interface {
	// Migrate creates missing tables and columns. It is safe to call repeatedly.
	Migrate(ctx context.Context) error

	// ListStock returns the stock rows of partition, or of every partition when
	// partition is empty. Partition literals are normalized.
	ListStock(ctx context.Context, partition models.Partition) ([]models.StockItem, error)
	// StockIDs returns the ids currently on hand in partition.
	StockIDs(ctx context.Context, partition models.Partition) (map[string]struct{}, error)
	// InsertStock inserts the whole batch or nothing.
	InsertStock(ctx context.Context, items []models.StockItem) error
	// DeleteStock removes ids from partition and returns the number removed.
	DeleteStock(ctx context.Context, partition models.Partition, ids []string) (int, error)
	// ShipStock moves ids from stock into the archive with the shipment details.
	// If any id is missing from partition nothing is changed and an
	// *models.ItemsNotInStockError is returned.
	ShipStock(ctx context.Context, partition models.Partition, details models.ShipmentDetails, ids []string) ([]models.ArchivedItem, error)

	ListArchive(ctx context.Context, partition models.Partition) ([]models.ArchivedItem, error)
	// RestoreArchived copies archived rows back into stock and removes them from the archive.
	RestoreArchived(ctx context.Context, ids []string) ([]models.StockItem, error)
	PurgeArchive(ctx context.Context, ids []string) (int, error)

	HasStorageLog(ctx context.Context, logDate string) (bool, error)
	// InsertStorageLog returns models.ErrAlreadyLogged when the date exists.
	InsertStorageLog(ctx context.Context, entry models.DailyStorageLogEntry) error
	// ListStorageLogs returns history newest first.
	ListStorageLogs(ctx context.Context) ([]models.DailyStorageLogEntry, error)

	Close(ctx context.Context) error
}
