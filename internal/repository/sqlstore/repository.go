// Package sqlstore implements repository.Store on PostgreSQL or SQLite via GORM.
package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/repository"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	insertBatchSize = 100
)

// SQLRepository implements repository.Store with GORM.
type SQLRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ repository.Store = (*SQLRepository)(nil)

// NewSQLRepository opens the database for driver and verifies the connection.
func NewSQLRepository(ctx context.Context, driver, dsn string, logger *zap.Logger) (*SQLRepository, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if driver == DriverSQLite {
		// A single connection serializes writers and keeps :memory: databases shared.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, logger), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB, logger *zap.Logger) *SQLRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLRepository{db: db, logger: logger}
}

// Migrate creates the stock, archive and daily_storage_log tables when absent
// and adds shipment metadata columns to archive tables that predate them.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	migrator := r.db.WithContext(ctx).Migrator()

	for _, model := range []any{&stockRecord{}, &archiveRecord{}, &storageLogRecord{}} {
		if migrator.HasTable(model) {
			continue
		}
		if err := migrator.CreateTable(model); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	for _, column := range archiveMetadataColumns {
		if migrator.HasColumn(&archiveRecord{}, column) {
			continue
		}
		if err := migrator.AddColumn(&archiveRecord{}, column); err != nil {
			return fmt.Errorf("add archive column %s: %w", column, err)
		}
		r.logger.Info("archive column added", zap.String("column", column))
	}

	return nil
}

// ListStock returns stock rows of partition, or all rows when partition is empty.
func (r *SQLRepository) ListStock(ctx context.Context, partition models.Partition) ([]models.StockItem, error) {
	var records []stockRecord
	if err := scopePartition(r.db.WithContext(ctx), partition).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}

	items := make([]models.StockItem, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.toModel())
	}
	models.SortStock(items)
	return items, nil
}

// StockIDs returns the set of ids on hand in partition.
func (r *SQLRepository) StockIDs(ctx context.Context, partition models.Partition) (map[string]struct{}, error) {
	var ids []string
	if err := scopePartition(r.db.WithContext(ctx).Model(&stockRecord{}), partition).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list stock ids: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// InsertStock writes the receipt batch in one transaction.
func (r *SQLRepository) InsertStock(ctx context.Context, items []models.StockItem) error {
	if len(items) == 0 {
		return nil
	}

	records := make([]stockRecord, 0, len(items))
	for _, item := range items {
		records = append(records, stockRecordFrom(item))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert stock batch: %w", err)
		}
		return nil
	})
}

// DeleteStock removes ids belonging to partition.
func (r *SQLRepository) DeleteStock(ctx context.Context, partition models.Partition, ids []string) (int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := scopePartition(tx, partition).Where(map[string]any{"id": ids}).Delete(&stockRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete stock: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return int(deleted), err
}

// ShipStock moves ids into the archive in one transaction. The stock rows are
// re-read inside the transaction so items shipped by another session are
// detected instead of being archived twice.
func (r *SQLRepository) ShipStock(ctx context.Context, partition models.Partition, details models.ShipmentDetails, ids []string) ([]models.ArchivedItem, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, models.ErrEmptyCart
	}

	var shipped []models.ArchivedItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []stockRecord
		if err := lockForUpdate(scopePartition(tx, partition)).Where(map[string]any{"id": ids}).Find(&records).Error; err != nil {
			return fmt.Errorf("load stock for shipment: %w", err)
		}

		present := make(map[string]struct{}, len(records))
		for _, rec := range records {
			present[rec.ID] = struct{}{}
		}
		if missing := missingIDs(ids, present); len(missing) > 0 {
			return &models.ItemsNotInStockError{IDs: missing}
		}

		archived := make([]archiveRecord, 0, len(records))
		shipped = make([]models.ArchivedItem, 0, len(records))
		for _, rec := range records {
			item := details.Archive(rec.toModel())
			shipped = append(shipped, item)
			archived = append(archived, archiveRecordFrom(item))
		}

		// Re-confirming an edited shipment overwrites the earlier archive row.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&archived).Error; err != nil {
			return fmt.Errorf("archive shipped items: %w", err)
		}

		// A row removed by a concurrent shipment after the read above fails the batch.
		var gone []string
		for _, id := range ids {
			res := tx.Where("id = ?", id).Delete(&stockRecord{})
			if res.Error != nil {
				return fmt.Errorf("remove shipped items from stock: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				gone = append(gone, id)
			}
		}
		if len(gone) > 0 {
			return &models.ItemsNotInStockError{IDs: gone}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	models.SortArchive(shipped)
	return shipped, nil
}

// ListArchive returns archived rows of partition, or all when partition is empty.
func (r *SQLRepository) ListArchive(ctx context.Context, partition models.Partition) ([]models.ArchivedItem, error) {
	var records []archiveRecord
	if err := scopePartition(r.db.WithContext(ctx), partition).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	items := make([]models.ArchivedItem, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.toModel())
	}
	models.SortArchive(items)
	return items, nil
}

// RestoreArchived moves archived ids back into stock. Ids absent from the
// archive are skipped.
func (r *SQLRepository) RestoreArchived(ctx context.Context, ids []string) ([]models.StockItem, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var restored []models.StockItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []archiveRecord
		if err := tx.Where(map[string]any{"id": ids}).Find(&records).Error; err != nil {
			return fmt.Errorf("load archive for restore: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		stock := make([]stockRecord, 0, len(records))
		found := make([]string, 0, len(records))
		for _, rec := range records {
			item := rec.toModel().Restore()
			restored = append(restored, item)
			stock = append(stock, stockRecordFrom(item))
			found = append(found, rec.ID)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&stock).Error; err != nil {
			return fmt.Errorf("restore into stock: %w", err)
		}

		if err := tx.Where(map[string]any{"id": found}).Delete(&archiveRecord{}).Error; err != nil {
			return fmt.Errorf("remove restored items from archive: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	models.SortStock(restored)
	return restored, nil
}

// PurgeArchive permanently deletes archived ids.
func (r *SQLRepository) PurgeArchive(ctx context.Context, ids []string) (int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(map[string]any{"id": ids}).Delete(&archiveRecord{})
		if res.Error != nil {
			return fmt.Errorf("purge archive: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return int(deleted), err
}

// HasStorageLog reports whether the date already has an accrual row.
func (r *SQLRepository) HasStorageLog(ctx context.Context, logDate string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&storageLogRecord{}).Where(map[string]any{"log_date": logDate}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check storage log: %w", err)
	}
	return count > 0, nil
}

// InsertStorageLog inserts entry unless the date exists. The primary key on
// log_date arbitrates concurrent writers.
func (r *SQLRepository) InsertStorageLog(ctx context.Context, entry models.DailyStorageLogEntry) error {
	rec := storageLogRecordFrom(entry)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return fmt.Errorf("insert storage log: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrAlreadyLogged
	}
	return nil
}

// ListStorageLogs returns accrual history newest first.
func (r *SQLRepository) ListStorageLogs(ctx context.Context) ([]models.DailyStorageLogEntry, error) {
	var records []storageLogRecord
	if err := r.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "log_date"}, Desc: true}).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list storage logs: %w", err)
	}

	entries := make([]models.DailyStorageLogEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.toModel())
	}
	return entries, nil
}

// Close releases the connection pool.
func (r *SQLRepository) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// lockForUpdate takes row locks on dialects that support SELECT ... FOR UPDATE.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == DriverPostgres {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func scopePartition(db *gorm.DB, partition models.Partition) *gorm.DB {
	if partition == "" {
		return db
	}
	return db.Where(map[string]any{"partition": partition.StoredAliases()})
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []string, present map[string]struct{}) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
