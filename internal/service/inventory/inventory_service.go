package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/internal/repository"
	"github.com/mamadbah2/warehouse/internal/service/catalog"
)

// CatalogSource provides one catalog snapshot per receipt batch.
type CatalogSource interface {
	Snapshot(ctx context.Context) catalog.Snapshot
}

// ReceiptResult describes a committed receipt batch.
type ReceiptResult struct {
	Items         []models.StockItem `json:"items"`
	CatalogOnline bool               `json:"catalog_online"`
}

// CatalogStatus is the connectivity flag shown next to the stock tables.
type CatalogStatus struct {
	Online  bool   `json:"online"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// StorageOverview combines the live storage calculation with accrual history.
type StorageOverview struct {
	Current map[models.Partition]models.StorageFigures `json:"current"`
	Total   int                                         `json:"total_cost"`
	History []models.DailyStorageLogEntry               `json:"history"`
	// HistoryError is set when the log table cannot be read; the live figures
	// are still returned.
	HistoryError string `json:"history_error,omitempty"`
}

// Service implements the stock ledger and archive operations.
type Service struct {
	store   repository.Store
	catalog CatalogSource
	metrics *metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a new inventory service instance.
func NewService(store repository.Store, catalogSource CatalogSource, recorder *metrics.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		catalog: catalogSource,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// CatalogStatus probes the catalog for the connectivity indicator.
func (s *Service) CatalogStatus(ctx context.Context) CatalogStatus {
	snapshot := s.snapshot(ctx)
	status := CatalogStatus{Online: snapshot.Online, Entries: snapshot.Len()}
	if snapshot.Err != nil {
		status.Error = snapshot.Err.Error()
	}
	return status
}

// Receive enriches rows from one catalog snapshot and inserts them as a single
// batch. Ids combine the batch timestamp, the barcode and the row index, so
// rows of one batch can never collide.
func (s *Service) Receive(ctx context.Context, partition models.Partition, rows []models.ReceiptRow) (ReceiptResult, error) {
	if !partition.Valid() {
		return ReceiptResult{}, models.ErrInvalidPartition
	}
	if err := validateReceiptRows(rows); err != nil {
		return ReceiptResult{}, err
	}

	snapshot := s.snapshot(ctx)
	stamp := s.now().UnixNano()

	items := make([]models.StockItem, 0, len(rows))
	for i, row := range rows {
		barcode := strings.TrimSpace(row.Barcode)
		entry := snapshot.Resolve(barcode)
		items = append(items, models.StockItem{
			ID:        fmt.Sprintf("ID_%d_%s_%d", stamp, barcode, i),
			Name:      entry.Name,
			Article:   entry.Article,
			Barcode:   barcode,
			Quantity:  row.Quantity,
			BoxNumber: strings.TrimSpace(row.BoxNumber),
			Partition: partition,
		})
	}

	if err := s.store.InsertStock(ctx, items); err != nil {
		return ReceiptResult{}, fmt.Errorf("save receipt: %w", err)
	}

	s.metrics.RowsReceived(string(partition), len(items))
	s.logger.Info("receipt saved",
		zap.String("partition", string(partition)),
		zap.Int("rows", len(items)),
		zap.Bool("catalog_online", snapshot.Online))

	return ReceiptResult{Items: items, CatalogOnline: snapshot.Online}, nil
}

// ListStock returns the partition's stock filtered by query.
func (s *Service) ListStock(ctx context.Context, partition models.Partition, query string) ([]models.StockItem, error) {
	if !partition.Valid() {
		return nil, models.ErrInvalidPartition
	}
	items, err := s.store.ListStock(ctx, partition)
	if err != nil {
		return nil, err
	}
	return filterStock(items, query), nil
}

// Inventory returns the full stock split by partition.
func (s *Service) Inventory(ctx context.Context) (map[models.Partition][]models.StockItem, error) {
	items, err := s.store.ListStock(ctx, "")
	if err != nil {
		return nil, err
	}

	byPartition := make(map[models.Partition][]models.StockItem, len(models.Partitions))
	for _, p := range models.Partitions {
		byPartition[p] = []models.StockItem{}
	}
	for _, item := range items {
		byPartition[item.Partition] = append(byPartition[item.Partition], item)
	}
	return byPartition, nil
}

// DeleteStock permanently removes stock rows once the confirmation phrase matches.
func (s *Service) DeleteStock(ctx context.Context, partition models.Partition, ids []string, confirmation string) (int, error) {
	if !partition.Valid() {
		return 0, models.ErrInvalidPartition
	}
	if !models.Confirmed(confirmation) {
		return 0, models.ErrConfirmationRequired
	}

	deleted, err := s.store.DeleteStock(ctx, partition, ids)
	if err != nil {
		return 0, fmt.Errorf("delete stock: %w", err)
	}

	s.metrics.ItemsDeleted("stock", deleted)
	s.logger.Info("stock deleted", zap.String("partition", string(partition)), zap.Int("rows", deleted))
	return deleted, nil
}

// ListArchive returns the partition's archive filtered by query.
func (s *Service) ListArchive(ctx context.Context, partition models.Partition, query string) ([]models.ArchivedItem, error) {
	if !partition.Valid() {
		return nil, models.ErrInvalidPartition
	}
	items, err := s.store.ListArchive(ctx, partition)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.ArchivedItem, 0, len(items))
	for _, item := range items {
		if item.Matches(query) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// Restore returns archived rows to stock with their original ids.
func (s *Service) Restore(ctx context.Context, ids []string) ([]models.StockItem, error) {
	restored, err := s.store.RestoreArchived(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("restore archive: %w", err)
	}

	s.metrics.ItemsRestored(len(restored))
	s.logger.Info("archive restored", zap.Int("requested", len(ids)), zap.Int("restored", len(restored)))
	return restored, nil
}

// Purge permanently removes archived rows once the confirmation phrase matches.
func (s *Service) Purge(ctx context.Context, ids []string, confirmation string) (int, error) {
	if !models.Confirmed(confirmation) {
		return 0, models.ErrConfirmationRequired
	}

	deleted, err := s.store.PurgeArchive(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("purge archive: %w", err)
	}

	s.metrics.ItemsDeleted("archive", deleted)
	s.logger.Info("archive purged", zap.Int("rows", deleted))
	return deleted, nil
}

// Totals sums quantity per (partition, barcode) across the whole stock.
func (s *Service) Totals(ctx context.Context) ([]models.TotalRow, error) {
	items, err := s.store.ListStock(ctx, "")
	if err != nil {
		return nil, err
	}

	type key struct {
		partition models.Partition
		barcode   string
	}
	sums := make(map[key]decimal.Decimal)
	for _, item := range items {
		k := key{partition: item.Partition, barcode: item.Barcode}
		sums[k] = sums[k].Add(decimal.NewFromFloat(item.Quantity))
	}

	totals := make([]models.TotalRow, 0, len(sums))
	for k, sum := range sums {
		totals = append(totals, models.TotalRow{
			Partition: k.partition,
			Barcode:   k.barcode,
			Quantity:  sum.InexactFloat64(),
		})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Partition != totals[j].Partition {
			return totals[i].Partition < totals[j].Partition
		}
		return totals[i].Barcode < totals[j].Barcode
	})
	return totals, nil
}

// StorageOverview computes the storage fee for the current stock and loads the
// accrual history. A missing history table does not fail the overview.
func (s *Service) StorageOverview(ctx context.Context) (StorageOverview, error) {
	items, err := s.store.ListStock(ctx, "")
	if err != nil {
		return StorageOverview{}, err
	}

	boxes := models.CountBoxes(items)
	overview := StorageOverview{Current: make(map[models.Partition]models.StorageFigures, len(models.Partitions))}
	for _, p := range models.Partitions {
		figures := models.FiguresFor(boxes[p])
		overview.Current[p] = figures
		overview.Total += figures.Cost
	}

	history, err := s.store.ListStorageLogs(ctx)
	if err != nil {
		s.logger.Warn("storage history unavailable", zap.Error(err))
		overview.HistoryError = err.Error()
		history = nil
	}
	overview.History = history
	return overview, nil
}

func (s *Service) snapshot(ctx context.Context) catalog.Snapshot {
	if s.catalog == nil {
		return catalog.Snapshot{Err: catalog.ErrNotConfigured}
	}
	return s.catalog.Snapshot(ctx)
}

func filterStock(items []models.StockItem, query string) []models.StockItem {
	if strings.TrimSpace(query) == "" {
		return items
	}
	filtered := make([]models.StockItem, 0, len(items))
	for _, item := range items {
		if item.Matches(query) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
