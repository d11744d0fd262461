// Package catalog resolves barcodes to article and product name using a
// best-effort snapshot of the MoySklad stock report.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/pkg/clients/moysklad"
)

const (
	// PlaceholderArticle and PlaceholderName describe barcodes the catalog does not know.
	PlaceholderArticle = "-"
	PlaceholderName    = "Новый товар"

	// unnamedProduct is used when the catalog knows the code but has no name for it.
	unnamedProduct = "Неизвестно"
)

// ErrNotConfigured is reported when no catalog credentials are set.
var ErrNotConfigured = errors.New("catalog lookup is not configured")

// Entry is the enrichment data for one barcode.
type Entry struct {
	Article string `json:"article"`
	Name    string `json:"name"`
}

// Snapshot is the result of one catalog lookup. A failed lookup yields an
// empty, offline snapshot with Err set; it never blocks a receipt.
type Snapshot struct {
	entries map[string]Entry
	Online  bool
	Err     error
}

// Resolve returns the entry for barcode or the placeholder.
func (s Snapshot) Resolve(barcode string) Entry {
	if entry, ok := s.entries[strings.TrimSpace(barcode)]; ok {
		return entry
	}
	return Entry{Article: PlaceholderArticle, Name: PlaceholderName}
}

// Len returns the number of known barcodes.
func (s Snapshot) Len() int {
	return len(s.entries)
}

// NewSnapshot builds an online snapshot from catalog rows. Rows without a
// code are ignored; the first row wins for duplicate codes.
func NewSnapshot(rows []moysklad.StockRow) Snapshot {
	entries := make(map[string]Entry, len(rows))
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		if code == "" {
			continue
		}
		if _, exists := entries[code]; exists {
			continue
		}
		entry := Entry{Article: row.Article, Name: row.Name}
		if strings.TrimSpace(entry.Article) == "" {
			entry.Article = PlaceholderArticle
		}
		if strings.TrimSpace(entry.Name) == "" {
			entry.Name = unnamedProduct
		}
		entries[code] = entry
	}
	return Snapshot{entries: entries, Online: true}
}

// Resolver takes catalog snapshots.
type Resolver struct {
	client  moysklad.Client
	storeID string
	timeout time.Duration
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// NewResolver wires a resolver. A nil client yields offline snapshots.
func NewResolver(client moysklad.Client, storeID string, timeout time.Duration, recorder *metrics.Recorder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:  client,
		storeID: storeID,
		timeout: timeout,
		metrics: recorder,
		logger:  logger,
	}
}

// Snapshot performs one lookup bounded by the resolver timeout. There is no retry.
func (r *Resolver) Snapshot(ctx context.Context) Snapshot {
	if r == nil || r.client == nil {
		return Snapshot{Err: ErrNotConfigured}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rows, err := r.client.StockReport(ctx, r.storeID)
	if err != nil {
		r.logger.Warn("catalog lookup failed, continuing without enrichment", zap.Error(err))
		r.metrics.CatalogLookup(false)
		return Snapshot{Err: err}
	}

	r.metrics.CatalogLookup(true)
	snapshot := NewSnapshot(rows)
	r.logger.Debug("catalog snapshot taken", zap.Int("entries", snapshot.Len()))
	return snapshot
}
