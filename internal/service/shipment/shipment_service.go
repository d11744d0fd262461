// Package shipment manages per-session shipment carts and commits them into
// the archive.
package shipment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/internal/repository"
)

// SessionStore persists shipment sessions between requests.
type SessionStore interface {
	Load(ctx context.Context, key models.SessionKey) (models.ShipmentSession, error)
	Save(ctx context.Context, key models.SessionKey, session models.ShipmentSession) error
	Delete(ctx context.Context, key models.SessionKey) error
}

// CartView is the reconciled cart together with the selected stock rows.
type CartView struct {
	Partition    models.Partition   `json:"partition"`
	IDs          []string           `json:"ids"`
	Items        []models.StockItem `json:"items"`
	DialogOpen   bool               `json:"dialog_open"`
	ResetCounter int                `json:"reset_counter"`
	// Pruned lists ids dropped because they left the stock since the last read.
	Pruned []string `json:"pruned,omitempty"`
}

// CommitResult describes a committed shipment.
type CommitResult struct {
	Manifest models.Manifest       `json:"manifest"`
	Archived []models.ArchivedItem `json:"archived"`
}

// Service implements the cart operations and the shipment committer.
type Service struct {
	store    repository.Store
	sessions SessionStore
	metrics  *metrics.Recorder
	logger   *zap.Logger
}

// NewService wires a new shipment service instance.
func NewService(store repository.Store, sessions SessionStore, recorder *metrics.Recorder, logger *zap.Logger) *Service {
	svc := &Service{
		store:    store,
		sessions: sessions,
		metrics:  recorder,
		logger:   logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// Cart returns the session cart after pruning ids no longer in stock.
func (s *Service) Cart(ctx context.Context, key models.SessionKey) (CartView, error) {
	session, stock, pruned, err := s.load(ctx, key)
	if err != nil {
		return CartView{}, err
	}
	return view(key, session, stock, pruned), nil
}

// Add unions ids into the cart. Ids that are not in the partition's stock are
// dropped by the reconcile that follows.
func (s *Service) Add(ctx context.Context, key models.SessionKey, ids []string) (CartView, error) {
	return s.update(ctx, key, func(session *models.ShipmentSession) {
		session.Cart.Add(ids...)
	})
}

// Remove takes ids out of the cart.
func (s *Service) Remove(ctx context.Context, key models.SessionKey, ids []string) (CartView, error) {
	return s.update(ctx, key, func(session *models.ShipmentSession) {
		session.Cart.Remove(ids...)
	})
}

// Clear empties the cart and closes the shipment dialog.
func (s *Service) Clear(ctx context.Context, key models.SessionKey) (CartView, error) {
	return s.update(ctx, key, func(session *models.ShipmentSession) {
		session.Cart.Clear()
		session.DialogOpen = false
	})
}

// Forget drops every piece of state held for the session key.
func (s *Service) Forget(ctx context.Context, key models.SessionKey) error {
	if err := s.sessions.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// OpenDialog marks the shipment dialog as open. An empty cart cannot be shipped.
func (s *Service) OpenDialog(ctx context.Context, key models.SessionKey) (CartView, error) {
	session, stock, pruned, err := s.load(ctx, key)
	if err != nil {
		return CartView{}, err
	}
	if session.Cart.Len() == 0 {
		return CartView{}, models.ErrEmptyCart
	}

	session.DialogOpen = true
	if err := s.save(ctx, key, session); err != nil {
		return CartView{}, err
	}
	return view(key, session, stock, pruned), nil
}

// Manifest renders the shipment document for the current cart. It reads the
// session and the stock but never writes either.
func (s *Service) Manifest(ctx context.Context, key models.SessionKey, details models.ShipmentDetails) (models.Manifest, error) {
	if !key.Partition.Valid() {
		return models.Manifest{}, models.ErrInvalidPartition
	}
	details = details.Normalize()
	if err := details.Validate(); err != nil {
		return models.Manifest{}, err
	}

	session, err := s.sessions.Load(ctx, key)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("load session: %w", err)
	}
	stock, err := s.store.ListStock(ctx, key.Partition)
	if err != nil {
		return models.Manifest{}, err
	}

	session.Cart.Reconcile(stockIDs(stock))
	items := selected(session.Cart, stock)
	if len(items) == 0 {
		return models.Manifest{}, models.ErrEmptyCart
	}
	return models.NewManifest(key.Partition, details, items), nil
}

// Commit moves every cart item into the archive with the shipment details and
// resets the session. Preconditions are checked against a fresh read of the
// stock; the store re-checks them inside its transaction.
func (s *Service) Commit(ctx context.Context, key models.SessionKey, details models.ShipmentDetails) (CommitResult, error) {
	if !key.Partition.Valid() {
		return CommitResult{}, models.ErrInvalidPartition
	}
	details = details.Normalize()
	if err := details.Validate(); err != nil {
		return CommitResult{}, err
	}
	if details.ShipDate.IsZero() {
		return CommitResult{}, models.ErrShipDateRequired
	}

	session, stock, _, err := s.load(ctx, key)
	if err != nil {
		return CommitResult{}, err
	}
	if session.Cart.Len() == 0 {
		return CommitResult{}, models.ErrEmptyCart
	}

	items := selected(session.Cart, stock)
	archived, err := s.store.ShipStock(ctx, key.Partition, details, session.Cart.IDs())
	if err != nil {
		var missing *models.ItemsNotInStockError
		if errors.As(err, &missing) {
			// Lost a race with another session; prune so the next read is consistent.
			session.Cart.Remove(missing.IDs...)
			if saveErr := s.save(ctx, key, session); saveErr != nil {
				s.logger.Warn("failed to prune cart after lost shipment race",
					zap.String("session", key.String()),
					zap.Strings("ids", missing.IDs),
					zap.Error(saveErr))
			}
			return CommitResult{}, err
		}
		return CommitResult{}, fmt.Errorf("commit shipment: %w", err)
	}

	session.Reset()
	if err := s.save(ctx, key, session); err != nil {
		// The shipment is durable; a stale cart is pruned on the next read.
		s.logger.Warn("failed to reset session after shipment", zap.String("session", key.String()), zap.Error(err))
	}

	s.metrics.ItemsShipped(string(key.Partition), len(archived))
	s.logger.Info("shipment committed",
		zap.String("partition", string(key.Partition)),
		zap.Int("items", len(archived)),
		zap.String("shipper", details.ShipperName),
		zap.String("destination", details.ShipDestination),
		zap.String("ship_date", details.ShipDate.Format(models.DateLayout)))

	return CommitResult{
		Manifest: models.NewManifest(key.Partition, details, items),
		Archived: archived,
	}, nil
}

func (s *Service) update(ctx context.Context, key models.SessionKey, mutate func(*models.ShipmentSession)) (CartView, error) {
	if !key.Partition.Valid() {
		return CartView{}, models.ErrInvalidPartition
	}
	session, err := s.sessions.Load(ctx, key)
	if err != nil {
		return CartView{}, fmt.Errorf("load session: %w", err)
	}
	mutate(&session)

	stock, err := s.store.ListStock(ctx, key.Partition)
	if err != nil {
		return CartView{}, err
	}
	pruned := session.Cart.Reconcile(stockIDs(stock))

	if err := s.save(ctx, key, session); err != nil {
		return CartView{}, err
	}
	return view(key, session, stock, pruned), nil
}

// load reads the session and reconciles its cart against the current stock.
// A pruned cart is saved back so other readers see the same state.
func (s *Service) load(ctx context.Context, key models.SessionKey) (models.ShipmentSession, []models.StockItem, []string, error) {
	if !key.Partition.Valid() {
		return models.ShipmentSession{}, nil, nil, models.ErrInvalidPartition
	}
	session, err := s.sessions.Load(ctx, key)
	if err != nil {
		return models.ShipmentSession{}, nil, nil, fmt.Errorf("load session: %w", err)
	}
	stock, err := s.store.ListStock(ctx, key.Partition)
	if err != nil {
		return models.ShipmentSession{}, nil, nil, err
	}

	pruned := session.Cart.Reconcile(stockIDs(stock))
	if len(pruned) > 0 {
		s.logger.Info("pruned shipped items from cart",
			zap.String("session", key.String()),
			zap.Strings("ids", pruned))
		if err := s.save(ctx, key, session); err != nil {
			return models.ShipmentSession{}, nil, nil, err
		}
	}
	return session, stock, pruned, nil
}

func (s *Service) save(ctx context.Context, key models.SessionKey, session models.ShipmentSession) error {
	if err := s.sessions.Save(ctx, key, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func view(key models.SessionKey, session models.ShipmentSession, stock []models.StockItem, pruned []string) CartView {
	return CartView{
		Partition:    key.Partition,
		IDs:          session.Cart.IDs(),
		Items:        selected(session.Cart, stock),
		DialogOpen:   session.DialogOpen,
		ResetCounter: session.ResetCounter,
		Pruned:       pruned,
	}
}

func stockIDs(items []models.StockItem) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		ids[item.ID] = struct{}{}
	}
	return ids
}

func selected(cart models.Cart, stock []models.StockItem) []models.StockItem {
	items := make([]models.StockItem, 0, cart.Len())
	for _, item := range stock {
		if cart.Contains(item.ID) {
			items = append(items, item)
		}
	}
	models.SortStock(items)
	return items
}
