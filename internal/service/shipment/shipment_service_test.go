package shipment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/internal/repository"
	"github.com/mamadbah2/warehouse/internal/repository/sessions"
	"github.com/mamadbah2/warehouse/internal/repository/sqlstore"
)

type fixture struct {
	svc      *Service
	store    *sqlstore.SQLRepository
	sessions *sessions.MemoryStore
}

func setup(t *testing.T, items ...models.StockItem) fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.NewSQLRepository(ctx, sqlstore.DriverSQLite, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })
	require.NoError(t, store.Migrate(ctx))
	if len(items) > 0 {
		require.NoError(t, store.InsertStock(ctx, items))
	}

	memory := sessions.NewMemoryStore()
	return fixture{
		svc:      NewService(store, memory, metrics.New(), zap.NewNop()),
		store:    store,
		sessions: memory,
	}
}

func item(id, barcode string, partition models.Partition) models.StockItem {
	return models.StockItem{
		ID:        id,
		Name:      "Новый товар",
		Article:   "-",
		Barcode:   barcode,
		Quantity:  20,
		BoxNumber: "K1",
		Partition: partition,
	}
}

func details() models.ShipmentDetails {
	return models.ShipmentDetails{
		ShipperName:     "Ivanov",
		ShipDestination: "Warehouse B",
		ShipDate:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

var ipKey = models.SessionKey{SessionID: "s1", Partition: models.PartitionIP}

func TestCommit_ShipsCartIntoArchive(t *testing.T) {
	f := setup(t, item("a", "111", models.PartitionIP))
	ctx := context.Background()

	view, err := f.svc.Add(ctx, ipKey, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, view.IDs)

	view, err = f.svc.OpenDialog(ctx, ipKey)
	require.NoError(t, err)
	assert.True(t, view.DialogOpen)

	result, err := f.svc.Commit(ctx, ipKey, details())
	require.NoError(t, err)
	require.Len(t, result.Archived, 1)
	assert.Equal(t, "Ivanov", result.Manifest.Details.ShipperName)

	stock, err := f.store.ListStock(ctx, models.PartitionIP)
	require.NoError(t, err)
	assert.Empty(t, stock)

	archived, err := f.store.ListArchive(ctx, models.PartitionIP)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "a", archived[0].ID)
	assert.Equal(t, "Ivanov", archived[0].ShipperName)
	assert.Equal(t, "Warehouse B", archived[0].ShipDestination)
	assert.Equal(t, "2024-01-10", archived[0].ShipDate.Format(models.DateLayout))

	view, err = f.svc.Cart(ctx, ipKey)
	require.NoError(t, err)
	assert.Empty(t, view.IDs)
	assert.False(t, view.DialogOpen)
	assert.Equal(t, 1, view.ResetCounter)
}

func TestCommit_RejectsBlankShipper(t *testing.T) {
	f := setup(t, item("a", "111", models.PartitionIP))
	ctx := context.Background()

	_, err := f.svc.Add(ctx, ipKey, []string{"a"})
	require.NoError(t, err)

	bad := details()
	bad.ShipperName = "   "
	_, err = f.svc.Commit(ctx, ipKey, bad)
	assert.ErrorIs(t, err, models.ErrShipperRequired)

	bad = details()
	bad.ShipDestination = ""
	_, err = f.svc.Commit(ctx, ipKey, bad)
	assert.ErrorIs(t, err, models.ErrDestinationRequired)

	stock, err := f.store.ListStock(ctx, models.PartitionIP)
	require.NoError(t, err)
	assert.Len(t, stock, 1)

	archived, err := f.store.ListArchive(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, archived)

	view, err := f.svc.Cart(ctx, ipKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, view.IDs, "a rejected commit keeps the cart")
}

func TestCommit_EmptyCart(t *testing.T) {
	f := setup(t, item("a", "111", models.PartitionIP))

	_, err := f.svc.Commit(context.Background(), ipKey, details())
	assert.ErrorIs(t, err, models.ErrEmptyCart)
}

func TestCart_PrunesItemsShippedByAnotherSession(t *testing.T) {
	f := setup(t,
		item("a", "111", models.PartitionIP),
		item("b", "222", models.PartitionIP),
	)
	ctx := context.Background()
	otherKey := models.SessionKey{SessionID: "s2", Partition: models.PartitionIP}

	_, err := f.svc.Add(ctx, ipKey, []string{"a", "b"})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, otherKey, []string{"a"})
	require.NoError(t, err)

	_, err = f.svc.Commit(ctx, otherKey, details())
	require.NoError(t, err)

	view, err := f.svc.Cart(ctx, ipKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, view.IDs)
	assert.Equal(t, []string{"a"}, view.Pruned)

	stored, err := f.sessions.Load(ctx, ipKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, stored.Cart.IDs(), "pruned cart is saved back")

	result, err := f.svc.Commit(ctx, ipKey, details())
	require.NoError(t, err)
	require.Len(t, result.Archived, 1)
	assert.Equal(t, "b", result.Archived[0].ID)
}

func TestCommit_ReconcilesStaleCartBeforeShipping(t *testing.T) {
	f := setup(t,
		item("a", "111", models.PartitionIP),
		item("b", "222", models.PartitionIP),
	)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, ipKey, []string{"a", "b"})
	require.NoError(t, err)

	// Another process deletes "a" behind this session's back.
	_, err = f.store.DeleteStock(ctx, models.PartitionIP, []string{"a"})
	require.NoError(t, err)

	result, err := f.svc.Commit(ctx, ipKey, details())
	require.NoError(t, err)
	require.Len(t, result.Archived, 1)
	assert.Equal(t, "b", result.Archived[0].ID)
}

func TestCart_IsScopedPerPartition(t *testing.T) {
	f := setup(t,
		item("a", "111", models.PartitionIP),
		item("o", "222", models.PartitionOOO),
	)
	ctx := context.Background()

	view, err := f.svc.Add(ctx, ipKey, []string{"a", "o"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, view.IDs, "ids from another partition are dropped")

	oooView, err := f.svc.Cart(ctx, models.SessionKey{SessionID: "s1", Partition: models.PartitionOOO})
	require.NoError(t, err)
	assert.Empty(t, oooView.IDs)
}

func TestRemoveClearAndForget(t *testing.T) {
	f := setup(t,
		item("a", "111", models.PartitionIP),
		item("b", "222", models.PartitionIP),
	)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, ipKey, []string{"a", "b"})
	require.NoError(t, err)

	view, err := f.svc.Remove(ctx, ipKey, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, view.IDs)

	_, err = f.svc.OpenDialog(ctx, ipKey)
	require.NoError(t, err)

	view, err = f.svc.Clear(ctx, ipKey)
	require.NoError(t, err)
	assert.Empty(t, view.IDs)
	assert.False(t, view.DialogOpen)

	_, err = f.svc.OpenDialog(ctx, ipKey)
	assert.ErrorIs(t, err, models.ErrEmptyCart)

	_, err = f.svc.Add(ctx, ipKey, []string{"a"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Forget(ctx, ipKey))
	view, err = f.svc.Cart(ctx, ipKey)
	require.NoError(t, err)
	assert.Empty(t, view.IDs)
}

func TestManifest_DoesNotMutate(t *testing.T) {
	f := setup(t,
		item("b", "222", models.PartitionIP),
		item("a", "111", models.PartitionIP),
	)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, ipKey, []string{"a", "b"})
	require.NoError(t, err)
	before, err := f.sessions.Load(ctx, ipKey)
	require.NoError(t, err)

	first, err := f.svc.Manifest(ctx, ipKey, details())
	require.NoError(t, err)
	second, err := f.svc.Manifest(ctx, ipKey, details())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "a", first.Items[0].ID)

	after, err := f.sessions.Load(ctx, ipKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	stock, err := f.store.ListStock(ctx, models.PartitionIP)
	require.NoError(t, err)
	assert.Len(t, stock, 2)
	archived, err := f.store.ListArchive(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, archived)

	_, err = f.svc.Manifest(ctx, ipKey, models.ShipmentDetails{ShipDestination: "x"})
	assert.ErrorIs(t, err, models.ErrShipperRequired)
}

// racedStore reports every id as already shipped, as when another session
// commits between reconcile and ship.
type racedStore struct {
	repository.Store
}

func (racedStore) ShipStock(_ context.Context, _ models.Partition, _ models.ShipmentDetails, ids []string) ([]models.ArchivedItem, error) {
	return nil, &models.ItemsNotInStockError{IDs: ids}
}

type flakySessions struct {
	*sessions.MemoryStore
	failSave bool
}

func (f *flakySessions) Save(ctx context.Context, key models.SessionKey, session models.ShipmentSession) error {
	if f.failSave {
		return errors.New("redis: connection refused")
	}
	return f.MemoryStore.Save(ctx, key, session)
}

func TestCommit_LostRaceLogsFailedPrune(t *testing.T) {
	f := setup(t, item("a", "111", models.PartitionIP))
	ctx := context.Background()

	core, logs := observer.New(zapcore.WarnLevel)
	store := &flakySessions{MemoryStore: sessions.NewMemoryStore()}
	svc := NewService(racedStore{Store: f.store}, store, nil, zap.New(core))

	_, err := svc.Add(ctx, ipKey, []string{"a"})
	require.NoError(t, err)
	store.failSave = true

	_, err = svc.Commit(ctx, ipKey, details())
	var missing *models.ItemsNotInStockError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"a"}, missing.IDs)

	warnings := logs.FilterMessage("failed to prune cart after lost shipment race").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "save session: redis: connection refused", warnings[0].ContextMap()["error"])
}
