package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

// setupTestRepository needs a replica set, since the store uses transactions.
func setupTestRepository(t *testing.T) *MongoDBRepository {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := NewMongoDBRepository(ctx, uri, "warehouse_test_"+uuid.NewString()[:8], zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.db.Drop(context.Background())
		_ = repo.Close(context.Background())
	})

	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func stockItem(id, barcode string, partition models.Partition) models.StockItem {
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

func shipment() models.ShipmentDetails {
	return models.ShipmentDetails{
		ShipperName:     "Ivanov",
		ShipDestination: "Warehouse B",
		ShipDate:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestShipStock_MovesItemsToArchive(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertStock(ctx, []models.StockItem{
		stockItem("a", "111", models.PartitionIP),
		stockItem("b", "222", models.PartitionIP),
	}))

	shipped, err := repo.ShipStock(ctx, models.PartitionIP, shipment(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, "Ivanov", shipped[0].ShipperName)

	stock, err := repo.ListStock(ctx, models.PartitionIP)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, "b", stock[0].ID)

	archived, err := repo.ListArchive(ctx, models.PartitionIP)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "2024-01-10", archived[0].ShipDate.Format(models.DateLayout))
	assert.Equal(t, "Warehouse B", archived[0].ShipDestination)
}

func TestShipStock_MissingItemChangesNothing(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertStock(ctx, []models.StockItem{
		stockItem("a", "111", models.PartitionIP),
		stockItem("o", "222", models.PartitionOOO),
	}))

	_, err := repo.ShipStock(ctx, models.PartitionIP, shipment(), []string{"a", "o", "gone"})

	var missing *models.ItemsNotInStockError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"gone", "o"}, missing.IDs)

	stock, err := repo.ListStock(ctx, "")
	require.NoError(t, err)
	assert.Len(t, stock, 2)

	archived, err := repo.ListArchive(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestListStock_NormalizesLegacyPartition(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	_, err := repo.db.Collection(stockCollection).InsertOne(ctx, bson.M{
		"_id": "legacy", "barcode": "111", "quantity": 1.0, "box_number": "K1", "partition": "000",
	})
	require.NoError(t, err)

	stock, err := repo.ListStock(ctx, models.PartitionOOO)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, models.PartitionOOO, stock[0].Partition)
}

func TestRestoreAndPurge(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	original := stockItem("a", "111", models.PartitionOOO)
	require.NoError(t, repo.InsertStock(ctx, []models.StockItem{original, stockItem("b", "222", models.PartitionOOO)}))
	_, err := repo.ShipStock(ctx, models.PartitionOOO, shipment(), []string{"a", "b"})
	require.NoError(t, err)

	restored, err := repo.RestoreArchived(ctx, []string{"a", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []models.StockItem{original}, restored)

	purged, err := repo.PurgeArchive(ctx, []string{"b", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	archived, err := repo.ListArchive(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, archived)

	stock, err := repo.ListStock(ctx, models.PartitionOOO)
	require.NoError(t, err)
	assert.Equal(t, []models.StockItem{original}, stock)
}

func TestStorageLog_OnePerDate(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	entry := models.NewDailyStorageLogEntry(time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC), 33, 0)
	require.NoError(t, repo.InsertStorageLog(ctx, entry))
	assert.ErrorIs(t, repo.InsertStorageLog(ctx, entry), models.ErrAlreadyLogged)

	logged, err := repo.HasStorageLog(ctx, entry.LogDate)
	require.NoError(t, err)
	assert.True(t, logged)

	history, err := repo.ListStorageLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.DailyStorageLogEntry{entry}, history)
}
