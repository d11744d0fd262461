package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/repository"
)

const (
	stockCollection      = "stock"
	archiveCollection    = "archive"
	storageLogCollection = "daily_storage_log"
)

// MongoDBRepository implements repository.Store for MongoDB. Multi-document
// mutations use transactions, so the deployment must be a replica set.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ repository.Store = (*MongoDBRepository)(nil)

type stockDocument struct {
	ID        string  `bson:"_id"`
	Name      string  `bson:"name"`
	Article   string  `bson:"article"`
	Barcode   string  `bson:"barcode"`
	Quantity  float64 `bson:"quantity"`
	BoxNumber string  `bson:"box_number"`
	Partition string  `bson:"partition"`
}

type archiveDocument struct {
	ID              string  `bson:"_id"`
	Name            string  `bson:"name"`
	Article         string  `bson:"article"`
	Barcode         string  `bson:"barcode"`
	Quantity        float64 `bson:"quantity"`
	BoxNumber       string  `bson:"box_number"`
	Partition       string  `bson:"partition"`
	ShipDate        string  `bson:"ship_date"`
	ShipperName     string  `bson:"shipper_name"`
	ShipDestination string  `bson:"ship_destination"`
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

// Migrate ensures the partition indexes exist. Collections are schemaless, so
// archive documents without metadata simply decode with empty fields.
func (r *MongoDBRepository) Migrate(ctx context.Context) error {
	for _, name := range []string{stockCollection, archiveCollection} {
		_, err := r.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "partition", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("create partition index on %s: %w", name, err)
		}
	}
	return nil
}

func (r *MongoDBRepository) ListStock(ctx context.Context, partition models.Partition) ([]models.StockItem, error) {
	var docs []stockDocument
	if err := r.find(ctx, stockCollection, partitionFilter(partition), &docs); err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}

	items := make([]models.StockItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toModel())
	}
	models.SortStock(items)
	return items, nil
}

func (r *MongoDBRepository) StockIDs(ctx context.Context, partition models.Partition) (map[string]struct{}, error) {
	var docs []struct {
		ID string `bson:"_id"`
	}
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.db.Collection(stockCollection).Find(ctx, partitionFilter(partition), opts)
	if err != nil {
		return nil, fmt.Errorf("list stock ids: %w", err)
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode stock ids: %w", err)
	}

	set := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		set[doc.ID] = struct{}{}
	}
	return set, nil
}

func (r *MongoDBRepository) InsertStock(ctx context.Context, items []models.StockItem) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(items))
	for _, item := range items {
		docs = append(docs, stockDocumentFrom(item))
	}

	return r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.db.Collection(stockCollection).InsertMany(sc, docs); err != nil {
			return fmt.Errorf("insert stock batch: %w", err)
		}
		return nil
	})
}

func (r *MongoDBRepository) DeleteStock(ctx context.Context, partition models.Partition, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	filter := partitionFilter(partition)
	filter["_id"] = bson.M{"$in": ids}

	var deleted int64
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := r.db.Collection(stockCollection).DeleteMany(sc, filter)
		if err != nil {
			return fmt.Errorf("delete stock: %w", err)
		}
		deleted = res.DeletedCount
		return nil
	})
	return int(deleted), err
}

func (r *MongoDBRepository) ShipStock(ctx context.Context, partition models.Partition, details models.ShipmentDetails, ids []string) ([]models.ArchivedItem, error) {
	if len(ids) == 0 {
		return nil, models.ErrEmptyCart
	}

	filter := partitionFilter(partition)
	filter["_id"] = bson.M{"$in": ids}

	var shipped []models.ArchivedItem
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		shipped = nil

		var docs []stockDocument
		if err := r.find(sc, stockCollection, filter, &docs); err != nil {
			return fmt.Errorf("load stock for shipment: %w", err)
		}

		present := make(map[string]struct{}, len(docs))
		for _, doc := range docs {
			present[doc.ID] = struct{}{}
		}
		var missing []string
		for _, id := range ids {
			if _, ok := present[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return &models.ItemsNotInStockError{IDs: missing}
		}

		writes := make([]mongo.WriteModel, 0, len(docs))
		for _, doc := range docs {
			item := details.Archive(doc.toModel())
			shipped = append(shipped, item)
			writes = append(writes, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": item.ID}).
				SetReplacement(archiveDocumentFrom(item)).
				SetUpsert(true))
		}
		if _, err := r.db.Collection(archiveCollection).BulkWrite(sc, writes); err != nil {
			return fmt.Errorf("archive shipped items: %w", err)
		}

		if _, err := r.db.Collection(stockCollection).DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
			return fmt.Errorf("remove shipped items from stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	models.SortArchive(shipped)
	return shipped, nil
}

func (r *MongoDBRepository) ListArchive(ctx context.Context, partition models.Partition) ([]models.ArchivedItem, error) {
	var docs []archiveDocument
	if err := r.find(ctx, archiveCollection, partitionFilter(partition), &docs); err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	items := make([]models.ArchivedItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toModel())
	}
	models.SortArchive(items)
	return items, nil
}

func (r *MongoDBRepository) RestoreArchived(ctx context.Context, ids []string) ([]models.StockItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var restored []models.StockItem
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		restored = nil

		var docs []archiveDocument
		if err := r.find(sc, archiveCollection, bson.M{"_id": bson.M{"$in": ids}}, &docs); err != nil {
			return fmt.Errorf("load archive for restore: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}

		writes := make([]mongo.WriteModel, 0, len(docs))
		found := make([]string, 0, len(docs))
		for _, doc := range docs {
			item := doc.toModel().Restore()
			restored = append(restored, item)
			found = append(found, item.ID)
			writes = append(writes, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": item.ID}).
				SetReplacement(stockDocumentFrom(item)).
				SetUpsert(true))
		}
		if _, err := r.db.Collection(stockCollection).BulkWrite(sc, writes); err != nil {
			return fmt.Errorf("restore into stock: %w", err)
		}

		if _, err := r.db.Collection(archiveCollection).DeleteMany(sc, bson.M{"_id": bson.M{"$in": found}}); err != nil {
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

func (r *MongoDBRepository) PurgeArchive(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var purged int64
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := r.db.Collection(archiveCollection).DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return fmt.Errorf("purge archive: %w", err)
		}
		purged = res.DeletedCount
		return nil
	})
	return int(purged), err
}

func (r *MongoDBRepository) HasStorageLog(ctx context.Context, logDate string) (bool, error) {
	count, err := r.db.Collection(storageLogCollection).CountDocuments(ctx, bson.M{"_id": logDate})
	if err != nil {
		return false, fmt.Errorf("check storage log: %w", err)
	}
	return count > 0, nil
}

// InsertStorageLog relies on log_date being the document _id.
func (r *MongoDBRepository) InsertStorageLog(ctx context.Context, entry models.DailyStorageLogEntry) error {
	_, err := r.db.Collection(storageLogCollection).InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrAlreadyLogged
	}
	if err != nil {
		return fmt.Errorf("insert storage log: %w", err)
	}
	return nil
}

func (r *MongoDBRepository) ListStorageLogs(ctx context.Context) ([]models.DailyStorageLogEntry, error) {
	var entries []models.DailyStorageLogEntry
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := r.db.Collection(storageLogCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list storage logs: %w", err)
	}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode storage logs: %w", err)
	}
	return entries, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) find(ctx context.Context, collection string, filter bson.M, out interface{}) error {
	cursor, err := r.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (r *MongoDBRepository) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	txnCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = session.WithTransaction(txnCtx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	var notInStock *models.ItemsNotInStockError
	if err != nil && !errors.As(err, &notInStock) {
		r.logger.Warn("mongodb transaction aborted", zap.Error(err))
	}
	return err
}

func partitionFilter(partition models.Partition) bson.M {
	if partition == "" {
		return bson.M{}
	}
	return bson.M{"partition": bson.M{"$in": partition.StoredAliases()}}
}

func stockDocumentFrom(item models.StockItem) stockDocument {
	return stockDocument{
		ID:        item.ID,
		Name:      item.Name,
		Article:   item.Article,
		Barcode:   item.Barcode,
		Quantity:  item.Quantity,
		BoxNumber: item.BoxNumber,
		Partition: string(item.Partition),
	}
}

func (d stockDocument) toModel() models.StockItem {
	return models.StockItem{
		ID:        d.ID,
		Name:      d.Name,
		Article:   d.Article,
		Barcode:   d.Barcode,
		Quantity:  d.Quantity,
		BoxNumber: d.BoxNumber,
		Partition: models.NormalizePartition(d.Partition),
	}
}

func archiveDocumentFrom(item models.ArchivedItem) archiveDocument {
	shipDate := ""
	if !item.ShipDate.IsZero() {
		shipDate = item.ShipDate.Format(models.DateLayout)
	}
	return archiveDocument{
		ID:              item.ID,
		Name:            item.Name,
		Article:         item.Article,
		Barcode:         item.Barcode,
		Quantity:        item.Quantity,
		BoxNumber:       item.BoxNumber,
		Partition:       string(item.Partition),
		ShipDate:        shipDate,
		ShipperName:     item.ShipperName,
		ShipDestination: item.ShipDestination,
	}
}

func (d archiveDocument) toModel() models.ArchivedItem {
	shipDate, _ := time.Parse(models.DateLayout, d.ShipDate)
	return models.ArchivedItem{
		StockItem: stockDocument{
			ID:        d.ID,
			Name:      d.Name,
			Article:   d.Article,
			Barcode:   d.Barcode,
			Quantity:  d.Quantity,
			BoxNumber: d.BoxNumber,
			Partition: d.Partition,
		}.toModel(),
		ShipDate:        shipDate,
		ShipperName:     d.ShipperName,
		ShipDestination: d.ShipDestination,
	}
}
