package sqlstore

import (
	"time"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

type stockRecord struct {
	ID        string  `gorm:"column:id;primaryKey"`
	Name      string  `gorm:"column:name"`
	Article   string  `gorm:"column:article"`
	Barcode   string  `gorm:"column:barcode;index"`
	Quantity  float64 `gorm:"column:quantity"`
	BoxNumber string  `gorm:"column:box_number"`
	Partition string  `gorm:"column:partition;index"`
}

func (stockRecord) TableName() string { return "stock" }

type archiveRecord struct {
	ID              string  `gorm:"column:id;primaryKey"`
	Name            string  `gorm:"column:name"`
	Article         string  `gorm:"column:article"`
	Barcode         string  `gorm:"column:barcode"`
	Quantity        float64 `gorm:"column:quantity"`
	BoxNumber       string  `gorm:"column:box_number"`
	Partition       string  `gorm:"column:partition;index"`
	ShipDate        string  `gorm:"column:ship_date"`
	ShipperName     string  `gorm:"column:shipper_name"`
	ShipDestination string  `gorm:"column:ship_destination"`
}

func (archiveRecord) TableName() string { return "archive" }

// archiveMetadataColumns are added in place to archive tables created before
// shipments carried metadata.
var archiveMetadataColumns = []string{"ship_date", "shipper_name", "ship_destination"}

type storageLogRecord struct {
	LogDate    string `gorm:"column:log_date;primaryKey"`
	BoxesIP    int    `gorm:"column:boxes_ip"`
	PalletsIP  int    `gorm:"column:pallets_ip"`
	CostIP     int    `gorm:"column:cost_ip"`
	BoxesOOO   int    `gorm:"column:boxes_ooo"`
	PalletsOOO int    `gorm:"column:pallets_ooo"`
	CostOOO    int    `gorm:"column:cost_ooo"`
	TotalCost  int    `gorm:"column:total_cost"`
}

func (storageLogRecord) TableName() string { return "daily_storage_log" }

func stockRecordFrom(item models.StockItem) stockRecord {
	return stockRecord{
		ID:        item.ID,
		Name:      item.Name,
		Article:   item.Article,
		Barcode:   item.Barcode,
		Quantity:  item.Quantity,
		BoxNumber: item.BoxNumber,
		Partition: string(item.Partition),
	}
}

func (r stockRecord) toModel() models.StockItem {
	return models.StockItem{
		ID:        r.ID,
		Name:      r.Name,
		Article:   r.Article,
		Barcode:   r.Barcode,
		Quantity:  r.Quantity,
		BoxNumber: r.BoxNumber,
		Partition: models.NormalizePartition(r.Partition),
	}
}

func archiveRecordFrom(item models.ArchivedItem) archiveRecord {
	shipDate := ""
	if !item.ShipDate.IsZero() {
		shipDate = item.ShipDate.Format(models.DateLayout)
	}
	return archiveRecord{
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

func (r archiveRecord) toModel() models.ArchivedItem {
	// Rows archived before metadata existed have an empty date.
	shipDate, _ := time.Parse(models.DateLayout, r.ShipDate)
	return models.ArchivedItem{
		StockItem: models.StockItem{
			ID:        r.ID,
			Name:      r.Name,
			Article:   r.Article,
			Barcode:   r.Barcode,
			Quantity:  r.Quantity,
			BoxNumber: r.BoxNumber,
			Partition: models.NormalizePartition(r.Partition),
		},
		ShipDate:        shipDate,
		ShipperName:     r.ShipperName,
		ShipDestination: r.ShipDestination,
	}
}

func storageLogRecordFrom(entry models.DailyStorageLogEntry) storageLogRecord {
	return storageLogRecord(entry)
}

func (r storageLogRecord) toModel() models.DailyStorageLogEntry {
	return models.DailyStorageLogEntry(r)
}
