package models

import "time"

const (
	// BoxesPerPallet is the fixed packing constant.
	BoxesPerPallet = 16
	// PalletDailyRate is the storage fee per pallet per day.
	PalletDailyRate = 50
)

// DailyStorageLogEntry is the immutable accrual row written once per date.
type DailyStorageLogEntry struct {
	LogDate    string `bson:"_id" json:"log_date"`
	BoxesIP    int    `bson:"boxes_ip" json:"boxes_ip"`
	PalletsIP  int    `bson:"pallets_ip" json:"pallets_ip"`
	CostIP     int    `bson:"cost_ip" json:"cost_ip"`
	BoxesOOO   int    `bson:"boxes_ooo" json:"boxes_ooo"`
	PalletsOOO int    `bson:"pallets_ooo" json:"pallets_ooo"`
	CostOOO    int    `bson:"cost_ooo" json:"cost_ooo"`
	TotalCost  int    `bson:"total_cost" json:"total_cost"`
}

// PalletsFor returns the number of pallets needed for the boxes.
func PalletsFor(boxes int) int {
	if boxes <= 0 {
		return 0
	}
	return (boxes + BoxesPerPallet - 1) / BoxesPerPallet
}

// StorageFigures is the accrual calculation for one partition.
type StorageFigures struct {
	Boxes   int `json:"boxes"`
	Pallets int `json:"pallets"`
	Cost    int `json:"cost"`
}

// FiguresFor computes pallets and cost for a box count.
func FiguresFor(boxes int) StorageFigures {
	pallets := PalletsFor(boxes)
	return StorageFigures{Boxes: boxes, Pallets: pallets, Cost: pallets * PalletDailyRate}
}

// CountBoxes counts stock rows per partition; every row is one box.
func CountBoxes(items []StockItem) map[Partition]int {
	counts := make(map[Partition]int, len(Partitions))
	for _, item := range items {
		counts[item.Partition]++
	}
	return counts
}

// NewDailyStorageLogEntry builds the log row for the local calendar date of day.
func NewDailyStorageLogEntry(day time.Time, boxesIP, boxesOOO int) DailyStorageLogEntry {
	ip := FiguresFor(boxesIP)
	ooo := FiguresFor(boxesOOO)
	return DailyStorageLogEntry{
		LogDate:    day.Format(DateLayout),
		BoxesIP:    ip.Boxes,
		PalletsIP:  ip.Pallets,
		CostIP:     ip.Cost,
		BoxesOOO:   ooo.Boxes,
		PalletsOOO: ooo.Pallets,
		CostOOO:    ooo.Cost,
		TotalCost:  ip.Cost + ooo.Cost,
	}
}

// TotalRow is the aggregate quantity of one barcode within a partition.
type TotalRow struct {
	Partition Partition `json:"partition"`
	Barcode   string    `json:"barcode"`
	Quantity  float64   `json:"quantity"`
}
