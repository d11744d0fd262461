package models

import (
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the storage format of ship and log dates.
	DateLayout = "2006-01-02"

	// DeleteConfirmationPhrase must be typed before any bulk deletion.
	DeleteConfirmationPhrase = "УДАЛИТЬ"
)

// StockItem is one on-hand box row in the stock ledger.
type StockItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Article   string    `json:"article"`
	Barcode   string    `json:"barcode"`
	Quantity  float64   `json:"quantity"`
	BoxNumber string    `json:"box_number"`
	Partition Partition `json:"partition"`
}

// ArchivedItem is a shipped stock item together with its shipment metadata.
type ArchivedItem struct {
	StockItem
	ShipDate        time.Time `json:"ship_date"`
	ShipperName     string    `json:"shipper_name"`
	ShipDestination string    `json:"ship_destination"`
}

// Restore returns the stock row the archived item was shipped from.
func (a ArchivedItem) Restore() StockItem {
	return a.StockItem
}

// Matches reports whether any displayed field contains the query, ignoring case.
func (s StockItem) Matches(query string) bool {
	return containsFold(query, s.fields()...)
}

// Matches extends StockItem.Matches with the shipment metadata columns.
func (a ArchivedItem) Matches(query string) bool {
	fields := append(a.fields(), a.ShipperName, a.ShipDestination, a.ShipDate.Format(DateLayout))
	return containsFold(query, fields...)
}

func (s StockItem) fields() []string {
	return []string{
		s.Barcode,
		strconv.FormatFloat(s.Quantity, 'f', -1, 64),
		s.BoxNumber,
		s.Article,
		s.Name,
		s.Partition.Label(),
	}
}

func containsFold(query string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Confirmed reports whether the typed text matches DeleteConfirmationPhrase.
func Confirmed(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), DeleteConfirmationPhrase)
}

// ReceiptRow is one positional row of a receipt upload.
type ReceiptRow struct {
	Barcode   string
	Quantity  float64
	BoxNumber string
}
