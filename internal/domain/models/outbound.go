package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// ShipmentDetails carries the metadata typed into the shipment dialog.
type ShipmentDetails struct {
	ShipperName     string    `json:"shipper_name"`
	ShipDestination string    `json:"ship_destination"`
	ShipDate        time.Time `json:"ship_date"`
}

// Normalize trims the free-text fields and truncates the date to a calendar day.
func (d ShipmentDetails) Normalize() ShipmentDetails {
	d.ShipperName = strings.TrimSpace(d.ShipperName)
	d.ShipDestination = strings.TrimSpace(d.ShipDestination)
	if !d.ShipDate.IsZero() {
		y, m, day := d.ShipDate.Date()
		d.ShipDate = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// Validate reports the first missing required field.
func (d ShipmentDetails) Validate() error {
	switch {
	case strings.TrimSpace(d.ShipperName) == "":
		return ErrShipperRequired
	case strings.TrimSpace(d.ShipDestination) == "":
		return ErrDestinationRequired
	}
	return nil
}

// Archive attaches the shipment metadata to a stock item.
func (d ShipmentDetails) Archive(item StockItem) ArchivedItem {
	return ArchivedItem{
		StockItem:       item,
		ShipDate:        d.ShipDate,
		ShipperName:     d.ShipperName,
		ShipDestination: d.ShipDestination,
	}
}

// Manifest is the downloadable document describing one shipment.
type Manifest struct {
	Partition Partition       `json:"partition"`
	Details   ShipmentDetails `json:"details"`
	Items     []StockItem     `json:"items"`
}

// NewManifest orders the items by box, barcode and id so that the same input
// always yields the same document.
func NewManifest(partition Partition, details ShipmentDetails, items []StockItem) Manifest {
	ordered := make([]StockItem, len(items))
	copy(ordered, items)
	SortStock(ordered)
	return Manifest{Partition: partition, Details: details, Items: ordered}
}

// SortStock orders stock rows the way listings and exports present them.
func SortStock(items []StockItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.BoxNumber != b.BoxNumber {
			return a.BoxNumber < b.BoxNumber
		}
		if a.Barcode != b.Barcode {
			return a.Barcode < b.Barcode
		}
		return a.ID < b.ID
	})
}

// SessionKey scopes shipment state to one partition of one user session.
type SessionKey struct {
	SessionID string
	Partition Partition
}

func (k SessionKey) String() string {
	return k.SessionID + ":" + string(k.Partition)
}

// ShipmentSession is the per-session state formerly kept in UI globals.
type ShipmentSession struct {
	Cart         Cart `json:"cart"`
	DialogOpen   bool `json:"dialog_open"`
	ResetCounter int  `json:"reset_counter"`
}

// Reset empties the cart, closes the dialog and bumps the selection generation.
func (s *ShipmentSession) Reset() {
	s.Cart.Clear()
	s.DialogOpen = false
	s.ResetCounter++
}

// Cart is the set of stock ids selected for shipment.
type Cart struct {
	ids map[string]struct{}
}

// NewCart builds a cart holding ids.
func NewCart(ids ...string) Cart {
	c := Cart{}
	c.Add(ids...)
	return c
}

func (c *Cart) Add(ids ...string) {
	if c.ids == nil {
		c.ids = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			c.ids[id] = struct{}{}
		}
	}
}

func (c *Cart) Remove(ids ...string) {
	for _, id := range ids {
		delete(c.ids, strings.TrimSpace(id))
	}
}

func (c *Cart) Clear() {
	c.ids = nil
}

// Reconcile drops ids missing from current and returns the dropped ids.
func (c *Cart) Reconcile(current map[string]struct{}) []string {
	var dropped []string
	for id := range c.ids {
		if _, ok := current[id]; !ok {
			dropped = append(dropped, id)
			delete(c.ids, id)
		}
	}
	sort.Strings(dropped)
	return dropped
}

func (c Cart) Contains(id string) bool {
	_, ok := c.ids[id]
	return ok
}

func (c Cart) Len() int {
	return len(c.ids)
}

// IDs returns the cart contents in sorted order.
func (c Cart) IDs() []string {
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.IDs())
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	c.Clear()
	c.Add(ids...)
	return nil
}

// SortArchive orders archived rows newest shipment first, then like stock.
func SortArchive(items []ArchivedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.ShipDate.Equal(b.ShipDate) {
			return a.ShipDate.After(b.ShipDate)
		}
		if a.BoxNumber != b.BoxNumber {
			return a.BoxNumber < b.BoxNumber
		}
		if a.Barcode != b.Barcode {
			return a.Barcode < b.Barcode
		}
		return a.ID < b.ID
	})
}
