package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPartition indicates a partition literal outside IP/OOO.
	ErrInvalidPartition = errors.New("partition must be IP or OOO")

	// ErrShipperRequired, ErrDestinationRequired and ErrShipDateRequired reject
	// shipments with blank metadata.
	ErrShipperRequired     = errors.New("shipper name must be provided")
	ErrDestinationRequired = errors.New("ship destination must be provided")
	ErrShipDateRequired    = errors.New("ship date must be provided")

	// ErrEmptyCart indicates a commit or manifest was requested with nothing selected.
	ErrEmptyCart = errors.New("shipment cart is empty")

	// ErrConfirmationRequired is returned by destructive actions when the typed
	// confirmation phrase does not match.
	ErrConfirmationRequired = errors.New("confirmation phrase does not match")

	// ErrAlreadyLogged reports that a storage log entry exists for the date.
	ErrAlreadyLogged = errors.New("storage log already recorded for date")

	// ErrImportLayout indicates the uploaded sheet does not have exactly three columns.
	ErrImportLayout = errors.New("import must contain exactly three columns: barcode, quantity, box number")

	// ErrEmptyImport indicates the uploaded sheet has no data rows.
	ErrEmptyImport = errors.New("import contains no rows")
)

// ImportRowError names the receipt row that failed validation.
type ImportRowError struct {
	Row int
	Err error
}

func (e *ImportRowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *ImportRowError) Unwrap() error {
	return e.Err
}

// ItemsNotInStockError is returned when a shipment references ids that are no
// longer present in the stock ledger for the partition.
type ItemsNotInStockError struct {
	IDs []string
}

func (e *ItemsNotInStockError) Error() string {
	return fmt.Sprintf("items no longer in stock: %s", strings.Join(e.IDs, ", "))
}
