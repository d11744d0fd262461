package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

var (
	errMissingBarcode   = errors.New("barcode is empty")
	errInvalidQuantity  = errors.New("quantity is not a number")
	errNegativeQuantity = errors.New("quantity must not be negative")
)

// ParseReceiptRows interprets positional (barcode, quantity, box number) cells.
// firstLine is the sheet line number of rows[0] and is used in error messages.
// The first malformed row fails the whole batch.
func ParseReceiptRows(rows [][]string, firstLine int) ([]models.ReceiptRow, error) {
	if len(rows) == 0 {
		return nil, models.ErrEmptyImport
	}

	parsed := make([]models.ReceiptRow, 0, len(rows))
	for i, cells := range rows {
		line := firstLine + i
		if len(cells) > 3 {
			return nil, &models.ImportRowError{Row: line, Err: models.ErrImportLayout}
		}
		padded := make([]string, 3)
		copy(padded, cells)

		row, err := parseReceiptRow(padded[0], padded[1], padded[2])
		if err != nil {
			return nil, &models.ImportRowError{Row: line, Err: err}
		}
		parsed = append(parsed, row)
	}
	return parsed, nil
}

func parseReceiptRow(barcode, quantity, box string) (models.ReceiptRow, error) {
	barcode = normalizeBarcode(barcode)
	if barcode == "" {
		return models.ReceiptRow{}, errMissingBarcode
	}

	qty, err := parseQuantity(quantity)
	if err != nil {
		return models.ReceiptRow{}, err
	}

	return models.ReceiptRow{
		Barcode:   barcode,
		Quantity:  qty,
		BoxNumber: strings.TrimSpace(box),
	}, nil
}

// parseQuantity accepts a non-negative real number with either decimal separator.
func parseQuantity(raw string) (float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, errInvalidQuantity
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidQuantity, raw)
	}
	if d.IsNegative() {
		return 0, errNegativeQuantity
	}
	return d.InexactFloat64(), nil
}

// normalizeBarcode strips spreadsheet float artifacts such as "4601234567890.0".
func normalizeBarcode(raw string) string {
	raw = strings.TrimSpace(raw)
	if trimmed, ok := strings.CutSuffix(raw, ".0"); ok && isDigits(trimmed) {
		return trimmed
	}
	return raw
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateReceiptRows(rows []models.ReceiptRow) error {
	if len(rows) == 0 {
		return models.ErrEmptyImport
	}
	for i, row := range rows {
		switch {
		case strings.TrimSpace(row.Barcode) == "":
			return &models.ImportRowError{Row: i + 1, Err: errMissingBarcode}
		case row.Quantity < 0:
			return &models.ImportRowError{Row: i + 1, Err: errNegativeQuantity}
		}
	}
	return nil
}
