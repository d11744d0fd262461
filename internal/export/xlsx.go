// Package export reads receipt uploads and renders the XLSX downloads.
package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

const (
	// ContentType is the MIME type of every workbook produced here.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	manifestDateLayout = "02.01.2006"

	sheetManifest = "Отгрузка"
	sheetArchive  = "Архив"
	sheetTotals   = "Итого"
)

var (
	stockHeader    = []string{"Баркод", "Количество", "Номер короба", "Артикул", "Наименование", "Юр лицо"}
	shipmentHeader = []string{"ФИО", "Склад отгрузки", "Дата отгрузки"}
	totalsHeader   = []string{"Юр лицо", "Баркод", "Общее количество"}

	// column widths of the manifest sheet, by column letter range
	manifestWidths = []struct {
		from, to string
		width    float64
	}{
		{"A", "A", 18},
		{"B", "B", 12},
		{"C", "C", 16},
		{"D", "E", 28},
		{"F", "I", 20},
	}
)

// ReceiptSheetFirstLine is the sheet line number of the first data row.
const ReceiptSheetFirstLine = 2

// ReadReceiptSheet returns the data rows of the first sheet of an upload. The
// sheet must span exactly three columns; the header row is skipped and its
// text is not interpreted.
func ReadReceiptSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, models.ErrEmptyImport
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, models.ErrEmptyImport
	}
	// GetRows drops trailing empty cells, so the sheet width is that of its widest row.
	if sheetWidth(rows) != 3 {
		return nil, models.ErrImportLayout
	}

	data := rows[1:]
	for len(data) > 0 && blank(data[len(data)-1]) {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, models.ErrEmptyImport
	}
	return data, nil
}

// InventoryWorkbook renders the whole stock with one sheet per partition.
func InventoryWorkbook(stock map[models.Partition][]models.StockItem) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, p := range models.Partitions {
		rows := make([][]interface{}, 0, len(stock[p]))
		for _, item := range stock[p] {
			rows = append(rows, stockCells(item))
		}
		if err := writeSheet(f, i == 0, p.Label(), stockHeader, rows); err != nil {
			return nil, err
		}
	}
	return f.WriteToBuffer()
}

// ManifestWorkbook renders the shipment document.
func ManifestWorkbook(manifest models.Manifest) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	header := append(append([]string{}, stockHeader...), shipmentHeader...)
	shipDate := ""
	if !manifest.Details.ShipDate.IsZero() {
		shipDate = manifest.Details.ShipDate.Format(manifestDateLayout)
	}

	rows := make([][]interface{}, 0, len(manifest.Items))
	for _, item := range manifest.Items {
		item.Partition = manifest.Partition
		rows = append(rows, append(stockCells(item),
			manifest.Details.ShipperName,
			manifest.Details.ShipDestination,
			shipDate,
		))
	}
	if err := writeSheet(f, true, sheetManifest, header, rows); err != nil {
		return nil, err
	}

	if err := f.SetPanes(sheetManifest, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	for _, w := range manifestWidths {
		if err := f.SetColWidth(sheetManifest, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	return f.WriteToBuffer()
}

// ArchiveWorkbook renders the archive of one partition.
func ArchiveWorkbook(items []models.ArchivedItem) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	header := append(append([]string{}, stockHeader...), shipmentHeader...)
	rows := make([][]interface{}, 0, len(items))
	for _, item := range items {
		shipDate := ""
		if !item.ShipDate.IsZero() {
			shipDate = item.ShipDate.Format(models.DateLayout)
		}
		rows = append(rows, append(stockCells(item.StockItem), item.ShipperName, item.ShipDestination, shipDate))
	}
	if err := writeSheet(f, true, sheetArchive, header, rows); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

// TotalsWorkbook renders the aggregate quantity per partition and barcode.
func TotalsWorkbook(totals []models.TotalRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	rows := make([][]interface{}, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []interface{}{t.Partition.Label(), t.Barcode, t.Quantity})
	}
	if err := writeSheet(f, true, sheetTotals, totalsHeader, rows); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

func stockCells(item models.StockItem) []interface{} {
	return []interface{}{
		item.Barcode,
		item.Quantity,
		item.BoxNumber,
		item.Article,
		item.Name,
		item.Partition.Label(),
	}
}

// writeSheet writes a header and rows into name. The first sheet reuses the
// default sheet of a new file so the workbook has no stray "Sheet1".
func writeSheet(f *excelize.File, first bool, name string, header []string, rows [][]interface{}) error {
	if first {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &headerCells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return nil
}

func sheetWidth(rows [][]string) int {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
