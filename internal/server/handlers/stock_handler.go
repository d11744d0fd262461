package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/export"
	"github.com/mamadbah2/warehouse/internal/service/inventory"
)

const maxUploadBytes = 10 << 20

// StockHandler exposes receipts, stock, archive and reports over HTTP.
type StockHandler struct {
	svc    *inventory.Service
	logger *zap.Logger
	now    func() time.Time
}

// NewStockHandler constructs the HTTP handler adapter.
func NewStockHandler(svc *inventory.Service, logger *zap.Logger) *StockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockHandler{svc: svc, logger: logger, now: time.Now}
}

// receiptRowRequest keeps quantity raw so that a missing or malformed value
// is reported against its row like an uploaded sheet.
type receiptRowRequest struct {
	Barcode   string          `json:"barcode"`
	Quantity  json.RawMessage `json:"quantity"`
	BoxNumber string          `json:"box_number"`
}

func (r receiptRowRequest) cells() []string {
	return []string{r.Barcode, rawScalar(r.Quantity), r.BoxNumber}
}

// rawScalar returns a JSON string's contents, or the literal text of any other
// value. Absent and null values become empty.
func rawScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

type receiptRequest struct {
	Rows []receiptRowRequest `json:"rows" binding:"required"`
}

// CatalogStatus reports whether the product catalog is reachable.
func (h *StockHandler) CatalogStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CatalogStatus(c.Request.Context()))
}

// Receive books a JSON receipt batch into a partition.
func (h *StockHandler) Receive(c *gin.Context) {
	partition, ok := partitionParam(c)
	if !ok {
		return
	}

	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	cells := make([][]string, 0, len(req.Rows))
	for _, r := range req.Rows {
		cells = append(cells, r.cells())
	}
	rows, err := inventory.ParseReceiptRows(cells, 1)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.receive(c, partition, rows)
}

// Upload books a receipt from an XLSX file posted as the "file" form field.
func (h *StockHandler) Upload(c *gin.Context) {
	partition, ok := partitionParam(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		invalidBody(c, h.logger, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		invalidBody(c, h.logger, err)
		return
	}
	defer file.Close()

	cells, err := export.ReadReceiptSheet(file)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	rows, err := inventory.ParseReceiptRows(cells, export.ReceiptSheetFirstLine)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.receive(c, partition, rows)
}

func (h *StockHandler) receive(c *gin.Context, partition models.Partition, rows []models.ReceiptRow) {
	result, err := h.svc.Receive(c.Request.Context(), partition, rows)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListStock returns a partition's stock, filtered by the q query parameter.
func (h *StockHandler) ListStock(c *gin.Context) {
	partition, ok := partitionParam(c)
	if !ok {
		return
	}

	items, err := h.svc.ListStock(c.Request.Context(), partition, c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partition": partition, "items": items})
}

// DeleteStock permanently removes stock rows behind the confirmation phrase.
func (h *StockHandler) DeleteStock(c *gin.Context) {
	partition, ok := partitionParam(c)
	if !ok {
		return
	}

	var req confirmedIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	deleted, err := h.svc.DeleteStock(c.Request.Context(), partition, req.IDs, req.Confirmation)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ListArchive returns a partition's archive, filtered by the q query parameter.
func (h *StockHandler) ListArchive(c *gin.Context) {
	partition, ok := partitionParam(c)
	if !ok {
		return
	}

	items, err := h.svc.ListArchive(c.Request.Context(), partition, c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partition": partition, "items": items})
}

// ExportArchive downloads a partition's archive as XLSX.
func (h *StockHandler) ExportArchive(c *gin.Context) {
	partition, ok := partitionParam(c)
	if !ok {
		return
	}

	items, err := h.svc.ListArchive(c.Request.Context(), partition, c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	buf, err := export.ArchiveWorkbook(items)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.attachment(c, fmt.Sprintf("archive_%s", partition), buf)
}

// Restore moves archived rows back into stock.
func (h *StockHandler) Restore(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	restored, err := h.svc.Restore(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored})
}

// Purge permanently removes archived rows behind the confirmation phrase.
func (h *StockHandler) Purge(c *gin.Context) {
	var req confirmedIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}

	deleted, err := h.svc.Purge(c.Request.Context(), req.IDs, req.Confirmation)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// InventoryReport downloads the whole stock, one sheet per partition.
func (h *StockHandler) InventoryReport(c *gin.Context) {
	stock, err := h.svc.Inventory(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	buf, err := export.InventoryWorkbook(stock)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.attachment(c, "inventory", buf)
}

// Totals returns the aggregate quantity per partition and barcode.
func (h *StockHandler) Totals(c *gin.Context) {
	totals, err := h.svc.Totals(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": totals})
}

// TotalsReport downloads the aggregate totals as XLSX.
func (h *StockHandler) TotalsReport(c *gin.Context) {
	totals, err := h.svc.Totals(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	buf, err := export.TotalsWorkbook(totals)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.attachment(c, "totals", buf)
}

// StorageOverview returns today's storage figures and the accrual history.
func (h *StockHandler) StorageOverview(c *gin.Context) {
	overview, err := h.svc.StorageOverview(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *StockHandler) attachment(c *gin.Context, prefix string, buf *bytes.Buffer) {
	name := fmt.Sprintf("%s_%s.xlsx", prefix, h.now().Format("20060102_1504"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
