package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/export"
	"github.com/mamadbah2/warehouse/internal/service/shipment"
)

// ShipmentHandler exposes the session cart and the shipment committer.
type ShipmentHandler struct {
	svc      *shipment.Service
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewShipmentHandler constructs the HTTP handler adapter. location decides
// "today" when a shipment omits its date.
func NewShipmentHandler(svc *shipment.Service, location *time.Location, logger *zap.Logger) *ShipmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}
	return &ShipmentHandler{svc: svc, location: location, logger: logger, now: time.Now}
}

type shipmentRequest struct {
	ShipperName     string `json:"shipper_name"`
	ShipDestination string `json:"ship_destination"`
	// ShipDate is YYYY-MM-DD; empty means today.
	ShipDate string `json:"ship_date"`
}

func (h *ShipmentHandler) details(req shipmentRequest) (models.ShipmentDetails, error) {
	details := models.ShipmentDetails{
		ShipperName:     req.ShipperName,
		ShipDestination: req.ShipDestination,
	}
	raw := strings.TrimSpace(req.ShipDate)
	if raw == "" {
		now := h.now().In(h.location)
		details.ShipDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return details, nil
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return details, fmt.Errorf("ship_date must be YYYY-MM-DD: %w", err)
	}
	details.ShipDate = date
	return details, nil
}

func (h *ShipmentHandler) key(c *gin.Context) (models.SessionKey, bool) {
	partition, ok := partitionParam(c)
	if !ok {
		return models.SessionKey{}, false
	}
	return models.SessionKey{SessionID: sessionID(c), Partition: partition}, true
}

// Cart returns the reconciled cart of the session.
func (h *ShipmentHandler) Cart(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	h.respondCart(c)(h.svc.Cart(c.Request.Context(), key))
}

// AddItems selects stock ids for shipment.
func (h *ShipmentHandler) AddItems(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}
	h.respondCart(c)(h.svc.Add(c.Request.Context(), key, req.IDs))
}

// RemoveItems deselects stock ids.
func (h *ShipmentHandler) RemoveItems(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return
	}
	h.respondCart(c)(h.svc.Remove(c.Request.Context(), key, req.IDs))
}

// Clear empties the cart and closes the shipment dialog.
func (h *ShipmentHandler) Clear(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	h.respondCart(c)(h.svc.Clear(c.Request.Context(), key))
}

// Forget discards the session's cart state for the partition.
func (h *ShipmentHandler) Forget(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	if err := h.svc.Forget(c.Request.Context(), key); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OpenDialog opens the shipment dialog for a non-empty cart.
func (h *ShipmentHandler) OpenDialog(c *gin.Context) {
	key, ok := h.key(c)
	if !ok {
		return
	}
	h.respondCart(c)(h.svc.OpenDialog(c.Request.Context(), key))
}

// Manifest downloads the shipment document without committing anything.
func (h *ShipmentHandler) Manifest(c *gin.Context) {
	key, details, ok := h.shipmentInput(c)
	if !ok {
		return
	}

	manifest, err := h.svc.Manifest(c.Request.Context(), key, details)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	buf, err := export.ManifestWorkbook(manifest)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	name := fmt.Sprintf("shipment_%s_%s.xlsx", key.Partition, details.ShipDate.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// Commit ships the cart into the archive.
func (h *ShipmentHandler) Commit(c *gin.Context) {
	key, details, ok := h.shipmentInput(c)
	if !ok {
		return
	}

	result, err := h.svc.Commit(c.Request.Context(), key, details)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ShipmentHandler) shipmentInput(c *gin.Context) (models.SessionKey, models.ShipmentDetails, bool) {
	key, ok := h.key(c)
	if !ok {
		return models.SessionKey{}, models.ShipmentDetails{}, false
	}
	var req shipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, h.logger, err)
		return models.SessionKey{}, models.ShipmentDetails{}, false
	}
	details, err := h.details(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.SessionKey{}, models.ShipmentDetails{}, false
	}
	return key, details, true
}

func (h *ShipmentHandler) respondCart(c *gin.Context) func(shipment.CartView, error) {
	return func(view shipment.CartView, err error) {
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
