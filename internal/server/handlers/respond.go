package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

// SessionHeader carries the caller's session id. A new id is issued in the
// response when the request has none.
const SessionHeader = "X-Session-ID"

const maxSessionIDLength = 128

type idsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type confirmedIDsRequest struct {
	IDs          []string `json:"ids" binding:"required"`
	Confirmation string   `json:"confirmation"`
}

// partitionParam parses the :partition path segment, writing a 400 on failure.
func partitionParam(c *gin.Context) (models.Partition, bool) {
	p, err := models.ParsePartition(c.Param("partition"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return p, true
}

func sessionID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(SessionHeader))
	if id == "" || len(id) > maxSessionIDLength {
		id = uuid.NewString()
	}
	c.Header(SessionHeader, id)
	return id
}

// respondError maps domain errors onto HTTP statuses. Anything unrecognized is
// a persistence failure and is logged.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var rowErr *models.ImportRowError
	var missing *models.ItemsNotInStockError

	switch {
	case errors.As(err, &missing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "ids": missing.IDs})
	case errors.As(err, &rowErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "row": rowErr.Row})
	case errors.Is(err, models.ErrConfirmationRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    err.Error(),
			"expected": models.DeleteConfirmationPhrase,
		})
	case errors.Is(err, models.ErrInvalidPartition),
		errors.Is(err, models.ErrShipperRequired),
		errors.Is(err, models.ErrDestinationRequired),
		errors.Is(err, models.ErrShipDateRequired),
		errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrImportLayout),
		errors.Is(err, models.ErrEmptyImport):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func invalidBody(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request body", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}
