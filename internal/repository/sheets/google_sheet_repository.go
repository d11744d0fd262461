package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/warehouse/internal/config"
	"github.com/mamadbah2/warehouse/internal/domain/models"
)

// StorageLogMirror copies accrual rows to a spreadsheet for the accountant.
type StorageLogMirror interface {
	AppendStorageLog(ctx context.Context, entry models.DailyStorageLogEntry) error
}

// GoogleSheetRepository implements StorageLogMirror using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	sheetRange    string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed mirror.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetRange:    cfg.StorageLogRange,
		logger:        logger,
	}, nil
}

// AppendStorageLog appends one accrual row in the column order of the log table.
func (r *GoogleSheetRepository) AppendStorageLog(ctx context.Context, entry models.DailyStorageLogEntry) error {
	if r.sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{StorageLogRow(entry)}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, r.sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append storage log into range %s: %w", r.sheetRange, err)
	}

	r.logger.Debug("storage log mirrored to sheet", zap.String("range", r.sheetRange), zap.String("log_date", entry.LogDate))
	return nil
}

// StorageLogRow renders an entry as spreadsheet cells.
func StorageLogRow(entry models.DailyStorageLogEntry) []interface{} {
	return []interface{}{
		entry.LogDate,
		entry.BoxesIP,
		entry.PalletsIP,
		entry.CostIP,
		entry.BoxesOOO,
		entry.PalletsOOO,
		entry.CostOOO,
		entry.TotalCost,
	}
}
