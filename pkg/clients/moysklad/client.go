package moysklad

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/warehouse/internal/config"
)

const stockReportLimit = 1000

// Client exposes the MoySklad operations used by the application.
type Client interface {
	StockReport(ctx context.Context, storeID string) ([]StockRow, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	baseURL    string
}

// NewClient builds a MoySklad API client using the provided configuration values.
func NewClient(cfg config.CatalogConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Token)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept-Encoding", "gzip").
		SetTimeout(cfg.Timeout)

	return &APIClient{
		httpClient: restyClient,
		baseURL:    base,
	}
}

// StockRow is one product line of the stock report. Only the fields used to
// enrich receipts are decoded.
type StockRow struct {
	Code    string `json:"code"`
	Article string `json:"article"`
	Name    string `json:"name"`
}

type stockReportResponse struct {
	Rows []StockRow `json:"rows"`
}

// apiError represents a MoySklad error payload.
type apiError struct {
	Errors []struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	} `json:"errors"`
}

// StockReport returns the stock report rows filtered to one store.
func (c *APIClient) StockReport(ctx context.Context, storeID string) ([]StockRow, error) {
	result := new(stockReportResponse)
	apiErr := new(apiError)

	started := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprint(stockReportLimit)).
		SetQueryParam("filter", fmt.Sprintf("store=%s/entity/store/%s", c.baseURL, storeID)).
		SetResult(result).
		SetError(apiErr).
		Get("/report/stock/all")
	if err != nil {
		return nil, fmt.Errorf("fetch moysklad stock report after %s: %w", time.Since(started).Round(time.Millisecond), err)
	}

	if resp.StatusCode() != http.StatusOK {
		message := resp.Status()
		if len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Error
		}
		return nil, fmt.Errorf("moysklad api error: code=%d, message=%s", resp.StatusCode(), message)
	}

	return result.Rows, nil
}
