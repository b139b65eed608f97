// Package provider fetches daily time-series rows from external market
// data vendors.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DatasetCode is the Nasdaq Data Link table daily prices come from.
const DatasetCode = "WIKI/PRICES"

const defaultBaseURL = "https://data.nasdaq.com"

// Row is one daily observation as fetched from a vendor. Values carries
// every numeric column keyed by its vendor column name.
type Row struct {
	Date   time.Time
	Values map[string]float64
}

// SeriesFetcher is the outbound contract the ingestion reconciler
// consumes. Failures wrap domain.ErrProvider.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]Row, error)
}

// NasdaqClient fetches WIKI/PRICES rows from the Nasdaq Data Link
// datatables API.
type NasdaqClient struct {
	httpClient *resty.Client
	apiKey     string
	log        *zap.Logger
}

var _ SeriesFetcher = (*NasdaqClient)(nil)

func NewNasdaqClient(baseURL, apiKey string, log *zap.Logger) *NasdaqClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")
	return &NasdaqClient{httpClient: client, apiKey: apiKey, log: log}
}

type datatableResponse struct {
	Datatable struct {
		Data    [][]json.RawMessage `json:"data"`
		Columns []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
	} `json:"datatable"`
	Meta struct {
		NextCursorID *string `json:"next_cursor_id"`
	} `json:"meta"`
	QuandlError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"quandl_error"`
}

// FetchSeries pulls all rows for the ticker in [start, end], following
// the vendor's cursor pagination.
func (c *NasdaqClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]Row, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("nasdaq data link api key not configured: %w", domain.ErrProvider)
	}

	c.log.Info("fetching series from Nasdaq Data Link",
		zap.String("symbol", symbol),
		zap.String("dataset", DatasetCode),
		zap.Time("start", start),
		zap.Time("end", end))

	var (
		rows   []Row
		cursor string
	)
	for {
		page, next, err := c.fetchPage(ctx, symbol, start, end, cursor)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)
		if next == "" {
			break
		}
		cursor = next
	}

	c.log.Info("fetched series from Nasdaq Data Link",
		zap.String("symbol", symbol), zap.Int("rows", len(rows)))
	return rows, nil
}

func (c *NasdaqClient) fetchPage(ctx context.Context, symbol string, start, end time.Time, cursor string) ([]Row, string, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("ticker", symbol).
		SetQueryParam("date.gte", start.Format("2006-01-02")).
		SetQueryParam("date.lte", end.Format("2006-01-02")).
		SetQueryParam("api_key", c.apiKey)
	if cursor != "" {
		req.SetQueryParam("qopts.cursor_id", cursor)
	}

	var body datatableResponse
	resp, err := req.SetResult(&body).SetError(&body).
		Get("/api/v3/datatables/" + DatasetCode + ".json")
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s for %s: %w: %v", DatasetCode, symbol, domain.ErrProvider, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if body.QuandlError != nil {
			msg = fmt.Sprintf("%s (%s)", body.QuandlError.Message, body.QuandlError.Code)
		}
		return nil, "", fmt.Errorf("fetch %s for %s: %w: %s", DatasetCode, symbol, domain.ErrProvider, msg)
	}

	rows, err := decodeDatatable(body)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s for %s: %w: %v", DatasetCode, symbol, domain.ErrProvider, err)
	}
	next := ""
	if body.Meta.NextCursorID != nil {
		next = *body.Meta.NextCursorID
	}
	return rows, next, nil
}

// decodeDatatable turns the columns+data arrays into rows. Numeric cells
// land in Values under their column name; the date column becomes the
// row date; text cells (ticker) are dropped. A cell that fails to decode
// is left absent rather than failing the row.
func decodeDatatable(body datatableResponse) ([]Row, error) {
	dateIdx := -1
	for i, col := range body.Datatable.Columns {
		if col.Name == "date" {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("response has no date column")
	}

	rows := make([]Row, 0, len(body.Datatable.Data))
	for _, cells := range body.Datatable.Data {
		if dateIdx >= len(cells) {
			continue
		}
		var dateStr string
		if err := json.Unmarshal(cells[dateIdx], &dateStr); err != nil {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		row := Row{Date: date, Values: map[string]float64{}}
		for i, cell := range cells {
			if i == dateIdx || i >= len(body.Datatable.Columns) {
				continue
			}
			var v float64
			if err := json.Unmarshal(cell, &v); err == nil {
				row.Values[body.Datatable.Columns[i].Name] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
