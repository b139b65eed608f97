package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pageOne = `{
	"datatable": {
		"data": [
			["AAPL", "2018-01-02", 170.16, 172.30, 169.26, 172.26, 25555934.0],
			["AAPL", "2018-01-03", 172.53, 174.55, 171.96, 172.23, 29517899.0]
		],
		"columns": [
			{"name": "ticker", "type": "String"},
			{"name": "date", "type": "Date"},
			{"name": "open", "type": "BigDecimal(34,12)"},
			{"name": "high", "type": "BigDecimal(34,12)"},
			{"name": "low", "type": "BigDecimal(34,12)"},
			{"name": "close", "type": "BigDecimal(34,12)"},
			{"name": "volume", "type": "BigDecimal(37,15)"}
		]
	},
	"meta": {"next_cursor_id": "cursor-2"}
}`

const pageTwo = `{
	"datatable": {
		"data": [
			["AAPL", "2018-01-04", 172.54, 173.47, 172.08, 173.03, 22434597.0]
		],
		"columns": [
			{"name": "ticker", "type": "String"},
			{"name": "date", "type": "Date"},
			{"name": "open", "type": "BigDecimal(34,12)"},
			{"name": "high", "type": "BigDecimal(34,12)"},
			{"name": "low", "type": "BigDecimal(34,12)"},
			{"name": "close", "type": "BigDecimal(34,12)"},
			{"name": "volume", "type": "BigDecimal(37,15)"}
		]
	},
	"meta": {"next_cursor_id": null}
}`

func TestFetchSeriesFollowsCursor(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "AAPL", q.Get("ticker"))
		require.Equal(t, "test-key", q.Get("api_key"))
		require.Equal(t, "2018-01-01", q.Get("date.gte"))
		requests = append(requests, q.Get("qopts.cursor_id"))

		w.Header().Set("Content-Type", "application/json")
		if q.Get("qopts.cursor_id") == "" {
			fmt.Fprint(w, pageOne)
			return
		}
		fmt.Fprint(w, pageTwo)
	}))
	defer srv.Close()

	client := NewNasdaqClient(srv.URL, "test-key", zap.NewNop())
	rows, err := client.FetchSeries(context.Background(),
		"AAPL", mustDate("2018-01-01"), mustDate("2018-01-31"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"", "cursor-2"}, requests)

	first := rows[0]
	require.Equal(t, mustDate("2018-01-02"), first.Date)
	require.Equal(t, 172.26, first.Values["close"])
	require.Equal(t, 25555934.0, first.Values["volume"])
	// Text cells (ticker) never land in Values.
	_, hasTicker := first.Values["ticker"]
	require.False(t, hasTicker)
}

func TestFetchSeriesVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"quandl_error": {"code": "QELx04", "message": "You have submitted an incorrect Quandl code."}}`)
	}))
	defer srv.Close()

	client := NewNasdaqClient(srv.URL, "test-key", zap.NewNop())
	_, err := client.FetchSeries(context.Background(),
		"NOPE", mustDate("2018-01-01"), mustDate("2018-01-31"))
	require.ErrorIs(t, err, domain.ErrProvider)
	require.Contains(t, err.Error(), "QELx04")
}

func TestFetchSeriesRequiresAPIKey(t *testing.T) {
	client := NewNasdaqClient("http://unused", "", zap.NewNop())
	_, err := client.FetchSeries(context.Background(),
		"AAPL", mustDate("2018-01-01"), mustDate("2018-01-31"))
	require.ErrorIs(t, err, domain.ErrProvider)
}

func TestDecodeDatatableMissingDateColumn(t *testing.T) {
	var body datatableResponse
	_, err := decodeDatatable(body)
	require.Error(t, err)
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
