package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/wealthstack/internal/config"
	"github.com/rewired-gh/wealthstack/internal/layout"
	"github.com/rewired-gh/wealthstack/internal/metrics"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/series"
	"github.com/rewired-gh/wealthstack/internal/storage"
	"github.com/rewired-gh/wealthstack/internal/view"
)

type fakeCatalog map[string][]models.TickerRow

func (c fakeCatalog) TickerRows(_ context.Context, dataset string) ([]models.TickerRow, error) {
	rows, ok := c[dataset]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rows, nil
}

type fakeLister struct {
	list []storage.Dataset
	err  error
}

func (f fakeLister) Datasets(context.Context) ([]storage.Dataset, error) {
	return f.list, f.err
}

type stateBody struct {
	ID        string               `json:"id"`
	Mode      models.Mode          `json:"mode"`
	Stack     models.StackedSeries `json:"stack"`
	Selection *models.GroupKey     `json:"selection"`
	Detail    *models.DetailSeries `json:"detail"`
	Market    *view.MarketView     `json:"market"`
	Pie       *view.PieView        `json:"pie"`
	Failures  []view.LoadFailure   `json:"failures"`
	Bars      []layout.Bar         `json:"bars"`
}

func sampleRecords() []models.Record {
	return []models.Record{
		{Year: 2010, Category: models.CategoryTechnology, Metric: 60, Name: "Alice"},
		{Year: 2010, Category: models.CategoryTechnology, Metric: 40, Name: "Bob"},
		{Year: 2010, Category: models.CategoryOther, Metric: 50, Name: "Dana"},
		{Year: 2011, Category: models.CategoryTechnology, Metric: 80, Name: "Alice"},
	}
}

func sampleCatalog() fakeCatalog {
	return fakeCatalog{
		series.DatasetTech:  {{Year: 2020, MarketCap: 300}},
		series.DatasetOther: {{Year: 2020, MarketCap: 100}},
	}
}

type fixture struct {
	handler http.Handler
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, lister DatasetLister, cfg config.ServerConfig) fixture {
	t.Helper()
	m := metrics.New()
	shell := view.NewShell(view.Initial(sampleRecords(), models.ModeRaw, view.DefaultOptions()), sampleCatalog(), m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = shell.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return fixture{handler: New(shell, lister, m, cfg).Handler(), metrics: m}
}

func (f fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateBody {
	t.Helper()
	var st stateBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) ErrResponse {
	t.Helper()
	var e ErrResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetState(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})
	rec := f.do(t, http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := decodeState(t, rec)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, models.ModeRaw, st.Mode)
	assert.Equal(t, []int{2010, 2011}, st.Stack.Years)
	assert.Len(t, st.Bars, 4)
	assert.Nil(t, st.Detail)
}

func TestGetStackDoesNotChangeMode(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/stack?mode=normalized", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var s models.StackedSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, models.ModeNormalized, s.Mode)
	require.NoError(t, s.Validate())

	st := decodeState(t, f.do(t, http.MethodGet, "/api/v1/state", nil))
	assert.Equal(t, models.ModeRaw, st.Mode)

	rec = f.do(t, http.MethodGet, "/api/v1/stack?mode=percent", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMode(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/mode", map[string]string{"mode": "normalized"})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	assert.Equal(t, models.ModeNormalized, st.Mode)
	require.Len(t, st.Stack.Layers, 2)
	assert.InDelta(t, 100.0/150, st.Stack.Layers[0].Segments[0].Y1, 1e-9)

	rec = f.do(t, http.MethodPost, "/api/v1/mode", map[string]string{"mode": "nominal"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ModeRaw, decodeState(t, rec).Mode)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("mode")))
}

func TestPostModeInvalid(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/mode", map[string]string{"mode": "percent"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeErr(t, rec)
	assert.Equal(t, "oneof", e.Fields["mode"])

	rec = f.do(t, http.MethodPost, "/api/v1/mode", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectAndReset(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/select", map[string]interface{}{"year": 2010, "category": "Technology"})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	require.NotNil(t, st.Detail)
	assert.Equal(t, 100.0, st.Detail.Total)
	require.Len(t, st.Detail.Entries, 2)
	assert.Equal(t, "Bob", st.Detail.Entries[0].Name)
	assert.Equal(t, "Alice", st.Detail.Entries[1].Name)

	csvRec := f.do(t, http.MethodGet, "/api/v1/export.csv?view=detail", nil)
	require.Equal(t, http.StatusOK, csvRec.Code)
	rows, err := csv.NewReader(csvRec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rec = f.do(t, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeState(t, rec).Detail)

	rec = f.do(t, http.MethodGet, "/api/v1/export.csv?view=detail", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectWithSpan(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/select", map[string]interface{}{
		"year": 2010, "category": "Technology", "span": map[string]float64{"y0": 100, "y1": 200},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	require.NotNil(t, st.Detail)
	entries := st.Detail.Entries
	assert.InDelta(t, 100.0, entries[0].PixelY0, 1e-9)
	assert.InDelta(t, 200.0, entries[len(entries)-1].PixelY1, 1e-9)
}

func TestSelectErrors(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/select", map[string]interface{}{"year": 2011, "category": "Finance"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "oneof", decodeErr(t, rec).Fields["category"])

	rec = f.do(t, http.MethodPost, "/api/v1/select", map[string]interface{}{"year": 1999, "category": "Other"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/select", map[string]interface{}{
		"year": 2010, "category": "Other", "span": map[string]float64{"y0": 5, "y1": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMarket(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/market", map[string]string{"ticker": "Default"})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	require.NotNil(t, st.Market)
	assert.Equal(t, "Market Cap (2010–2025): Tech vs Other", st.Market.Chart.Title)
	assert.Equal(t, series.MetricMarketCap, st.Market.Metric)

	rec = f.do(t, http.MethodPost, "/api/v1/market", map[string]string{"ticker": "AAPL"})
	require.Equal(t, http.StatusOK, rec.Code)
	st = decodeState(t, rec)
	assert.Nil(t, st.Market)
	require.Len(t, st.Failures, 1)
	assert.Equal(t, view.ScopeMarket, st.Failures[0].Scope)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoadFailures.WithLabelValues("AAPL")))

	rec = f.do(t, http.MethodPost, "/api/v1/market", map[string]string{"ticker": "AAPL", "metric": "Volume"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostPie(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodPost, "/api/v1/pie", map[string]int{"year": 2020})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec)
	require.NotNil(t, st.Pie)
	assert.Equal(t, 400.0, st.Pie.Chart.Total)
	assert.Equal(t, 75.0, st.Pie.Chart.Slices[0].Percent)

	rec = f.do(t, http.MethodPost, "/api/v1/pie", map[string]int{"year": 2015})
	require.Equal(t, http.StatusOK, rec.Code)
	st = decodeState(t, rec)
	assert.Nil(t, st.Pie)
	require.Len(t, st.Failures, 1)
	assert.Equal(t, view.ScopePie, st.Failures[0].Scope)

	rec = f.do(t, http.MethodPost, "/api/v1/pie", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportStackCSV(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"2010", "Technology", "0", "100", "100"}, rows[1])

	rec = f.do(t, http.MethodGet, "/api/v1/export.csv?view=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBuckets(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/buckets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var buckets []models.Bucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buckets))
	assert.Equal(t, []models.Bucket{
		{Key: models.GroupKey{Year: 2010, Category: models.CategoryOther}, Total: 50, Count: 1},
		{Key: models.GroupKey{Year: 2010, Category: models.CategoryTechnology}, Total: 100, Count: 2},
		{Key: models.GroupKey{Year: 2011, Category: models.CategoryTechnology}, Total: 80, Count: 1},
	}, buckets)
}

func TestListDatasets(t *testing.T) {
	loaded := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, fakeLister{list: []storage.Dataset{
		{Name: "billionaires", Kind: storage.KindRecords, Rows: 4, LoadedAt: loaded},
	}}, config.ServerConfig{})

	rec := f.do(t, http.MethodGet, "/api/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []storage.Dataset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "billionaires", list[0].Name)

	f = newFixture(t, fakeLister{err: errors.New("disk gone")}, config.ServerConfig{})
	rec = f.do(t, http.MethodGet, "/api/v1/datasets", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	f = newFixture(t, nil, config.ServerConfig{})
	rec = f.do(t, http.MethodGet, "/api/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/state", nil).Code)
	rec := f.do(t, http.MethodGet, "/api/v1/state", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// another client has its own budget
	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	other := httptest.NewRecorder()
	f.handler.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)

	// health and metrics are not limited
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestRequestMetrics(t *testing.T) {
	f := newFixture(t, nil, config.ServerConfig{})

	f.do(t, http.MethodGet, "/api/v1/state", nil)
	f.do(t, http.MethodPost, "/api/v1/mode", map[string]string{"mode": "bogus"})

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("/api/v1/state", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("/api/v1/mode", "400")))

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wealthstack_http_requests_total")
}
