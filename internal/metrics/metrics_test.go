package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RowsDropped.WithLabelValues("billionaires").Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.RowsDropped.WithLabelValues("billionaires")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RowsDropped.WithLabelValues("billionaires")))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RowsParsed.WithLabelValues("TECH").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wealthstack_rows_parsed_total{dataset="TECH"} 1`)
}
