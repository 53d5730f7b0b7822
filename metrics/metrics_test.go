package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPostingIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(ledgerPostingsTotal.WithLabelValues("expense"))
	RecordPosting("expense")
	RecordPosting("expense")
	assert.Equal(t, before+2, testutil.ToFloat64(ledgerPostingsTotal.WithLabelValues("expense")))
}

func TestSetDriftFindingsOverwrites(t *testing.T) {
	SetDriftFindings(3, "balance_drift", 5)
	SetDriftFindings(3, "balance_drift", 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(ledgerDriftFindings.WithLabelValues("3", "balance_drift")))
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/ping", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), MetricRequestsTotal)
}
