package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CountersAndHandler(t *testing.T) {
	r := NewRegistry()
	r.ReplenishApplied.Inc()
	r.ReplenishSkipped.WithLabelValues("missing_expiration").Add(2)

	require.Equal(t, 1.0, testutil.ToFloat64(r.ReplenishApplied))
	require.Equal(t, 2.0, testutil.ToFloat64(r.ReplenishSkipped.WithLabelValues("missing_expiration")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "inventory_replenish_applied_total 1")
}
