package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_AuthCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthOperation("login", "success")
	m.RecordAuthOperation("login", "success")
	m.RecordAuthOperation("refresh", "token_revoked")
	m.RecordStoreError("blacklist", "check")
	m.RecordSessionSweep(3, nil)
	m.RecordSessionSweep(0, errors.New("scan failed"))
	m.RecordRateLimited("/auth/login")
	m.RecordAccessDenied("")
	m.SetActiveUsers(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthOperationsTotal.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthOperationsTotal.WithLabelValues("refresh", "token_revoked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrorsTotal.WithLabelValues("blacklist", "check")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsSweptTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionSweepErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("/auth/login")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccessDeniedTotal.WithLabelValues("anonymous")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ActiveUsers))
}

func TestMetrics_UpdateDBStats(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.UpdateDBStats(sql.DBStats{OpenConnections: 4, InUse: 1, WaitCount: 9})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBConnectionsInUse))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.DBConnectionsWaitCount))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/v1/teams/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/teams/"+id, nil))
		require.Equal(t, http.StatusTeapot, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/teams/{id}", "418")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordAuthOperation("logout", "success")

	rr := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `innosistemas_auth_operations_total{operation="logout",result="success"} 1`))
}
