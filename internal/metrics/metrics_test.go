package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("deposit", "ok")
	m.ObserveOperation("deposit", "ok")
	m.ObserveOperation("deposit", "InvalidAmount")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("deposit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("deposit", "InvalidAmount")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetBlockHeight(1234)
	m.ObserveOperation("withdraw", "CooldownActive")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	res := rec.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "staffledger_block_height 1234")
	assert.Contains(t, string(body), `staffledger_operations_total{operation="withdraw",result="CooldownActive"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("deposit", "ok")
	m.SetBlockHeight(1)
}
