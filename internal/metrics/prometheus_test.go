package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	rec := NewPrometheusRecorder()
	rec.IncCounter(PurchaseSubmitted, map[string]string{"currency": "USDT"})
	rec.IncCounter(PurchaseSubmitted, map[string]string{"currency": "USDT"})
	rec.ObserveLatency("buy", 250*time.Millisecond, map[string]string{"currency": "ETH"})

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `icosale_events_total{currency="USDT",type="purchase_submitted"} 2`)
	assert.Contains(t, string(body), `icosale_latency_seconds_count{currency="ETH",operation="buy"} 1`)
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
}
