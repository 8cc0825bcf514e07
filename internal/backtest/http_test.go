package backtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestHTTPRunBatch(t *testing.T) {
	svc, candles := newTestService(t)
	storeCloses(t, candles, "BTCUSDT", 10, 9, 8, 7, 20, 5, 5, 5)
	srv, err := NewHTTPServer(HTTPConfig{Svc: svc, Candles: candles})
	require.NoError(t, err)

	body := `{"runs":[
		{"symbol":"BTCUSDT","strategy":"SMA_CROSSOVER","timeframe":"1m","end_ts":10000000,"params":{"short_period":2,"long_period":3}},
		{"symbol":"BTCUSDT","strategy":"RSI","timeframe":"1m","end_ts":10000000,"params":{"period":3,"overbought_threshold":70,"oversold_threshold":30}}
	]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/backtest/runs/batch", strings.NewReader(body))
	srv.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	runs := gjson.Get(w.Body.String(), "runs").Array()
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0].Get("id").String(), runs[1].Get("id").String())
	for _, r := range runs {
		assert.Equal(t, RunStatusDone, r.Get("status").String(), r.Raw)
	}
}

func TestHTTPRunBatchBadBody(t *testing.T) {
	svc, candles := newTestService(t)
	srv, err := NewHTTPServer(HTTPConfig{Svc: svc, Candles: candles})
	require.NoError(t, err)

	for _, body := range []string{"not json", `{"runs":{}}`, `{"runs":[]}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/backtest/runs/batch", strings.NewReader(body))
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
