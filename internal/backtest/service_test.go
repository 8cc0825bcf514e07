package backtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/internal/market"
)

func newTestService(t *testing.T) (*Service, *market.Store) {
	t.Helper()
	dir := t.TempDir()
	results, err := NewResultStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = results.Close() })
	candles, err := market.NewStore(filepath.Join(dir, "candles"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = candles.Close() })

	svc, err := NewService(ServiceConfig{
		Results:       results,
		Candles:       candles,
		MaxConcurrent: 2,
	})
	require.NoError(t, err)
	return svc, candles
}

func storeCloses(t *testing.T, store *market.Store, symbol string, closes ...float64) {
	t.Helper()
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i)*60_000 + 59_999,
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    10,
		}
	}
	_, err := store.InsertCandles(context.Background(), symbol, "1m", out)
	require.NoError(t, err)
}

func TestRunBatchConcurrentIsolatedRuns(t *testing.T) {
	svc, candles := newTestService(t)
	ctx := context.Background()

	// BTCUSDT：下跌后急拉再崩，产生买入 + 止损卖出
	storeCloses(t, candles, "BTCUSDT", 10, 9, 8, 7, 20, 5, 5, 5)
	// ETHUSDT：横盘，均线永不交叉
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	storeCloses(t, candles, "ETHUSDT", flat...)

	params := map[string]float64{"short_period": 2, "long_period": 3}
	reqs := []RunRequest{
		{Symbol: "BTCUSDT", Strategy: "SMA_CROSSOVER", Timeframe: "1m", Start: 0, End: 10_000_000, Params: params},
		{Symbol: "ETHUSDT", Strategy: "SMA_CROSSOVER", Timeframe: "1m", Start: 0, End: 10_000_000, Params: params},
	}
	runs, err := svc.RunBatch(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)

	for _, r := range runs {
		got, err := svc.GetRun(ctx, r.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, RunStatusDone, got.Status, got.Message)
	}

	// 两个任务的结果互相隔离
	btcTrades, err := svc.results.ListTrades(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, btcTrades)

	ethTrades, err := svc.results.ListTrades(ctx, runs[1].ID)
	require.NoError(t, err)
	assert.Empty(t, ethTrades)

	ethRun, err := svc.GetRun(ctx, runs[1].ID)
	require.NoError(t, err)
	assert.InDelta(t, 100000.0, ethRun.FinalEquity, 1e-6, "横盘不交易，权益不变")

	btcEquity, err := svc.results.ListEquity(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, btcEquity, 8)
	ethEquity, err := svc.results.ListEquity(ctx, runs[1].ID)
	require.NoError(t, err)
	assert.Len(t, ethEquity, 30)
}

func TestRunBatchRejectsInvalidRequest(t *testing.T) {
	svc, candles := newTestService(t)
	storeCloses(t, candles, "BTCUSDT", 10, 9, 8, 7, 20)

	reqs := []RunRequest{
		{Symbol: "BTCUSDT", Strategy: "SMA_CROSSOVER", Timeframe: "1m", End: 10_000_000},
		{Symbol: "", Strategy: "SMA_CROSSOVER", Timeframe: "1m", End: 10_000_000},
	}
	_, err := svc.RunBatch(context.Background(), reqs)
	assert.Error(t, err)
}

func TestRunBatchEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	runs, err := svc.RunBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, runs)
}

func TestStartRunMissingData(t *testing.T) {
	svc, _ := newTestService(t)
	run, err := svc.StartRun(RunRequest{Symbol: "BTCUSDT", Strategy: "SMA_CROSSOVER", Timeframe: "1m", End: 10_000_000})
	require.NoError(t, err, "提交应成功，失败发生在异步执行阶段")
	require.NotEmpty(t, run.ID)

	// 没有行情也没有远端源，任务最终进入 failed
	assert.Eventually(t, func() bool {
		got, err := svc.GetRun(context.Background(), run.ID)
		return err == nil && got != nil && got.Status == RunStatusFailed
	}, 5*time.Second, 50*time.Millisecond)
}
