package backtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kairos/internal/market"
	"kairos/internal/risk"
	"kairos/internal/strategy"
	"kairos/internal/types"
)

func testConfig() Config {
	return Config{
		Symbol:         "BTCUSDT",
		InitialCapital: 100000,
		CommissionRate: 0,
		Slippage:       0,
		PeriodsPerYear: 252,
	}
}

func seriesSource(closes ...float64) *market.SliceSource {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i)*60_000 + 59_999,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return market.NewSliceSource("BTCUSDT", candles)
}

func testRiskManager(t *testing.T) *risk.Manager {
	t.Helper()
	m, err := risk.NewManager(risk.DefaultParameters())
	require.NoError(t, err)
	return m
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"negative capital", func(c *Config) { c.InitialCapital = -1 }},
		{"commission above 1", func(c *Config) { c.CommissionRate = 1.5 }},
		{"negative commission", func(c *Config) { c.CommissionRate = -0.1 }},
		{"slippage above 1", func(c *Config) { c.Slippage = 2 }},
		{"negative slippage", func(c *Config) { c.Slippage = -0.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
	assert.NoError(t, testConfig().Validate())
}

func TestNewDefaultsPeriodsPerYear(t *testing.T) {
	cfg := testConfig()
	cfg.PeriodsPerYear = 0
	bt, err := New(cfg)
	require.NoError(t, err)
	assert.InDelta(t, 252.0, bt.Config().PeriodsPerYear, 1e-9)
	assert.Equal(t, StateIdle, bt.State())
}

func TestRunRejectsNilInputs(t *testing.T) {
	bt, err := New(testConfig())
	require.NoError(t, err)

	strat, err := strategy.Build("SMA_CROSSOVER", nil)
	require.NoError(t, err)
	src := seriesSource(1, 2, 3)
	mgr := testRiskManager(t)

	_, err = bt.Run(nil, src, mgr)
	assert.ErrorIs(t, err, ErrNilStrategy)
	_, err = bt.Run(strat, nil, mgr)
	assert.ErrorIs(t, err, ErrNilSource)
	_, err = bt.Run(strat, src, nil)
	assert.ErrorIs(t, err, ErrNilRiskManager)
}

func TestRunFailsOnInvalidSource(t *testing.T) {
	bt, err := New(testConfig())
	require.NoError(t, err)
	strat, err := strategy.Build("SMA_CROSSOVER", nil)
	require.NoError(t, err)

	bad := market.NewSliceSource("BTCUSDT", []market.Candle{
		{OpenTime: 0, Open: 10, High: 9, Low: 11, Close: 10, Volume: 1}, // high < low
	})
	_, err = bt.Run(strat, bad, testRiskManager(t))
	assert.Error(t, err)
	assert.Equal(t, StateFailed, bt.State())
}

func TestRunFlatMarketProducesNoTrades(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	bt, err := New(testConfig())
	require.NoError(t, err)
	strat, err := strategy.Build("SMA_CROSSOVER", map[string]float64{"short_period": 5, "long_period": 10})
	require.NoError(t, err)

	results, err := bt.Run(strat, seriesSource(closes...), testRiskManager(t))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, bt.State())
	assert.Empty(t, results.Trades)
	assert.Len(t, results.EquityCurve, 30)
	assert.InDelta(t, 100000.0, results.FinalEquity, 1e-9)
	assert.Zero(t, results.Stats.TotalReturn)
}

func TestRunExecutesCrossoverRoundTrip(t *testing.T) {
	// 下跌后急涨触发金叉买入，再急跌触发死叉卖出
	closes := []float64{10, 9, 8, 7, 20, 5, 5, 5}
	bt, err := New(testConfig())
	require.NoError(t, err)
	strat, err := strategy.Build("SMA_CROSSOVER", map[string]float64{"short_period": 2, "long_period": 3})
	require.NoError(t, err)

	results, err := bt.Run(strat, seriesSource(closes...), testRiskManager(t))
	require.NoError(t, err)
	require.NotEmpty(t, results.Trades)
	assert.Equal(t, types.SignalBuy, results.Trades[0].Action)
	// 风控按组合比例定量：100000*0.02/20 = 100
	assert.InDelta(t, 100.0, results.Trades[0].Quantity, 1e-9)

	// 离场后空仓，资金曲线与成交账目自洽
	last := results.EquityCurve[len(results.EquityCurve)-1]
	assert.InDelta(t, results.FinalEquity, last, 1e-9)
	assert.Len(t, results.EquityCurve, len(closes))
}

func TestRunStopLossForcesExit(t *testing.T) {
	// 买入后价格跌破 5% 止损，保护性平仓在当根收盘执行
	closes := []float64{10, 9, 8, 7, 20, 10}
	bt, err := New(testConfig())
	require.NoError(t, err)
	strat, err := strategy.Build("SMA_CROSSOVER", map[string]float64{"short_period": 2, "long_period": 3})
	require.NoError(t, err)

	results, err := bt.Run(strat, seriesSource(closes...), testRiskManager(t))
	require.NoError(t, err)
	require.Len(t, results.Trades, 2)
	assert.Equal(t, types.SignalBuy, results.Trades[0].Action)
	sell := results.Trades[1]
	assert.Equal(t, types.SignalSell, sell.Action)
	assert.InDelta(t, 10.0, sell.Price, 1e-9)
	assert.InDelta(t, results.Trades[0].Quantity, sell.Quantity, 1e-9)
	assert.Negative(t, sell.RealizedPnL)
}

func TestRunIsDeterministic(t *testing.T) {
	closes := []float64{10, 9, 8, 7, 20, 5, 5, 12, 30, 8, 8, 8}
	run := func() *Results {
		bt, err := New(testConfig())
		require.NoError(t, err)
		strat, err := strategy.Build("SMA_CROSSOVER", map[string]float64{"short_period": 2, "long_period": 3})
		require.NoError(t, err)
		results, err := bt.Run(strat, seriesSource(closes...), testRiskManager(t))
		require.NoError(t, err)
		return results
	}

	a := run()
	b := run()
	assert.Equal(t, len(a.Trades), len(b.Trades))
	assert.Equal(t, a.FinalEquity, b.FinalEquity)
	assert.Equal(t, a.EquityCurve, b.EquityCurve)
	assert.Equal(t, a.Stats, b.Stats)
}

// flakyStrategy 在指定下标的 K 线上返回错误，其余一律 HOLD。
type flakyStrategy struct {
	failAt map[int]bool
	seen   int
}

func (f *flakyStrategy) Name() string                          { return "FLAKY" }
func (f *flakyStrategy) Initialize(map[string]float64) error   { return nil }
func (f *flakyStrategy) Update(market.Candle)                  {}
func (f *flakyStrategy) Parameters() map[string]float64        { return nil }
func (f *flakyStrategy) GenerateSignal(c market.Candle, _ types.Position) (types.Signal, error) {
	i := f.seen
	f.seen++
	if f.failAt[i] {
		return types.Signal{}, fmt.Errorf("bar %d 故障", i)
	}
	return types.Hold(c.CloseTime, ""), nil
}

func TestRunSkipsBarOnStrategyError(t *testing.T) {
	bt, err := New(testConfig())
	require.NoError(t, err)
	strat := &flakyStrategy{failAt: map[int]bool{1: true, 3: true}}

	results, err := bt.Run(strat, seriesSource(10, 11, 12, 13, 14), testRiskManager(t))
	require.NoError(t, err, "单根失败不终止整个回测")
	assert.Equal(t, 2, results.SkippedBars)
	assert.Len(t, results.EquityCurve, 5, "跳过的 K 线仍然记录权益")
	assert.Empty(t, results.Trades)
}
