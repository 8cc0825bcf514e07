package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"kairos/internal/types"
)

func TestComputeStatsNoTrades(t *testing.T) {
	equity := []float64{100000, 100000, 100000}
	s := ComputeStats(nil, equity, 100000, 252)

	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.TotalReturn)
	assert.Zero(t, s.AnnualizedReturn)
	assert.Zero(t, s.MaxDrawdown)
	assert.Zero(t, s.SharpeRatio)
	assert.Zero(t, s.ProfitFactor)
}

func TestComputeStatsTradeBreakdown(t *testing.T) {
	trades := []types.Trade{
		{Action: types.SignalSell, RealizedPnL: 100},
		{Action: types.SignalSell, RealizedPnL: 50},
		{Action: types.SignalSell, RealizedPnL: -30},
		{Action: types.SignalBuy, RealizedPnL: 0},
	}
	equity := []float64{100000, 100120}
	s := ComputeStats(trades, equity, 100000, 252)

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 0.5, s.WinRate, 1e-9)
	assert.InDelta(t, 75.0, s.AvgWin, 1e-9)
	assert.InDelta(t, -30.0, s.AvgLoss, 1e-9, "平均亏损为负值")
	assert.InDelta(t, 5.0, s.ProfitFactor, 1e-9)
}

func TestComputeStatsProfitFactorNoLosers(t *testing.T) {
	trades := []types.Trade{{Action: types.SignalSell, RealizedPnL: 10}}
	s := ComputeStats(trades, []float64{100, 110}, 100, 252)
	assert.Zero(t, s.ProfitFactor, "没有亏损交易时盈亏比约定为 0")
}

func TestComputeStatsAnnualized(t *testing.T) {
	// 252 根权益、总收益 10% → 年化恰为 10%
	equity := make([]float64, 252)
	for i := range equity {
		equity[i] = 100000 + float64(i)*(10000.0/251.0)
	}
	equity[251] = 110000
	s := ComputeStats(nil, equity, 100000, 252)
	assert.InDelta(t, 0.10, s.TotalReturn, 1e-9)
	assert.InDelta(t, 0.10, s.AnnualizedReturn, 1e-9)

	// 两年跨度（504 根）年化低于总收益
	equity2 := make([]float64, 504)
	for i := range equity2 {
		equity2[i] = 100000
	}
	equity2[503] = 110000
	s2 := ComputeStats(nil, equity2, 100000, 252)
	assert.InDelta(t, math.Sqrt(1.10)-1, s2.AnnualizedReturn, 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	assert.Zero(t, MaxDrawdown(nil))
	assert.Zero(t, MaxDrawdown([]float64{100, 110, 120}))
	// 峰值 120 跌到 90 → 0.25
	assert.InDelta(t, 0.25, MaxDrawdown([]float64{100, 120, 90, 130}), 1e-9)
	// 后续新低相对新峰值
	assert.InDelta(t, 0.5, MaxDrawdown([]float64{100, 200, 100, 150}), 1e-9)
}

func TestMaxDrawdownMonotoneNonDecreasing(t *testing.T) {
	equity := []float64{100, 120, 90, 130, 80, 140}
	prev := 0.0
	for i := 1; i <= len(equity); i++ {
		dd := MaxDrawdown(equity[:i])
		assert.GreaterOrEqual(t, dd, prev)
		prev = dd
	}
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, SharpeRatio(nil))
	assert.Zero(t, SharpeRatio([]float64{0.01}), "单个观测不足以计算")
	assert.Zero(t, SharpeRatio([]float64{0.01, 0.01, 0.01}), "零方差约定为 0")

	// 均值 0.01，样本标准差（n-1）
	returns := []float64{0.0, 0.02}
	mean := 0.01
	std := math.Sqrt((math.Pow(0.0-mean, 2) + math.Pow(0.02-mean, 2)) / 1.0)
	assert.InDelta(t, mean/std, SharpeRatio(returns), 1e-9)
}

func TestEquityReturns(t *testing.T) {
	rets := equityReturns([]float64{100, 110, 99})
	assert.Len(t, rets, 2)
	assert.InDelta(t, 0.10, rets[0], 1e-9)
	assert.InDelta(t, -0.10, rets[1], 1e-9)

	assert.Nil(t, equityReturns([]float64{100}))
}
