package backtest

import (
	"math"

	"kairos/internal/types"
)

// ComputeStats 每次回测结束后从零计算全部指标，不做增量维护。
// Sharpe 基于逐根权益收益、零无风险利率、样本方差（n-1）；
// 年化按 (1+r)^(periodsPerYear/numBars)-1，日线取 252。
func ComputeStats(trades []types.Trade, equity []float64, initialCapital, periodsPerYear float64) Stats {
	var s Stats
	s.TotalTrades = len(trades)

	var sumWin, sumLoss float64
	for _, t := range trades {
		switch {
		case t.RealizedPnL > 0:
			s.WinningTrades++
			sumWin += t.RealizedPnL
		case t.RealizedPnL < 0:
			s.LosingTrades++
			sumLoss += t.RealizedPnL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	if s.WinningTrades > 0 {
		s.AvgWin = sumWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = sumLoss / float64(s.LosingTrades)
		s.ProfitFactor = sumWin / math.Abs(sumLoss)
	}

	if len(equity) > 0 && initialCapital > 0 {
		final := equity[len(equity)-1]
		s.TotalReturn = (final - initialCapital) / initialCapital
		if periodsPerYear > 0 {
			s.AnnualizedReturn = math.Pow(1+s.TotalReturn, periodsPerYear/float64(len(equity))) - 1
		}
	}
	s.MaxDrawdown = MaxDrawdown(equity)
	s.SharpeRatio = SharpeRatio(equityReturns(equity))
	return s
}

// MaxDrawdown 单次遍历维护运行峰值，返回观测到的最大回撤。
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	maxDD := 0.0
	peak := equity[0]
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeRatio 对收益序列取 mean/sampleStddev；不足 2 个观测或
// 标准差为 0 时约定为 0。
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}

func equityReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}
