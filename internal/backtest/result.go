package backtest

import (
	"fmt"
	"strings"
	"time"

	"kairos/internal/types"
)

// Stats 是统计引擎在整段资金曲线和成交日志上一次性算出的指标。
type Stats struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
	ProfitFactor     float64 `json:"profit_factor"`
}

// Results 是一次完整回测的产出，Run 返回后不再修改。
type Results struct {
	Symbol         string        `json:"symbol"`
	StrategyName   string        `json:"strategy_name"`
	InitialCapital float64       `json:"initial_capital"`
	FinalEquity    float64       `json:"final_equity"`
	Trades         []types.Trade `json:"trades"`
	EquityCurve    []float64     `json:"equity_curve"`
	SkippedBars    int           `json:"skipped_bars"`
	Stats          Stats         `json:"stats"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Summary 渲染多行文本摘要，配合 logger.InfoBlock 输出。
func (r *Results) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "策略       : %s (%s)\n", r.StrategyName, r.Symbol)
	fmt.Fprintf(&b, "总收益     : %.2f%%\n", r.Stats.TotalReturn*100)
	fmt.Fprintf(&b, "年化收益   : %.2f%%\n", r.Stats.AnnualizedReturn*100)
	fmt.Fprintf(&b, "夏普比率   : %.3f\n", r.Stats.SharpeRatio)
	fmt.Fprintf(&b, "最大回撤   : %.2f%%\n", r.Stats.MaxDrawdown*100)
	fmt.Fprintf(&b, "胜率       : %.2f%% (%d/%d)\n", r.Stats.WinRate*100, r.Stats.WinningTrades, r.Stats.TotalTrades)
	fmt.Fprintf(&b, "盈亏比率   : %.3f\n", r.Stats.ProfitFactor)
	fmt.Fprintf(&b, "期末资金   : %.2f（初始 %.2f）\n", r.FinalEquity, r.InitialCapital)
	if r.SkippedBars > 0 {
		fmt.Fprintf(&b, "跳过K线    : %d\n", r.SkippedBars)
	}
	return b.String()
}
