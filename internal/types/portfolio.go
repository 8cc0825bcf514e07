package types

// PortfolioState 按值传递的资金状态。状态迁移统一由 risk 包的
// ApplyFill 完成，其它组件只读；峰值显式存在字段里，多个回测
// 并行互不影响。
// 不变量：TotalValue == Cash + 持仓按最新标记价的市值。
type PortfolioState struct {
	Cash            float64 `json:"cash"`
	TotalValue      float64 `json:"total_value"`
	UnrealizedPnL   float64 `json:"unrealized_pnl"`
	RealizedPnL     float64 `json:"realized_pnl"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	PeakValue       float64 `json:"peak_value"`
}

// NewPortfolio 以初始资金构造空仓状态。
func NewPortfolio(initialCapital float64) PortfolioState {
	return PortfolioState{
		Cash:       initialCapital,
		TotalValue: initialCapital,
		PeakValue:  initialCapital,
	}
}
