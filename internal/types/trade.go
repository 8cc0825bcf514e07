package types

// Trade 记录一笔成交（已含滑点与手续费），写入成交日志后不再修改。
// RealizedPnL 只在 SELL 成交上非零，BUY 的盈亏在平仓时才实现。
type Trade struct {
	Timestamp   int64      `json:"timestamp"` // Unix ms
	Action      SignalType `json:"action"`
	Price       float64    `json:"price"` // 滑点后的成交价
	Quantity    float64    `json:"quantity"`
	Commission  float64    `json:"commission"`
	RealizedPnL float64    `json:"realized_pnl"`
	Reason      string     `json:"reason,omitempty"`
}

// Notional 返回成交名义金额。
func (t Trade) Notional() float64 {
	return t.Price * t.Quantity
}
