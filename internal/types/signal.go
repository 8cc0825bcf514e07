package types

// SignalType 表示策略输出的交易方向。
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Signal 是策略每根 K 线产出的决策，只在当根循环内使用，不落盘。
// Reason 仅用于诊断展示，控制流不得依赖它。
type Signal struct {
	Type      SignalType `json:"type"`
	Price     float64    `json:"price"`
	Quantity  float64    `json:"quantity"`
	Timestamp int64      `json:"timestamp"` // Unix ms
	Reason    string     `json:"reason,omitempty"`
}

// Hold 返回指定时间戳的 HOLD 信号。
func Hold(ts int64, reason string) Signal {
	return Signal{Type: SignalHold, Timestamp: ts, Reason: reason}
}
