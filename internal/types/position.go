package types

// Position 表示当前唯一持仓（单标的、只做多）。
// Quantity 为 0 表示空仓，空仓时 AvgEntryPrice 同样为 0。
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// Flat 判断是否空仓。
func (p Position) Flat() bool {
	return p.Quantity <= 0
}

// MarketValue 按给定价格计算持仓市值。
func (p Position) MarketValue(price float64) float64 {
	if p.Flat() {
		return 0
	}
	return p.Quantity * price
}

// UnrealizedPnL 按给定价格计算浮动盈亏。
func (p Position) UnrealizedPnL(price float64) float64 {
	if p.Flat() {
		return 0
	}
	return (price - p.AvgEntryPrice) * p.Quantity
}

// AddFill 返回按数量加权平均入场价合并买入后的新持仓。
func (p Position) AddFill(price, qty float64) Position {
	if qty <= 0 {
		return p
	}
	total := p.Quantity + qty
	avg := price
	if p.Quantity > 0 {
		avg = (p.AvgEntryPrice*p.Quantity + price*qty) / total
	}
	return Position{Symbol: p.Symbol, Quantity: total, AvgEntryPrice: avg}
}

// Reduce 返回卖出 qty 后的新持仓，数量降到 0 及以下时完全抹平。
func (p Position) Reduce(qty float64) Position {
	remain := p.Quantity - qty
	if remain <= 0 {
		return Position{Symbol: p.Symbol}
	}
	return Position{Symbol: p.Symbol, Quantity: remain, AvgEntryPrice: p.AvgEntryPrice}
}
