package backtest

import "kairos/internal/types"

// CostModel 集中了全部交易成本假设，风控限制与它无关。
type CostModel struct {
	CommissionRate float64
	Slippage       float64
}

// ExecuteTrade 把一个已获批的信号转成成交：滑点按不利方向乘法施加
// （买入更贵、卖出更便宜），手续费按成交额计，卖出时顺带结算该笔
// 的已实现盈亏（买入为 0，盈亏只在离场时实现）。
func ExecuteTrade(sig types.Signal, pos types.Position, cost CostModel) types.Trade {
	trade := types.Trade{
		Timestamp: sig.Timestamp,
		Action:    sig.Type,
		Price:     sig.Price,
		Quantity:  sig.Quantity,
		Reason:    sig.Reason,
	}
	switch sig.Type {
	case types.SignalBuy:
		trade.Price = sig.Price * (1 + cost.Slippage)
	case types.SignalSell:
		trade.Price = sig.Price * (1 - cost.Slippage)
	}
	trade.Commission = trade.Price * trade.Quantity * cost.CommissionRate
	if sig.Type == types.SignalSell {
		trade.RealizedPnL = (trade.Price-pos.AvgEntryPrice)*trade.Quantity - trade.Commission
	}
	return trade
}
