package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kairos/internal/types"
)

func TestExecuteTradeBuy(t *testing.T) {
	cost := CostModel{CommissionRate: 0.001, Slippage: 0.01}
	sig := types.Signal{Type: types.SignalBuy, Price: 100, Quantity: 10, Timestamp: 42}

	trade := ExecuteTrade(sig, types.Position{}, cost)
	// 买入向不利方向滑点：100 * 1.01 = 101
	assert.InDelta(t, 101.0, trade.Price, 1e-9)
	assert.InDelta(t, 1.01, trade.Commission, 1e-9)
	assert.Zero(t, trade.RealizedPnL, "买入不结算盈亏")
	assert.Equal(t, types.SignalBuy, trade.Action)
	assert.Equal(t, int64(42), trade.Timestamp)
}

func TestExecuteTradeSell(t *testing.T) {
	cost := CostModel{CommissionRate: 0.001, Slippage: 0.01}
	pos := types.Position{Quantity: 10, AvgEntryPrice: 90}
	sig := types.Signal{Type: types.SignalSell, Price: 100, Quantity: 10}

	trade := ExecuteTrade(sig, pos, cost)
	// 卖出滑点：100 * 0.99 = 99
	assert.InDelta(t, 99.0, trade.Price, 1e-9)
	assert.InDelta(t, 0.99, trade.Commission, 1e-9)
	// 已实现盈亏 = (99-90)*10 - 0.99
	assert.InDelta(t, 89.01, trade.RealizedPnL, 1e-9)
}

func TestExecuteTradeZeroCost(t *testing.T) {
	trade := ExecuteTrade(types.Signal{Type: types.SignalBuy, Price: 100, Quantity: 5}, types.Position{}, CostModel{})
	assert.InDelta(t, 100.0, trade.Price, 1e-9)
	assert.Zero(t, trade.Commission)
	assert.InDelta(t, 500.0, trade.Notional(), 1e-9)
}
