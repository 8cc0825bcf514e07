package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionAddFill(t *testing.T) {
	p := Position{Symbol: "BTCUSDT"}
	assert.True(t, p.Flat())

	p = p.AddFill(100, 10)
	assert.False(t, p.Flat())
	assert.InDelta(t, 100.0, p.AvgEntryPrice, 1e-9)

	// 加权平均入场价：(100*10 + 110*10) / 20 = 105
	p = p.AddFill(110, 10)
	assert.InDelta(t, 20.0, p.Quantity, 1e-9)
	assert.InDelta(t, 105.0, p.AvgEntryPrice, 1e-9)

	// 非正数量不改变持仓
	same := p.AddFill(200, 0)
	assert.Equal(t, p, same)
}

func TestPositionReduce(t *testing.T) {
	p := Position{Symbol: "BTCUSDT", Quantity: 10, AvgEntryPrice: 100}

	p = p.Reduce(4)
	assert.InDelta(t, 6.0, p.Quantity, 1e-9)
	assert.InDelta(t, 100.0, p.AvgEntryPrice, 1e-9)

	// 卖超即抹平
	p = p.Reduce(100)
	assert.True(t, p.Flat())
	assert.Zero(t, p.AvgEntryPrice)
	assert.Equal(t, "BTCUSDT", p.Symbol)
}

func TestPositionValuation(t *testing.T) {
	p := Position{Symbol: "BTCUSDT", Quantity: 10, AvgEntryPrice: 100}
	assert.InDelta(t, 1100.0, p.MarketValue(110), 1e-9)
	assert.InDelta(t, 100.0, p.UnrealizedPnL(110), 1e-9)
	assert.InDelta(t, -50.0, p.UnrealizedPnL(95), 1e-9)

	flat := Position{}
	assert.Zero(t, flat.MarketValue(110))
	assert.Zero(t, flat.UnrealizedPnL(110))
}

func TestNewPortfolio(t *testing.T) {
	pf := NewPortfolio(100000)
	assert.InDelta(t, 100000.0, pf.Cash, 1e-9)
	assert.InDelta(t, 100000.0, pf.TotalValue, 1e-9)
	assert.InDelta(t, 100000.0, pf.PeakValue, 1e-9)
	assert.Zero(t, pf.RealizedPnL)
	assert.Zero(t, pf.MaxDrawdown)
}
