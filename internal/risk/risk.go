package risk

import (
	"fmt"

	"kairos/internal/indicator"
	"kairos/internal/market"
	"kairos/internal/types"
)

// concentrationCap 是独立于 MaxPositionSize 的单标的集中度硬上限：
// 即使配置再激进，单笔持仓也不会超过组合的 10%。
const concentrationCap = 0.10

// Parameters 为风险参数，构造后只读。
type Parameters struct {
	MaxPositionSize   float64 `json:"max_position_size"` // 单笔仓位占组合比例上限
	MaxDrawdown       float64 `json:"max_drawdown"`      // 回撤超过该值后停止开新仓
	StopLossPct       float64 `json:"stop_loss_pct"`
	TakeProfitPct     float64 `json:"take_profit_pct"`
	MaxDailyLoss      float64 `json:"max_daily_loss"`
	PositionSizingATR float64 `json:"position_sizing_atr"`
}

// DefaultParameters 返回保守的默认风控参数。
func DefaultParameters() Parameters {
	return Parameters{
		MaxPositionSize:   0.02,
		MaxDrawdown:       0.20,
		StopLossPct:       0.05,
		TakeProfitPct:     0.10,
		MaxDailyLoss:      0.05,
		PositionSizingATR: 2.0,
	}
}

// Validate 要求各比例落在 (0,1] 内。
func (p Parameters) Validate() error {
	check := func(name string, v float64) error {
		if v <= 0 || v > 1 {
			return fmt.Errorf("risk.%s 必须在 (0,1]，got %v", name, v)
		}
		return nil
	}
	if err := check("max_position_size", p.MaxPositionSize); err != nil {
		return err
	}
	if err := check("max_drawdown", p.MaxDrawdown); err != nil {
		return err
	}
	if err := check("stop_loss_pct", p.StopLossPct); err != nil {
		return err
	}
	if err := check("take_profit_pct", p.TakeProfitPct); err != nil {
		return err
	}
	return nil
}

// Manager 持有只读参数，所有方法都是无副作用的纯计算。
type Manager struct {
	params Parameters
}

func NewManager(p Parameters) (*Manager, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Manager{params: p}, nil
}

func (m *Manager) Parameters() Parameters { return m.params }

// ValidateTrade 是纯谓词：回撤越限、HOLD 信号、非正价格一律拒绝。
func (m *Manager) ValidateTrade(sig types.Signal, pf types.PortfolioState) bool {
	if pf.CurrentDrawdown > m.params.MaxDrawdown {
		return false
	}
	if sig.Type == types.SignalHold {
		return false
	}
	if sig.Price <= 0 {
		return false
	}
	return true
}

// PositionSize 按组合比例给出买入数量，并叠加集中度硬上限；
// HOLD 或非正价格一律返回 0（失败即关闭）。
func (m *Manager) PositionSize(sig types.Signal, pf types.PortfolioState) float64 {
	if sig.Type == types.SignalHold || sig.Price <= 0 {
		return 0
	}
	byConfig := pf.TotalValue * m.params.MaxPositionSize / sig.Price
	byCap := pf.TotalValue * concentrationCap / sig.Price
	if byCap < byConfig {
		return byCap
	}
	return byConfig
}

// ApplyFill 是组合状态唯一的变更入口：输入旧状态与一笔成交，
// 返回新状态。pos 为成交后的持仓，markPrice 为当根收盘价，
// 总值按盯市（现金 + 持仓市值）计算；峰值显式随状态传递。
func (m *Manager) ApplyFill(pf types.PortfolioState, trade types.Trade, pos types.Position, markPrice float64) types.PortfolioState {
	next := pf
	switch trade.Action {
	case types.SignalBuy:
		next.Cash -= trade.Notional() + trade.Commission
	case types.SignalSell:
		next.Cash += trade.Notional() - trade.Commission
		next.RealizedPnL += trade.RealizedPnL
	default:
		return pf
	}
	next.UnrealizedPnL = pos.UnrealizedPnL(markPrice)
	next.TotalValue = next.Cash + pos.MarketValue(markPrice)

	if next.TotalValue > next.PeakValue {
		next.PeakValue = next.TotalValue
		next.CurrentDrawdown = 0
	} else {
		next.CurrentDrawdown = Drawdown(next.PeakValue, next.TotalValue)
		if next.CurrentDrawdown > next.MaxDrawdown {
			next.MaxDrawdown = next.CurrentDrawdown
		}
	}
	return next
}

// ShouldClose 判断保护性离场：相对入场价的涨跌幅触及止损/止盈即平仓。
// 纯谓词，由引擎负责实际的平仓成交。
func (m *Manager) ShouldClose(pos types.Position, c market.Candle, _ types.PortfolioState) bool {
	if pos.Flat() || pos.AvgEntryPrice <= 0 {
		return false
	}
	pctChange := (c.Close - pos.AvgEntryPrice) / pos.AvgEntryPrice
	if decimalLTE(pctChange, -m.params.StopLossPct) {
		return true
	}
	if decimalGTE(pctChange, m.params.TakeProfitPct) {
		return true
	}
	return false
}

// ATR 暴露给仓位控制和报表复用，数据不足时原样上抛 ErrInsufficientData。
func (m *Manager) ATR(candles []market.Candle, period int) (float64, error) {
	return indicator.ATR(candles, period)
}

// Drawdown 计算相对峰值的回撤比例，未跌破峰值时为 0。
func Drawdown(peak, current float64) float64 {
	if peak <= 0 || current >= peak {
		return 0
	}
	return (peak - current) / peak
}

// Kelly 按胜率和盈亏比给出凯利仓位建议，上限 25%。
func Kelly(winRate, avgWin, avgLoss float64) float64 {
	if avgLoss <= 0 {
		return 0
	}
	ratio := avgWin / avgLoss
	if ratio <= 0 {
		return 0
	}
	k := winRate - (1-winRate)/ratio
	if k > 0.25 {
		return 0.25
	}
	return k
}
