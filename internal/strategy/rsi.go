package strategy

import (
	"fmt"

	"kairos/internal/indicator"
	"kairos/internal/market"
	"kairos/internal/types"
)

// RSIThreshold 超买超卖策略：RSI 低于 oversold 买入，高于 overbought 卖出。
type RSIThreshold struct {
	period     int
	overbought float64
	oversold   float64
	hist       history
}

func NewRSIThreshold() *RSIThreshold {
	return &RSIThreshold{}
}

func (s *RSIThreshold) Name() string { return "RSI_STRATEGY" }

// Initialize 要求 period ∈ (1,50]，阈值在 0~100 且 overbought > oversold
// （overbought 不低于 50、oversold 不高于 50）。
func (s *RSIThreshold) Initialize(params map[string]float64) error {
	period, err := requireParam(params, "period")
	if err != nil {
		return err
	}
	overbought, err := requireParam(params, "overbought_threshold")
	if err != nil {
		return err
	}
	oversold, err := requireParam(params, "oversold_threshold")
	if err != nil {
		return err
	}
	if period <= 1 || period > 50 {
		return fmt.Errorf("%w: period 必须在 (1,50]，got %v", ErrInvalidParameters, period)
	}
	if overbought < 50 || overbought > 100 {
		return fmt.Errorf("%w: overbought_threshold 必须在 [50,100]，got %v", ErrInvalidParameters, overbought)
	}
	if oversold < 0 || oversold > 50 {
		return fmt.Errorf("%w: oversold_threshold 必须在 [0,50]，got %v", ErrInvalidParameters, oversold)
	}
	if overbought <= oversold {
		return fmt.Errorf("%w: overbought 必须大于 oversold（%v ≤ %v）", ErrInvalidParameters, overbought, oversold)
	}
	s.period = int(period)
	s.overbought = overbought
	s.oversold = oversold
	s.hist = history{maxLen: s.period + 1}
	return nil
}

func (s *RSIThreshold) GenerateSignal(c market.Candle, pos types.Position) (types.Signal, error) {
	s.hist.push(c)
	if s.hist.len() < s.period+1 {
		return types.Hold(c.CloseTime, "历史不足，等待RSI成型"), nil
	}
	rsi, err := indicator.RSI(s.hist.window(), s.period)
	if err != nil {
		return types.Signal{}, err
	}
	switch {
	case rsi < s.oversold:
		return types.Signal{
			Type:      types.SignalBuy,
			Price:     c.Close,
			Quantity:  nominalBuyQuantity,
			Timestamp: c.CloseTime,
			Reason:    fmt.Sprintf("RSI=%.2f 低于超卖阈值 %.0f", rsi, s.oversold),
		}, nil
	case rsi > s.overbought:
		return types.Signal{
			Type:      types.SignalSell,
			Price:     c.Close,
			Quantity:  pos.Quantity,
			Timestamp: c.CloseTime,
			Reason:    fmt.Sprintf("RSI=%.2f 高于超买阈值 %.0f", rsi, s.overbought),
		}, nil
	default:
		return types.Hold(c.CloseTime, fmt.Sprintf("RSI=%.2f 处于区间内", rsi)), nil
	}
}

func (s *RSIThreshold) Update(market.Candle) {}

func (s *RSIThreshold) Parameters() map[string]float64 {
	return map[string]float64{
		"period":               float64(s.period),
		"overbought_threshold": s.overbought,
		"oversold_threshold":   s.oversold,
	}
}
