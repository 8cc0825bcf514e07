package strategy

import (
	"fmt"

	"kairos/internal/indicator"
	"kairos/internal/market"
	"kairos/internal/types"
)

// EMACrossover 指数均线交叉策略，检测逻辑与 SMA 版本一致，
// 但 EMA 对窗口路径敏感，始终把整个缓冲交给指标计算。
type EMACrossover struct {
	shortPeriod int
	longPeriod  int
	hist        history
}

func NewEMACrossover() *EMACrossover {
	return &EMACrossover{}
}

func (s *EMACrossover) Name() string { return "EMA_CROSSOVER" }

func (s *EMACrossover) Initialize(params map[string]float64) error {
	shortP, err := requireParam(params, "short_period")
	if err != nil {
		return err
	}
	longP, err := requireParam(params, "long_period")
	if err != nil {
		return err
	}
	if shortP < 1 {
		return fmt.Errorf("%w: short_period 必须 ≥ 1，got %v", ErrInvalidParameters, shortP)
	}
	if longP <= shortP {
		return fmt.Errorf("%w: long_period 必须大于 short_period（%v ≤ %v）", ErrInvalidParameters, longP, shortP)
	}
	s.shortPeriod = int(shortP)
	s.longPeriod = int(longP)
	s.hist = history{maxLen: s.longPeriod + 1}
	return nil
}

func (s *EMACrossover) GenerateSignal(c market.Candle, pos types.Position) (types.Signal, error) {
	s.hist.push(c)
	if s.hist.len() <= s.longPeriod {
		return types.Hold(c.CloseTime, "历史不足，等待均线成型"), nil
	}
	curShort, err := indicator.EMA(s.hist.window(), s.shortPeriod)
	if err != nil {
		return types.Signal{}, err
	}
	curLong, err := indicator.EMA(s.hist.window(), s.longPeriod)
	if err != nil {
		return types.Signal{}, err
	}
	prevShort, err := indicator.EMA(s.hist.prev(), s.shortPeriod)
	if err != nil {
		return types.Signal{}, err
	}
	prevLong, err := indicator.EMA(s.hist.prev(), s.longPeriod)
	if err != nil {
		return types.Signal{}, err
	}

	switch {
	case prevShort <= prevLong && curShort > curLong:
		return types.Signal{
			Type:      types.SignalBuy,
			Price:     c.Close,
			Quantity:  nominalBuyQuantity,
			Timestamp: c.CloseTime,
			Reason:    "短期EMA上穿长期EMA",
		}, nil
	case prevShort >= prevLong && curShort < curLong:
		return types.Signal{
			Type:      types.SignalSell,
			Price:     c.Close,
			Quantity:  pos.Quantity,
			Timestamp: c.CloseTime,
			Reason:    "短期EMA下穿长期EMA",
		}, nil
	default:
		return types.Hold(c.CloseTime, "未出现交叉"), nil
	}
}

func (s *EMACrossover) Update(market.Candle) {}

func (s *EMACrossover) Parameters() map[string]float64 {
	return map[string]float64{
		"short_period": float64(s.shortPeriod),
		"long_period":  float64(s.longPeriod),
	}
}
