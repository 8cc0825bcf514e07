package strategy

import (
	"fmt"

	"kairos/internal/indicator"
	"kairos/internal/market"
	"kairos/internal/types"
)

// 策略建议的名义买入数量，实际仓位由 risk 包重新计算。
const nominalBuyQuantity = 100

// SMACrossover 双均线交叉策略：短均线上穿长均线买入，下穿卖出。
type SMACrossover struct {
	shortPeriod int
	longPeriod  int
	hist        history
}

func NewSMACrossover() *SMACrossover {
	return &SMACrossover{}
}

func (s *SMACrossover) Name() string { return "SMA_CROSSOVER" }

// Initialize 要求 short_period ≥ 1 且 long_period > short_period。
func (s *SMACrossover) Initialize(params map[string]float64) error {
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

func (s *SMACrossover) GenerateSignal(c market.Candle, pos types.Position) (types.Signal, error) {
	s.hist.push(c)
	// 交叉检测需要“上一根”的两条均线，至少 long+1 根
	if s.hist.len() <= s.longPeriod {
		return types.Hold(c.CloseTime, "历史不足，等待均线成型"), nil
	}
	curShort, err := indicator.SMA(s.hist.window(), s.shortPeriod)
	if err != nil {
		return types.Signal{}, err
	}
	curLong, err := indicator.SMA(s.hist.window(), s.longPeriod)
	if err != nil {
		return types.Signal{}, err
	}
	prevShort, err := indicator.SMA(s.hist.prev(), s.shortPeriod)
	if err != nil {
		return types.Signal{}, err
	}
	prevLong, err := indicator.SMA(s.hist.prev(), s.longPeriod)
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
			Reason:    "短期SMA上穿长期SMA",
		}, nil
	case prevShort >= prevLong && curShort < curLong:
		return types.Signal{
			Type:      types.SignalSell,
			Price:     c.Close,
			Quantity:  pos.Quantity,
			Timestamp: c.CloseTime,
			Reason:    "短期SMA下穿长期SMA",
		}, nil
	default:
		return types.Hold(c.CloseTime, "未出现交叉"), nil
	}
}

func (s *SMACrossover) Update(market.Candle) {}

func (s *SMACrossover) Parameters() map[string]float64 {
	return map[string]float64{
		"short_period": float64(s.shortPeriod),
		"long_period":  float64(s.longPeriod),
	}
}
