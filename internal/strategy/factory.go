package strategy

import (
	"fmt"
	"strings"
)

// New 按名称构造策略实例，名称大小写不敏感，支持常用别名。
func New(name string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SMA", "SMA_CROSSOVER":
		return NewSMACrossover(), nil
	case "EMA", "EMA_CROSSOVER":
		return NewEMACrossover(), nil
	case "RSI", "RSI_STRATEGY":
		return NewRSIThreshold(), nil
	default:
		return nil, fmt.Errorf("未知策略: %s（可选 SMA_CROSSOVER/EMA_CROSSOVER/RSI）", name)
	}
}

// DefaultParameters 返回各策略的默认参数集。
func DefaultParameters(name string) map[string]float64 {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SMA", "SMA_CROSSOVER":
		return map[string]float64{"short_period": 10, "long_period": 30}
	case "EMA", "EMA_CROSSOVER":
		return map[string]float64{"short_period": 12, "long_period": 26}
	case "RSI", "RSI_STRATEGY":
		return map[string]float64{"period": 14, "overbought_threshold": 70, "oversold_threshold": 30}
	default:
		return nil
	}
}

// Build 构造并初始化策略；params 为空时使用默认参数。
func Build(name string, params map[string]float64) (Strategy, error) {
	s, err := New(name)
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		params = DefaultParameters(name)
	}
	if err := s.Initialize(params); err != nil {
		return nil, err
	}
	return s, nil
}
