package strategy

import (
	"errors"
	"fmt"

	"kairos/internal/market"
	"kairos/internal/types"
)

// ErrInvalidParameters 表示策略参数缺失或越界，初始化阶段即失败。
var ErrInvalidParameters = errors.New("策略参数无效")

// Strategy 是回测引擎驱动的决策单元：每根 K 线产出一个信号。
// 实现只能读取传入的持仓快照，禁止修改任何资金状态。
type Strategy interface {
	Name() string
	Initialize(params map[string]float64) error
	GenerateSignal(c market.Candle, pos types.Position) (types.Signal, error)
	Update(c market.Candle)
	Parameters() map[string]float64
}

// history 是各策略共享的有界历史缓冲：超过 maxLen 时丢最旧一根。
type history struct {
	maxLen  int
	candles []market.Candle
}

func (h *history) push(c market.Candle) {
	h.candles = append(h.candles, c)
	if h.maxLen > 0 && len(h.candles) > h.maxLen {
		h.candles = h.candles[1:]
	}
}

func (h *history) len() int { return len(h.candles) }

// window 返回当前窗口；prev 返回剔除最新一根后的窗口，用于交叉检测。
func (h *history) window() []market.Candle { return h.candles }

func (h *history) prev() []market.Candle {
	if len(h.candles) == 0 {
		return nil
	}
	return h.candles[:len(h.candles)-1]
}

func requireParam(params map[string]float64, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: 缺少参数 %s", ErrInvalidParameters, key)
	}
	return v, nil
}
