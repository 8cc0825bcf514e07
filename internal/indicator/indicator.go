package indicator

import (
	"errors"
	"fmt"
	"math"

	"kairos/internal/market"
)

// ErrInsufficientData 表示窗口长度不足以计算指标。
var ErrInsufficientData = errors.New("数据不足，无法计算指标")

// SMA 计算最近 period 根收盘价的算术平均。
func SMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("sma period 必须为正: %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("%w: sma 需要 %d 根，只有 %d 根", ErrInsufficientData, period, len(candles))
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// EMA 以前 period 根的 SMA 作为种子，再对其余元素按
// ema = close*k + ema*(1-k)，k = 2/(period+1) 递推。
// EMA 对整段输入路径敏感，调用方必须传完整历史而不是截尾窗口。
func EMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("ema period 必须为正: %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("%w: ema 需要 %d 根，只有 %d 根", ErrInsufficientData, period, len(candles))
	}
	ema := 0.0
	for i := 0; i < period; i++ {
		ema += candles[i].Close
	}
	ema /= float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		ema = candles[i].Close*k + ema*(1-k)
	}
	return ema, nil
}

// RSI 对窗口内逐根涨跌取最近 period 个的简单平均（非 Wilder 平滑），
// avg_loss 为 0 时约定返回 100。
func RSI(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("rsi period 必须为正: %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("%w: rsi 需要 %d 根，只有 %d 根", ErrInsufficientData, period+1, len(candles))
	}
	n := len(candles)
	gains := make([]float64, 0, n-1)
	losses := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := len(gains) - period; i < len(gains); i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// ATR 取每根的 true range（max(high-low, |high-prevClose|, |low-prevClose|)）
// 最近 period 个的简单平均。
func ATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("atr period 必须为正: %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("%w: atr 需要 %d 根，只有 %d 根", ErrInsufficientData, period+1, len(candles))
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		trs = append(trs, math.Max(hl, math.Max(hc, lc)))
	}
	sum := 0.0
	for i := len(trs) - period; i < len(trs); i++ {
		sum += trs[i]
	}
	return sum / float64(period), nil
}
