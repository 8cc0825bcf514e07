package market

import "fmt"

// Candle 表示一根 OHLCV K 线，解析完成后视为不可变。
type Candle struct {
	OpenTime  int64   `json:"open_time"`  // Unix ms
	CloseTime int64   `json:"close_time"` // Unix ms
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Check 校验单根 K 线：OHLCV 必须为正，且 high/low 覆盖 open/close。
func (c Candle) Check() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 || c.Volume <= 0 {
		return fmt.Errorf("k线 @%d 存在非正的 OHLCV 值", c.OpenTime)
	}
	if c.High < c.Open || c.High < c.Close || c.High < c.Low {
		return fmt.Errorf("k线 @%d high 低于 open/close/low", c.OpenTime)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("k线 @%d low 高于 open/close", c.OpenTime)
	}
	return nil
}

// CheckSeries 校验整段序列，并要求时间戳严格递增。
func CheckSeries(candles []Candle) error {
	for i, c := range candles {
		if err := c.Check(); err != nil {
			return err
		}
		if i > 0 && candles[i].OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("k线序列在 index=%d 处时间戳未递增", i)
		}
	}
	return nil
}

// Closes 提取收盘价序列。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
