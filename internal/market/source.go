package market

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange 表示按下标访问 K 线时越界。
var ErrIndexOutOfRange = errors.New("k线下标越界")

// Source 抽象回测引擎消费的 K 线序列，屏蔽 CSV/sqlite/交易所等来源差异。
// 序列必须按时间升序，引擎不会做任何重排。
type Source interface {
	Count() int
	At(i int) (Candle, error)
	Range(start, end int) ([]Candle, error)
	Validate() error
}

// SliceSource 是内存中的 Source 实现，CSV/store 读取后都转换成它。
type SliceSource struct {
	symbol  string
	candles []Candle
}

// NewSliceSource 拷贝一份输入序列，调用方之后的修改不影响数据源。
func NewSliceSource(symbol string, candles []Candle) *SliceSource {
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	return &SliceSource{symbol: symbol, candles: cp}
}

func (s *SliceSource) Symbol() string { return s.symbol }

func (s *SliceSource) Count() int { return len(s.candles) }

func (s *SliceSource) At(i int) (Candle, error) {
	if i < 0 || i >= len(s.candles) {
		return Candle{}, fmt.Errorf("%w: i=%d count=%d", ErrIndexOutOfRange, i, len(s.candles))
	}
	return s.candles[i], nil
}

// Range 返回 [start, end] 闭区间的拷贝。
func (s *SliceSource) Range(start, end int) ([]Candle, error) {
	if start < 0 || end >= len(s.candles) || start > end {
		return nil, fmt.Errorf("%w: start=%d end=%d count=%d", ErrIndexOutOfRange, start, end, len(s.candles))
	}
	out := make([]Candle, end-start+1)
	copy(out, s.candles[start:end+1])
	return out, nil
}

func (s *SliceSource) Validate() error {
	if len(s.candles) == 0 {
		return errors.New("数据源为空")
	}
	return CheckSeries(s.candles)
}
