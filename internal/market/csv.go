package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadCSV 读取 timestamp,open,high,low,close,volume 格式的行情文件。
// 首行视为表头跳过；timestamp 支持 Unix 毫秒、Unix 秒、RFC3339 和
// YYYY-MM-DD 四种写法。
func LoadCSV(path, symbol string) (*SliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开行情文件失败: %w", err)
	}
	defer f.Close()
	candles, err := parseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("行情文件 %s 没有数据行", path)
	}
	return NewSliceSource(symbol, candles), nil
}

func parseCSV(r io.Reader) ([]Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	var candles []Candle
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 {
			continue // header
		}
		if len(record) < 6 {
			return nil, fmt.Errorf("第 %d 行字段不足: %d", line, len(record))
		}
		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行时间戳无效: %w", line, err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行第 %d 列不是数字: %w", line, i+2, err)
			}
			vals[i] = v
		}
		candles = append(candles, Candle{
			OpenTime:  ts,
			CloseTime: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return candles, nil
}

func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("时间戳为空")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// 毫秒或秒，按量级区分
		if n > 1e12 {
			return n, nil
		}
		return n * 1000, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("无法识别的时间格式: %s", raw)
}
