package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

const binanceMaxLimit = 1500

// BinanceSource 基于 go-binance SDK 拉取 USDT 合约历史 K 线，
// 只负责落盘前的数据获取，不参与回测循环。
type BinanceSource struct {
	client *futures.Client
}

// NewBinanceSource 构造只读行情客户端（无需密钥）。
func NewBinanceSource(baseURL string, timeout time.Duration) *BinanceSource {
	client := futures.NewClient("", "")
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = strings.TrimSpace(baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &BinanceSource{client: client}
}

func (b *BinanceSource) Name() string { return "binance" }

// Fetch 拉取 [start, end] 毫秒区间内最多 limit 根 K 线。
func (b *BinanceSource) Fetch(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]Candle, error) {
	symbol = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
	if symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval 不能为空")
	}
	if limit <= 0 || limit > binanceMaxLimit {
		limit = 1000
	}
	svc := b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if start > 0 {
		svc = svc.StartTime(start)
	}
	if end > 0 {
		svc = svc.EndTime(end)
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 拉取 %s %s 失败: %w", symbol, interval, err)
	}
	out := make([]Candle, 0, len(kls))
	for _, k := range kls {
		out = append(out, Candle{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			Trades:    k.TradeNum,
		})
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
