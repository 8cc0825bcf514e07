// Package report 把回测结果渲染为单页 HTML 报告：
// 资金曲线、回撤曲线、可选的 K 线图（叠加 EMA），以及统计摘要。
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	chtypes "github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"

	"kairos/internal/market"
	"kairos/internal/types"
)

const (
	colorBackground = "#060c1b"
	colorText       = "#eceff4"
	colorTextDim    = "#9ca3af"
	colorEquity     = "#3b82f6"
	colorDrawdown   = "#f87171"
	colorBull       = "#34d399"
	colorBear       = "#f87171"
	colorEmaFast    = "#fbbf24"
	colorEmaSlow    = "#f472b6"

	chartWidthPx  = 1400
	chartHeightPx = 420
)

// Stats 是报告展示用的统计摘要。
type Stats struct {
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	MaxDrawdown      float64
	WinRate          float64
	ProfitFactor     float64
	TotalTrades      int
}

// Input 是渲染报告所需的全部数据；Candles 可选，缺省时跳过 K 线图。
type Input struct {
	Title          string
	Symbol         string
	StrategyName   string
	InitialCapital float64
	FinalEquity    float64
	EquityCurve    []float64
	Trades         []types.Trade
	Candles        []market.Candle
	Stats          Stats
}

// Render 把报告写入 w。
func Render(w io.Writer, in Input) error {
	if len(in.EquityCurve) == 0 {
		return fmt.Errorf("资金曲线为空，无法渲染报告")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	if in.Title != "" {
		page.PageTitle = in.Title
	}

	page.AddCharts(buildEquityChart(in))
	page.AddCharts(buildDrawdownChart(in.EquityCurve))
	if len(in.Candles) > 0 {
		page.AddCharts(buildKlineChart(in))
	}
	return page.Render(w)
}

// WriteFile 渲染报告并写入 path，目录不存在时自动创建。
func WriteFile(path string, in Input) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Render(f, in)
}

func baseInit() opts.Initialization {
	return opts.Initialization{
		Theme:           chtypes.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", chartHeightPx),
		BackgroundColor: colorBackground,
	}
}

func buildEquityChart(in Input) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(baseInit()),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s 资金曲线", in.Symbol, in.StrategyName),
			Subtitle:      statsSubtitle(in.Stats),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextDim},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorText}}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
		}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	x := make([]string, len(in.EquityCurve))
	data := make([]opts.LineData, len(in.EquityCurve))
	for i, v := range in.EquityCurve {
		x[i] = fmt.Sprintf("%d", i)
		data[i] = opts.LineData{Value: round(v, 2)}
	}
	line.SetXAxis(x)
	line.AddSeries("Equity", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	return line
}

func buildDrawdownChart(equity []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(baseInit()),
		charts.WithTitleOpts(opts.Title{
			Title:      "回撤",
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorText},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{AxisLabel: &opts.AxisLabel{Color: colorTextDim}}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	x := make([]string, len(equity))
	data := make([]opts.LineData, len(equity))
	peak := math.Inf(-1)
	for i, v := range equity {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak
		}
		x[i] = fmt.Sprintf("%d", i)
		data[i] = opts.LineData{Value: round(dd*100, 3)}
	}
	line.SetXAxis(x)
	line.AddSeries("Drawdown %", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}))
	return line
}

func buildKlineChart(in Input) *charts.Kline {
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(baseInit()),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("%s K线", in.Symbol),
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorText},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorText}}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextDim},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	x := make([]string, len(in.Candles))
	data := make([]opts.KlineData, len(in.Candles))
	closes := make([]float64, len(in.Candles))
	for i, c := range in.Candles {
		x[i] = time.UnixMilli(c.CloseTime).UTC().Format("01-02 15:04")
		data[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
		closes[i] = c.Close
	}
	kline.SetXAxis(x)
	kline.AddSeries("Price", data)

	// 均线叠加需要足够的历史长度
	if len(closes) > 26 {
		line := charts.NewLine()
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		line.SetXAxis(x)
		line.AddSeries("EMA12", toLineData(talib.Ema(closes, 12)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaFast, Width: 2}))
		line.AddSeries("EMA26", toLineData(talib.Ema(closes, 26)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaSlow, Width: 2}))
		kline.Overlap(line)
	}
	return kline
}

func statsSubtitle(s Stats) string {
	return fmt.Sprintf("收益 %.2f%% | 年化 %.2f%% | Sharpe %.2f | 最大回撤 %.2f%% | 胜率 %.1f%% | 盈亏比 %.2f | 交易 %d 笔",
		s.TotalReturn*100, s.AnnualizedReturn*100, s.SharpeRatio, s.MaxDrawdown*100, s.WinRate*100, s.ProfitFactor, s.TotalTrades)
}

func toLineData(series []float64) []opts.LineData {
	out := make([]opts.LineData, len(series))
	for i, v := range series {
		if math.IsNaN(v) || v == 0 {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: round(v, 4)}
	}
	return out
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
