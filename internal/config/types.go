package config

import "strings"

// Config 是 Kairos 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	Backtest BacktestConfig `toml:"backtest"`
	Risk     RiskConfig     `toml:"risk"`
	Strategy StrategyConfig `toml:"strategy"`
	Server   ServerConfig   `toml:"server"`
	Report   ReportConfig   `toml:"report"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 描述行情数据来源与本地落盘位置。
type DataConfig struct {
	Root         string `toml:"root"`           // sqlite 行情库根目录
	CSVPath      string `toml:"csv_path"`       // 一次性回测模式的 CSV 路径
	Exchange     string `toml:"exchange"`       // 远端行情源，目前仅 binance
	RESTBaseURL  string `toml:"rest_base_url"`  // 留空使用官方地址
	FetchPerMin  int    `toml:"fetch_per_min"`  // 远端拉取限速
	TimeoutSecs  int    `toml:"timeout_seconds"`
	ResultDBPath string `toml:"result_db_path"` // 回测结果库
}

// BacktestConfig 是引擎的资金与成本假设。
type BacktestConfig struct {
	Symbol         string  `toml:"symbol"`
	Timeframe      string  `toml:"timeframe"`
	InitialCapital float64 `toml:"initial_capital"`
	CommissionRate float64 `toml:"commission_rate"`
	Slippage       float64 `toml:"slippage"`
	PeriodsPerYear float64 `toml:"periods_per_year"`
	MaxConcurrent  int     `toml:"max_concurrent"`
}

type RiskConfig struct {
	MaxPositionSize   float64 `toml:"max_position_size"`
	MaxDrawdown       float64 `toml:"max_drawdown"`
	StopLossPct       float64 `toml:"stop_loss_pct"`
	TakeProfitPct     float64 `toml:"take_profit_pct"`
	MaxDailyLoss      float64 `toml:"max_daily_loss"`
	PositionSizingATR float64 `toml:"position_sizing_atr"`
}

// StrategyConfig 指定默认策略与参数来源。
type StrategyConfig struct {
	Name         string             `toml:"name"`
	Params       map[string]float64 `toml:"params"`
	ProfilesPath string             `toml:"profiles_path"`
	Profile      string             `toml:"profile"` // 指定后覆盖 name/params
}

type ServerConfig struct {
	Enabled  bool   `toml:"enabled"`
	HTTPAddr string `toml:"http_addr"`
}

type ReportConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// IsValidInterval 简易校验：以数字开头，以 m/h/d/w 结尾
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func normalized(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
