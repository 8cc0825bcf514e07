package config

import "strings"

// 默认值常量
const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppLogPath     = "data/logs/kairos.log"
	defaultDataRoot       = "data/candles"
	defaultDataExchange   = "binance"
	defaultDataFetchRate  = 480
	defaultDataTimeout    = 15
	defaultResultDBPath   = "data/db/backtest_runs.db"
	defaultSymbol         = "BTCUSDT"
	defaultTimeframe      = "1d"
	defaultInitialCapital = 100000
	defaultCommissionRate = 0.001
	defaultSlippage       = 0.0005
	defaultPeriodsPerYear = 252
	defaultMaxConcurrent  = 2
	defaultStrategyName   = "SMA_CROSSOVER"
	defaultHTTPAddr       = ":9991"
	defaultReportDir      = "data/reports"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Data.applyDefaults()
	c.Backtest.applyDefaults()
	c.Risk.applyDefaults()
	c.Strategy.applyDefaults()
	c.Server.applyDefaults()
	c.Report.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	setDefaultString(&a.Env, defaultAppEnv)
	setDefaultString(&a.LogLevel, defaultAppLogLevel)
	setDefaultString(&a.LogPath, defaultAppLogPath)
}

func (d *DataConfig) applyDefaults() {
	setDefaultString(&d.Root, defaultDataRoot)
	setDefaultString(&d.Exchange, defaultDataExchange)
	setDefaultString(&d.ResultDBPath, defaultResultDBPath)
	if d.FetchPerMin <= 0 {
		d.FetchPerMin = defaultDataFetchRate
	}
	if d.TimeoutSecs <= 0 {
		d.TimeoutSecs = defaultDataTimeout
	}
}

func (b *BacktestConfig) applyDefaults() {
	setDefaultString(&b.Symbol, defaultSymbol)
	setDefaultString(&b.Timeframe, defaultTimeframe)
	if b.InitialCapital <= 0 {
		b.InitialCapital = defaultInitialCapital
	}
	if b.CommissionRate <= 0 {
		b.CommissionRate = defaultCommissionRate
	}
	if b.Slippage <= 0 {
		b.Slippage = defaultSlippage
	}
	if b.PeriodsPerYear <= 0 {
		b.PeriodsPerYear = defaultPeriodsPerYear
	}
	if b.MaxConcurrent <= 0 {
		b.MaxConcurrent = defaultMaxConcurrent
	}
}

func (r *RiskConfig) applyDefaults() {
	if r.MaxPositionSize <= 0 {
		r.MaxPositionSize = 0.02
	}
	if r.MaxDrawdown <= 0 {
		r.MaxDrawdown = 0.20
	}
	if r.StopLossPct <= 0 {
		r.StopLossPct = 0.05
	}
	if r.TakeProfitPct <= 0 {
		r.TakeProfitPct = 0.10
	}
	if r.MaxDailyLoss <= 0 {
		r.MaxDailyLoss = 0.05
	}
	if r.PositionSizingATR <= 0 {
		r.PositionSizingATR = 2.0
	}
}

func (s *StrategyConfig) applyDefaults() {
	setDefaultString(&s.Name, defaultStrategyName)
}

func (s *ServerConfig) applyDefaults() {
	setDefaultString(&s.HTTPAddr, defaultHTTPAddr)
}

func (r *ReportConfig) applyDefaults() {
	setDefaultString(&r.Dir, defaultReportDir)
}

func setDefaultString(target *string, def string) {
	if target != nil && strings.TrimSpace(*target) == "" {
		*target = def
	}
}
