package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch normalized(a.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %s", a.LogLevel)
	}
}

func (d *DataConfig) validate() error {
	if strings.TrimSpace(d.Root) == "" {
		return fmt.Errorf("data.root cannot be empty")
	}
	if normalized(d.Exchange) != "binance" {
		return fmt.Errorf("data.exchange only supports 'binance', got %s", d.Exchange)
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if b.CommissionRate < 0 || b.CommissionRate > 1 {
		return fmt.Errorf("backtest.commission_rate must be in [0,1]")
	}
	if b.Slippage < 0 || b.Slippage > 1 {
		return fmt.Errorf("backtest.slippage must be in [0,1]")
	}
	if !IsValidInterval(b.Timeframe) {
		return fmt.Errorf("backtest.timeframe is invalid: %s", b.Timeframe)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	check := func(name string, v float64) error {
		if v <= 0 || v > 1 {
			return fmt.Errorf("risk.%s must be in (0, 1]", name)
		}
		return nil
	}
	if err := check("max_position_size", r.MaxPositionSize); err != nil {
		return err
	}
	if err := check("max_drawdown", r.MaxDrawdown); err != nil {
		return err
	}
	if err := check("stop_loss_pct", r.StopLossPct); err != nil {
		return err
	}
	if err := check("take_profit_pct", r.TakeProfitPct); err != nil {
		return err
	}
	if r.PositionSizingATR <= 0 {
		return fmt.Errorf("risk.position_sizing_atr must be > 0")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.Profile) == "" {
		return fmt.Errorf("strategy requires name or profile")
	}
	if strings.TrimSpace(s.Profile) != "" && strings.TrimSpace(s.ProfilesPath) == "" {
		return fmt.Errorf("strategy.profile set but strategy.profiles_path is empty")
	}
	return nil
}
