// Package app 负责应用级编排：加载配置→初始化依赖→以服务器模式
// 或一次性回测模式运行。
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"kairos/internal/backtest"
	"kairos/internal/config"
	"kairos/internal/logger"
	"kairos/internal/market"
	"kairos/internal/report"
	"kairos/internal/risk"
	"kairos/internal/strategy"
)

// App 持有全部运行态依赖。
type App struct {
	cfg     *config.Config
	cfgPath string
	candles *market.Store
	results *backtest.ResultStore
	svc     *backtest.Service
	httpSrv *backtest.HTTPServer
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	candles, err := market.NewStore(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化行情存储失败: %w", err)
	}
	results, err := backtest.NewResultStore(cfg.Data.ResultDBPath)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}
	source := market.NewBinanceSource(cfg.Data.RESTBaseURL, time.Duration(cfg.Data.TimeoutSecs)*time.Second)
	svc, err := backtest.NewService(backtest.ServiceConfig{
		Results: results,
		Candles: candles,
		Source:  source,
		Defaults: backtest.Config{
			Symbol:         cfg.Backtest.Symbol,
			InitialCapital: cfg.Backtest.InitialCapital,
			CommissionRate: cfg.Backtest.CommissionRate,
			Slippage:       cfg.Backtest.Slippage,
			PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
		},
		RiskDefaults:    riskParams(cfg.Risk),
		RateLimitPerMin: cfg.Data.FetchPerMin,
		MaxConcurrent:   cfg.Backtest.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, candles: candles, results: results, svc: svc}
	if cfg.Server.Enabled {
		httpSrv, err := backtest.NewHTTPServer(backtest.HTTPConfig{
			Addr:    cfg.Server.HTTPAddr,
			Svc:     svc,
			Candles: candles,
		})
		if err != nil {
			return nil, err
		}
		a.httpSrv = httpSrv
	}
	return a, nil
}

// Run 启动应用：服务器模式下阻塞伺服 HTTP，否则跑一次本地回测。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	a.svc.SetContext(ctx)

	if a.httpSrv != nil {
		if strings.TrimSpace(a.cfgPath) != "" {
			watcher, err := config.NewWatcher(a.cfgPath)
			if err != nil {
				return fmt.Errorf("启动配置热重载失败: %w", err)
			}
			watcher.Subscribe(a.applyReload)
			logger.Infof("✓ 配置热重载已开启: %s", a.cfgPath)
		}
		logger.Infof("✓ HTTP 服务启动于 %s", a.cfg.Server.HTTPAddr)
		group, ctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
		return group.Wait()
	}
	return a.runOnce(ctx)
}

// EnableConfigReload 记录配置文件路径；服务器模式下监听其变更，
// 热更新日志级别与回测缺省参数。
func (a *App) EnableConfigReload(path string) {
	a.cfgPath = strings.TrimSpace(path)
}

// applyReload 把重载后的配置套用到运行中的服务。
func (a *App) applyReload(next *config.Config) {
	logger.SetLevel(next.App.LogLevel)
	a.svc.SetDefaults(backtest.Config{
		Symbol:         next.Backtest.Symbol,
		InitialCapital: next.Backtest.InitialCapital,
		CommissionRate: next.Backtest.CommissionRate,
		Slippage:       next.Backtest.Slippage,
		PeriodsPerYear: next.Backtest.PeriodsPerYear,
	}, riskParams(next.Risk))
}

// runOnce 按配置跑一次完整回测并打印摘要。
func (a *App) runOnce(ctx context.Context) error {
	cfg := a.cfg
	source, err := a.resolveSource(ctx)
	if err != nil {
		return err
	}

	name, params, err := a.resolveStrategy()
	if err != nil {
		return err
	}
	strat, err := strategy.Build(name, params)
	if err != nil {
		return err
	}
	riskMgr, err := risk.NewManager(riskParams(cfg.Risk))
	if err != nil {
		return err
	}
	bt, err := backtest.New(backtest.Config{
		Symbol:         cfg.Backtest.Symbol,
		InitialCapital: cfg.Backtest.InitialCapital,
		CommissionRate: cfg.Backtest.CommissionRate,
		Slippage:       cfg.Backtest.Slippage,
		PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
	})
	if err != nil {
		return err
	}

	results, err := bt.Run(strat, source, riskMgr)
	if err != nil {
		return err
	}
	logger.InfoBlock("回测结果", results.Summary())

	if cfg.Report.Enabled {
		candles, err := source.Range(0, source.Count()-1)
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.Report.Dir, fmt.Sprintf("%s_%s_%d.html",
			strings.ToLower(cfg.Backtest.Symbol), strings.ToLower(results.StrategyName), time.Now().Unix()))
		if err := report.WriteFile(path, report.Input{
			Title:          cfg.Backtest.Symbol + " " + results.StrategyName,
			Symbol:         cfg.Backtest.Symbol,
			StrategyName:   results.StrategyName,
			InitialCapital: results.InitialCapital,
			FinalEquity:    results.FinalEquity,
			EquityCurve:    results.EquityCurve,
			Trades:         results.Trades,
			Candles:        candles,
			Stats: report.Stats{
				TotalReturn:      results.Stats.TotalReturn,
				AnnualizedReturn: results.Stats.AnnualizedReturn,
				SharpeRatio:      results.Stats.SharpeRatio,
				MaxDrawdown:      results.Stats.MaxDrawdown,
				WinRate:          results.Stats.WinRate,
				ProfitFactor:     results.Stats.ProfitFactor,
				TotalTrades:      results.Stats.TotalTrades,
			},
		}); err != nil {
			return fmt.Errorf("写入报告失败: %w", err)
		}
		logger.Infof("✓ 报告已写入 %s", path)
	}
	return nil
}

// resolveSource 优先使用 CSV，其次读本地行情库。
func (a *App) resolveSource(ctx context.Context) (market.Source, error) {
	cfg := a.cfg
	if strings.TrimSpace(cfg.Data.CSVPath) != "" {
		return market.LoadCSV(cfg.Data.CSVPath, cfg.Backtest.Symbol)
	}
	candles, err := a.candles.RangeCandles(ctx, cfg.Backtest.Symbol, cfg.Backtest.Timeframe, 0, time.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("本地没有 %s %s 的行情，请先导入 CSV 或启动服务器模式拉取",
			cfg.Backtest.Symbol, cfg.Backtest.Timeframe)
	}
	return market.NewSliceSource(cfg.Backtest.Symbol, candles), nil
}

// resolveStrategy 解析策略档案引用，profile 优先于直接配置。
func (a *App) resolveStrategy() (string, map[string]float64, error) {
	sc := a.cfg.Strategy
	if strings.TrimSpace(sc.Profile) == "" {
		return sc.Name, sc.Params, nil
	}
	profiles, err := config.LoadProfiles(sc.ProfilesPath)
	if err != nil {
		return "", nil, err
	}
	p, err := config.ResolveProfile(profiles, sc.Profile)
	if err != nil {
		return "", nil, err
	}
	return p.Strategy, p.Params, nil
}

// Close 释放存储句柄。
func (a *App) Close() {
	if a.candles != nil {
		_ = a.candles.Close()
	}
	if a.results != nil {
		_ = a.results.Close()
	}
}

func riskParams(rc config.RiskConfig) risk.Parameters {
	return risk.Parameters{
		MaxPositionSize:   rc.MaxPositionSize,
		MaxDrawdown:       rc.MaxDrawdown,
		StopLossPct:       rc.StopLossPct,
		TakeProfitPct:     rc.TakeProfitPct,
		MaxDailyLoss:      rc.MaxDailyLoss,
		PositionSizingATR: rc.PositionSizingATR,
	}
}
