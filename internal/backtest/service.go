package backtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"kairos/internal/logger"
	"kairos/internal/market"
	"kairos/internal/risk"
	"kairos/internal/strategy"
)

// CandleSource 是远端行情拉取接口，market.BinanceSource 实现了它。
type CandleSource interface {
	Name() string
	Fetch(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]market.Candle, error)
}

// RunRequest 描述一次回测任务的全部输入。
type RunRequest struct {
	Symbol         string             `json:"symbol" binding:"required"`
	Strategy       string             `json:"strategy" binding:"required"`
	Timeframe      string             `json:"timeframe"`
	Start          int64              `json:"start_ts"`
	End            int64              `json:"end_ts"`
	Params         map[string]float64 `json:"params"`
	InitialCapital float64            `json:"initial_capital"`
	CommissionRate float64            `json:"commission_rate"`
	Slippage       float64            `json:"slippage"`
	PeriodsPerYear float64            `json:"periods_per_year"`
	Risk           *risk.Parameters   `json:"risk,omitempty"`
}

// ServiceConfig 配置回测服务。
type ServiceConfig struct {
	Results         *ResultStore
	Candles         *market.Store
	Source          CandleSource
	Defaults        Config
	RiskDefaults    risk.Parameters
	RateLimitPerMin int
	MaxConcurrent   int
}

// Service 管理回测任务：按需补齐行情、在后台跑引擎、落盘结果。
// 每个任务持有独立的策略与 Backtester 实例，互不共享可变状态。
type Service struct {
	results *ResultStore
	candles *market.Store
	source  CandleSource

	mu           sync.RWMutex // 保护可热更新的缺省参数
	defaults     Config
	riskDefaults risk.Parameters

	limiter   *rate.Limiter
	sem       chan struct{}
	batchSize int

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	if cfg.Candles == nil {
		return nil, fmt.Errorf("candle store 不能为空")
	}
	ratePerSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		ratePerSec = 8
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	defaults := cfg.Defaults
	if defaults.InitialCapital <= 0 {
		defaults.InitialCapital = 100000
	}
	riskDefaults := cfg.RiskDefaults
	if err := riskDefaults.Validate(); err != nil {
		riskDefaults = risk.DefaultParameters()
	}
	return &Service{
		results:      cfg.Results,
		candles:      cfg.Candles,
		source:       cfg.Source,
		defaults:     defaults,
		riskDefaults: riskDefaults,
		limiter:      rate.NewLimiter(ratePerSec, 4),
		sem:          make(chan struct{}, maxConcurrent),
		batchSize:    1000,
		baseCtx:      context.Background(),
	}, nil
}

// SetContext 注入宿主 ctx，用于后台任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

// SetDefaults 热更新缺省的引擎与风控参数；非法输入被忽略，
// 已提交的任务不受影响。
func (s *Service) SetDefaults(cfg Config, rp risk.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.InitialCapital > 0 {
		s.defaults = cfg
	}
	if rp.Validate() == nil {
		s.riskDefaults = rp
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// StartRun 校验请求并异步执行回测，立即返回 pending 状态的任务记录。
func (s *Service) StartRun(req RunRequest) (Run, error) {
	cfg, riskParams, err := s.resolve(&req)
	if err != nil {
		return Run{}, err
	}
	// 提交前先试构造一次策略，把参数错误挡在异步之外
	if _, err := strategy.Build(req.Strategy, req.Params); err != nil {
		return Run{}, err
	}

	run := Run{
		ID:             uuid.NewString(),
		Symbol:         req.Symbol,
		Strategy:       strings.ToUpper(strings.TrimSpace(req.Strategy)),
		Status:         RunStatusPending,
		InitialCapital: cfg.InitialCapital,
		Params:         req.Params,
		Config:         cfg,
	}
	if err := s.results.InsertRun(s.ctx(), run); err != nil {
		return Run{}, err
	}
	logger.Infow("回测任务提交", "run_id", run.ID, "symbol", req.Symbol, "strategy", run.Strategy, "start", req.Start, "end", req.End)

	go func() {
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx().Done():
			_ = s.results.UpdateRunStatus(context.Background(), run.ID, RunStatusFailed, "服务已关闭")
			return
		}
		defer func() { <-s.sem }()
		s.executeRun(s.ctx(), run.ID, req, cfg, riskParams)
	}()
	return run, nil
}

// RunBatch 并发执行一组互相独立的回测，整体等待完成。
func (s *Service) RunBatch(ctx context.Context, reqs []RunRequest) ([]Run, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	runs := make([]Run, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(s.sem))
	for i := range reqs {
		i := i
		req := reqs[i]
		cfg, riskParams, err := s.resolve(&req)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个请求非法: %w", i, err)
		}
		run := Run{
			ID:             uuid.NewString(),
			Symbol:         req.Symbol,
			Strategy:       strings.ToUpper(strings.TrimSpace(req.Strategy)),
			Status:         RunStatusPending,
			InitialCapital: cfg.InitialCapital,
			Params:         req.Params,
			Config:         cfg,
		}
		if err := s.results.InsertRun(ctx, run); err != nil {
			return nil, err
		}
		runs[i] = run
		g.Go(func() error {
			s.executeRun(gctx, run.ID, req, cfg, riskParams)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return runs, err
	}
	// 回读落盘后的最终状态，调用方拿到的是完成态记录
	for i := range runs {
		if got, err := s.results.GetRun(ctx, runs[i].ID); err == nil && got != nil {
			runs[i] = *got
		}
	}
	return runs, nil
}

func (s *Service) executeRun(ctx context.Context, runID string, req RunRequest, cfg Config, riskParams risk.Parameters) {
	fail := func(msg string) {
		logger.Warnw("回测任务失败", "run_id", runID, "reason", msg)
		_ = s.results.UpdateRunStatus(context.Background(), runID, RunStatusFailed, msg)
	}
	if err := s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "回测中"); err != nil {
		logger.Warnw("任务状态更新失败", "run_id", runID, "err", err)
	}

	source, err := s.loadSource(ctx, req)
	if err != nil {
		fail(err.Error())
		return
	}
	strat, err := strategy.Build(req.Strategy, req.Params)
	if err != nil {
		fail(err.Error())
		return
	}
	riskMgr, err := risk.NewManager(riskParams)
	if err != nil {
		fail(err.Error())
		return
	}
	bt, err := New(cfg)
	if err != nil {
		fail(err.Error())
		return
	}

	results, err := bt.Run(strat, source, riskMgr)
	if err != nil {
		fail(err.Error())
		return
	}
	if err := s.results.CompleteRun(ctx, runID, results); err != nil {
		fail("结果落盘失败: " + err.Error())
		return
	}
	logger.Infow("回测任务完成", "run_id", runID, "trades", len(results.Trades), "final_equity", results.FinalEquity)
}

// loadSource 先读本地库，缺数且配置了远端源时补拉。
func (s *Service) loadSource(ctx context.Context, req RunRequest) (market.Source, error) {
	candles, err := s.candles.RangeCandles(ctx, req.Symbol, req.Timeframe, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 && s.source != nil {
		if err := s.fetchRange(ctx, req.Symbol, req.Timeframe, req.Start, req.End); err != nil {
			return nil, err
		}
		candles, err = s.candles.RangeCandles(ctx, req.Symbol, req.Timeframe, req.Start, req.End)
		if err != nil {
			return nil, err
		}
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s %s 在 [%d,%d] 内没有K线", req.Symbol, req.Timeframe, req.Start, req.End)
	}
	return market.NewSliceSource(req.Symbol, candles), nil
}

// fetchRange 逐页从远端拉取区间行情并落盘。
func (s *Service) fetchRange(ctx context.Context, symbol, timeframe string, start, end int64) error {
	step, err := intervalMillis(timeframe)
	if err != nil {
		return err
	}
	cursor := start
	for cursor <= end {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		data, err := s.source.Fetch(ctx, symbol, timeframe, cursor, end, s.batchSize)
		if err != nil {
			return fmt.Errorf("%s 拉取失败: %w", s.source.Name(), err)
		}
		if len(data) == 0 {
			break
		}
		if _, err := s.candles.InsertCandles(ctx, symbol, timeframe, data); err != nil {
			return fmt.Errorf("写入失败: %w", err)
		}
		cursor = data[len(data)-1].OpenTime + step
	}
	return nil
}

// resolve 补全请求缺省值并返回可执行的引擎配置与风控参数。
func (s *Service) resolve(req *RunRequest) (Config, risk.Parameters, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return Config{}, risk.Parameters{}, fmt.Errorf("symbol 不能为空")
	}
	if strings.TrimSpace(req.Strategy) == "" {
		return Config{}, risk.Parameters{}, fmt.Errorf("strategy 不能为空")
	}
	if req.Timeframe == "" {
		req.Timeframe = "1d"
	}
	if len(req.Params) == 0 {
		req.Params = strategy.DefaultParameters(req.Strategy)
	}
	s.mu.RLock()
	defaults := s.defaults
	riskDefaults := s.riskDefaults
	s.mu.RUnlock()
	cfg := Config{
		Symbol:         req.Symbol,
		InitialCapital: req.InitialCapital,
		CommissionRate: req.CommissionRate,
		Slippage:       req.Slippage,
		PeriodsPerYear: req.PeriodsPerYear,
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = defaults.InitialCapital
	}
	if cfg.CommissionRate <= 0 {
		cfg.CommissionRate = defaults.CommissionRate
	}
	if cfg.Slippage <= 0 {
		cfg.Slippage = defaults.Slippage
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = defaults.PeriodsPerYear
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, risk.Parameters{}, err
	}
	riskParams := riskDefaults
	if req.Risk != nil {
		riskParams = *req.Risk
		if err := riskParams.Validate(); err != nil {
			return Config{}, risk.Parameters{}, err
		}
	}
	return cfg, riskParams, nil
}

// GetRun 查询任务记录。
func (s *Service) GetRun(ctx context.Context, id string) (*Run, error) {
	return s.results.GetRun(ctx, id)
}

// ListRuns 查询最近任务。
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.results.ListRuns(ctx, limit)
}

// intervalMillis 把 1m/5m/1h/1d/1w 这类周期换算为毫秒步长。
func intervalMillis(timeframe string) (int64, error) {
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	if len(tf) < 2 {
		return 0, fmt.Errorf("非法周期: %q", timeframe)
	}
	n := int64(0)
	for _, r := range tf[:len(tf)-1] {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("非法周期: %q", timeframe)
		}
		n = n*10 + int64(r-'0')
	}
	if n <= 0 {
		return 0, fmt.Errorf("非法周期: %q", timeframe)
	}
	var unit time.Duration
	switch tf[len(tf)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("非法周期单位: %q", timeframe)
	}
	return n * unit.Milliseconds(), nil
}
