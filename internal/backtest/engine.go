package backtest

import (
	"fmt"
	"time"

	"kairos/internal/logger"
	"kairos/internal/market"
	"kairos/internal/risk"
	"kairos/internal/strategy"
	"kairos/internal/types"
)

// State 是回测器的生命周期状态，Completed/Failed 为终态。
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Config 描述一次回测的成本与资金假设，Run 期间只读。
type Config struct {
	Symbol             string  `json:"symbol"`
	InitialCapital     float64 `json:"initial_capital"`
	CommissionRate     float64 `json:"commission_rate"`
	Slippage           float64 `json:"slippage"`
	PeriodsPerYear     float64 `json:"periods_per_year"`
	EnableShortSelling bool    `json:"enable_short_selling"` // 预留，引擎当前只做多
}

// Validate 拒绝非正初始资金和越界的成本比例。
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital 必须为正，got %v", ErrInvalidConfig, c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.CommissionRate > 1 {
		return fmt.Errorf("%w: commission_rate 必须在 [0,1]，got %v", ErrInvalidConfig, c.CommissionRate)
	}
	if c.Slippage < 0 || c.Slippage > 1 {
		return fmt.Errorf("%w: slippage 必须在 [0,1]，got %v", ErrInvalidConfig, c.Slippage)
	}
	return nil
}

// Backtester 按时间顺序逐根驱动 策略→风控→执行→记账 的主循环。
// 单次 Run 内部严格串行；并行只允许发生在相互独立的 Backtester
// 实例之间（各自持有隔离的资金状态与策略实例）。
type Backtester struct {
	cfg     Config
	state   State
	results *Results
}

// New 校验配置并构造处于 Idle 态的回测器。
func New(cfg Config) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 252 // 日线默认交易日年化
	}
	return &Backtester{cfg: cfg, state: StateIdle}, nil
}

func (b *Backtester) State() State { return b.state }

func (b *Backtester) Config() Config { return b.cfg }

func (b *Backtester) Results() *Results { return b.results }

// Run 执行完整回测。要么整段 K 线处理完并产出统计，要么在产出
// 任何结果之前失败返回；不存在“算了一半”的 Results。
func (b *Backtester) Run(strat strategy.Strategy, source market.Source, riskMgr *risk.Manager) (*Results, error) {
	if strat == nil {
		return nil, ErrNilStrategy
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if riskMgr == nil {
		return nil, ErrNilRiskManager
	}
	if err := source.Validate(); err != nil {
		b.state = StateFailed
		return nil, fmt.Errorf("数据源校验失败: %w", err)
	}

	b.state = StateRunning
	cost := CostModel{CommissionRate: b.cfg.CommissionRate, Slippage: b.cfg.Slippage}
	pf := types.NewPortfolio(b.cfg.InitialCapital)
	pos := types.Position{Symbol: b.cfg.Symbol}

	count := source.Count()
	trades := make([]types.Trade, 0, 16)
	equity := make([]float64, 0, count)
	skipped := 0

	for i := 0; i < count; i++ {
		candle, err := source.At(i)
		if err != nil {
			b.state = StateFailed
			return nil, err
		}

		// 1) 策略基于进入本根时的持仓给出信号；单根失败按 HOLD 跳过
		sig, err := strat.GenerateSignal(candle, pos)
		if err != nil {
			skipped++
			logger.Warnf("[backtest] 第 %d 根信号生成失败，按 HOLD 跳过: %v", i, err)
			equity = append(equity, pf.Cash+pos.MarketValue(candle.Close))
			continue
		}

		// 2) 风控放行后定量、执行、记账
		if sig.Type != types.SignalHold && riskMgr.ValidateTrade(sig, pf) {
			switch sig.Type {
			case types.SignalBuy:
				sig.Quantity = riskMgr.PositionSize(sig, pf)
			case types.SignalSell:
				// 只做多：卖出数量不超过当前持仓
				if sig.Quantity <= 0 || sig.Quantity > pos.Quantity {
					sig.Quantity = pos.Quantity
				}
			}
			if sig.Quantity > 0 {
				trade := ExecuteTrade(sig, pos, cost)
				if sig.Type == types.SignalBuy {
					pos = pos.AddFill(trade.Price, trade.Quantity)
				} else {
					pos = pos.Reduce(trade.Quantity)
				}
				pf = riskMgr.ApplyFill(pf, trade, pos, candle.Close)
				trades = append(trades, trade)
			}
		}

		// 3) 仍有持仓时评估止损/止盈，触发则按收盘价全平
		if !pos.Flat() && riskMgr.ShouldClose(pos, candle, pf) {
			closeSig := types.Signal{
				Type:      types.SignalSell,
				Price:     candle.Close,
				Quantity:  pos.Quantity,
				Timestamp: candle.CloseTime,
				Reason:    "止损/止盈保护性平仓",
			}
			trade := ExecuteTrade(closeSig, pos, cost)
			pos = pos.Reduce(trade.Quantity)
			pf = riskMgr.ApplyFill(pf, trade, pos, candle.Close)
			trades = append(trades, trade)
		}

		// 4) 逐根盯市记录资金曲线
		equity = append(equity, pf.Cash+pos.MarketValue(candle.Close))
	}

	finalEquity := b.cfg.InitialCapital
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1]
	}
	results := &Results{
		Symbol:         b.cfg.Symbol,
		StrategyName:   strat.Name(),
		InitialCapital: b.cfg.InitialCapital,
		FinalEquity:    finalEquity,
		Trades:         trades,
		EquityCurve:    equity,
		SkippedBars:    skipped,
		Stats:          ComputeStats(trades, equity, b.cfg.InitialCapital, b.cfg.PeriodsPerYear),
		FinishedAt:     time.Now(),
	}
	b.results = results
	b.state = StateCompleted
	return results, nil
}
