package backtest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"kairos/internal/market"
	"kairos/internal/report"
	"kairos/internal/risk"
)

// HTTPServer 提供 Gin 接口，供外部提交回测、查询结果与管理行情数据。
type HTTPServer struct {
	addr    string
	svc     *Service
	candles *market.Store
	router  *gin.Engine
}

type HTTPConfig struct {
	Addr    string
	Svc     *Service
	Candles *market.Store
}

func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &HTTPServer{
		addr:    cfg.Addr,
		svc:     cfg.Svc,
		candles: cfg.Candles,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	api := s.router.Group("/api/backtest")
	api.POST("/runs", s.handleRunStart)
	api.POST("/runs/batch", s.handleRunBatch)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/equity", s.handleRunEquity)
	api.GET("/runs/:id/report", s.handleRunReport)
	api.GET("/candles", s.handleCandles)
	api.POST("/candles/import", s.handleCandleImport)
}

// runRequestFrom 用 gjson 解析单个任务描述：params 是自由形态的
// 数字映射，各策略字段不同，不适合固定结构体绑定。
func runRequestFrom(item gjson.Result) RunRequest {
	req := RunRequest{
		Symbol:         item.Get("symbol").String(),
		Strategy:       item.Get("strategy").String(),
		Timeframe:      item.Get("timeframe").String(),
		Start:          item.Get("start_ts").Int(),
		End:            item.Get("end_ts").Int(),
		InitialCapital: item.Get("initial_capital").Float(),
		CommissionRate: item.Get("commission_rate").Float(),
		Slippage:       item.Get("slippage").Float(),
		PeriodsPerYear: item.Get("periods_per_year").Float(),
	}
	if params := item.Get("params"); params.IsObject() {
		req.Params = make(map[string]float64)
		params.ForEach(func(key, value gjson.Result) bool {
			req.Params[key.String()] = value.Float()
			return true
		})
	}
	if rk := item.Get("risk"); rk.IsObject() {
		req.Risk = &risk.Parameters{
			MaxPositionSize:   rk.Get("max_position_size").Float(),
			MaxDrawdown:       rk.Get("max_drawdown").Float(),
			StopLossPct:       rk.Get("stop_loss_pct").Float(),
			TakeProfitPct:     rk.Get("take_profit_pct").Float(),
			MaxDailyLoss:      rk.Get("max_daily_loss").Float(),
			PositionSizingATR: rk.Get("position_sizing_atr").Float(),
		}
	}
	return req
}

func (s *HTTPServer) handleRunStart(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不是合法 JSON"})
		return
	}
	run, err := s.svc.StartRun(runRequestFrom(gjson.ParseBytes(body)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// handleRunBatch 同步执行一组相互独立的回测，全部完成后一次性返回。
func (s *HTTPServer) handleRunBatch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不是合法 JSON"})
		return
	}
	items := gjson.GetBytes(body, "runs")
	if !items.IsArray() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "runs 必须是数组"})
		return
	}
	arr := items.Array()
	if len(arr) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "runs 不能为空"})
		return
	}
	reqs := make([]RunRequest, 0, len(arr))
	for _, item := range arr {
		reqs = append(reqs, runRequestFrom(item))
	}
	runs, err := s.svc.RunBatch(c.Request.Context(), reqs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *HTTPServer) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.svc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *HTTPServer) handleRunDetail(c *gin.Context) {
	run, err := s.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *HTTPServer) handleRunTrades(c *gin.Context) {
	trades, err := s.svc.results.ListTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *HTTPServer) handleRunEquity(c *gin.Context) {
	equity, err := s.svc.results.ListEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"equity": equity})
}

// handleRunReport 把已完成任务渲染为 HTML 报告。
func (s *HTTPServer) handleRunReport(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	run, err := s.svc.GetRun(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if run.Status != RunStatusDone {
		c.JSON(http.StatusConflict, gin.H{"error": "任务尚未完成"})
		return
	}
	trades, err := s.svc.results.ListTrades(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	equity, err := s.svc.results.ListEquity(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	in := report.Input{
		Title:          run.Symbol + " " + run.Strategy,
		Symbol:         run.Symbol,
		StrategyName:   run.Strategy,
		InitialCapital: run.InitialCapital,
		FinalEquity:    run.FinalEquity,
		EquityCurve:    equity,
		Trades:         trades,
		Stats: report.Stats{
			TotalReturn:      run.Stats.TotalReturn,
			AnnualizedReturn: run.Stats.AnnualizedReturn,
			SharpeRatio:      run.Stats.SharpeRatio,
			MaxDrawdown:      run.Stats.MaxDrawdown,
			WinRate:          run.Stats.WinRate,
			ProfitFactor:     run.Stats.ProfitFactor,
			TotalTrades:      run.Stats.TotalTrades,
		},
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.Render(c.Writer, in); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *HTTPServer) handleCandles(c *gin.Context) {
	if s.candles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情存储未启用"})
		return
	}
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol/timeframe 必填"})
		return
	}
	start, _ := strconv.ParseInt(c.Query("start_ts"), 10, 64)
	end, _ := strconv.ParseInt(c.Query("end_ts"), 10, 64)
	data, err := s.candles.RangeCandles(c.Request.Context(), symbol, tf, start, end)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": data})
}

// handleCandleImport 把服务器本地的 CSV 文件导入行情库。
func (s *HTTPServer) handleCandleImport(c *gin.Context) {
	if s.candles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "行情存储未启用"})
		return
	}
	var req struct {
		Path      string `json:"path" binding:"required"`
		Symbol    string `json:"symbol" binding:"required"`
		Timeframe string `json:"timeframe" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src, err := market.LoadCSV(req.Path, req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	candles, err := src.Range(0, src.Count()-1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	inserted, err := s.candles.InsertCandles(c.Request.Context(), req.Symbol, req.Timeframe, candles)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
