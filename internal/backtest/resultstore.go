package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kairos/internal/types"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// Run 是对外暴露的回测任务记录。
type Run struct {
	ID             string             `json:"id"`
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	Status         string             `json:"status"`
	Message        string             `json:"message"`
	InitialCapital float64            `json:"initial_capital"`
	FinalEquity    float64            `json:"final_equity"`
	Params         map[string]float64 `json:"params,omitempty"`
	Config         Config             `json:"config"`
	Stats          Stats              `json:"stats"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	CompletedAt    time.Time          `json:"completed_at,omitempty"`
}

type runModel struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Symbol         string         `gorm:"column:symbol;index"`
	Strategy       string         `gorm:"column:strategy"`
	Status         string         `gorm:"column:status;index"`
	Message        string         `gorm:"column:message"`
	InitialCapital float64        `gorm:"column:initial_capital"`
	FinalEquity    float64        `gorm:"column:final_equity"`
	Params         datatypes.JSON `gorm:"column:params"`
	Config         datatypes.JSON `gorm:"column:config"`
	Stats          datatypes.JSON `gorm:"column:stats"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
	CompletedAt    time.Time      `gorm:"column:completed_at"`
}

func (runModel) TableName() string { return "backtest_runs" }

type tradeModel struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	RunID       string  `gorm:"column:run_id;index"`
	Timestamp   int64   `gorm:"column:ts"`
	Action      string  `gorm:"column:action"`
	Price       float64 `gorm:"column:price"`
	Quantity    float64 `gorm:"column:quantity"`
	Commission  float64 `gorm:"column:commission"`
	RealizedPnL float64 `gorm:"column:realized_pnl"`
	Reason      string  `gorm:"column:reason"`
}

func (tradeModel) TableName() string { return "backtest_trades" }

type equityPointModel struct {
	ID     int64   `gorm:"column:id;primaryKey"`
	RunID  string  `gorm:"column:run_id;index"`
	Idx    int     `gorm:"column:idx"`
	Equity float64 `gorm:"column:equity"`
}

func (equityPointModel) TableName() string { return "backtest_equity" }

// ResultStore 用 gorm + sqlite 持久化回测任务、成交与资金曲线。
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &tradeModel{}, &equityPointModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &ResultStore{db: db}, nil
}

func (s *ResultStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertRun 写入待执行的任务记录。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	model, err := toRunModel(run)
	if err != nil {
		return err
	}
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now
	return s.db.WithContext(ctx).Create(model).Error
}

// UpdateRunStatus 更新任务状态及进度说明。
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	return s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"message":    message,
		"updated_at": time.Now(),
	}).Error
}

// CompleteRun 在一个事务里落盘统计、成交与资金曲线并置为 done。
func (s *ResultStore) CompleteRun(ctx context.Context, id string, results *Results) error {
	if results == nil {
		return fmt.Errorf("results 不能为空")
	}
	statsJSON, err := json.Marshal(results.Stats)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&runModel{}).Where("id = ?", id).Updates(map[string]any{
			"status":       RunStatusDone,
			"message":      "完成",
			"final_equity": results.FinalEquity,
			"stats":        datatypes.JSON(statsJSON),
			"updated_at":   now,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}
		if len(results.Trades) > 0 {
			models := make([]tradeModel, 0, len(results.Trades))
			for _, t := range results.Trades {
				models = append(models, tradeModel{
					RunID:       id,
					Timestamp:   t.Timestamp,
					Action:      string(t.Action),
					Price:       t.Price,
					Quantity:    t.Quantity,
					Commission:  t.Commission,
					RealizedPnL: t.RealizedPnL,
					Reason:      t.Reason,
				})
			}
			if err := tx.CreateInBatches(models, 200).Error; err != nil {
				return err
			}
		}
		if len(results.EquityCurve) > 0 {
			points := make([]equityPointModel, 0, len(results.EquityCurve))
			for i, e := range results.EquityCurve {
				points = append(points, equityPointModel{RunID: id, Idx: i, Equity: e})
			}
			if err := tx.CreateInBatches(points, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRun 按 ID 取任务，不存在时返回 (nil, nil)。
func (s *ResultStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var model runModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run, err := fromRunModel(model)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns 按创建时间倒序列出最近的任务。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []runModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(models))
	for _, m := range models {
		run, err := fromRunModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

// ListTrades 按时间升序返回某次回测的全部成交。
func (s *ResultStore) ListTrades(ctx context.Context, runID string) ([]types.Trade, error) {
	var models []tradeModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("ts ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, types.Trade{
			Timestamp:   m.Timestamp,
			Action:      types.SignalType(m.Action),
			Price:       m.Price,
			Quantity:    m.Quantity,
			Commission:  m.Commission,
			RealizedPnL: m.RealizedPnL,
			Reason:      m.Reason,
		})
	}
	return out, nil
}

// ListEquity 返回某次回测的资金曲线。
func (s *ResultStore) ListEquity(ctx context.Context, runID string) ([]float64, error) {
	var models []equityPointModel
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("idx ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(models))
	for _, m := range models {
		out = append(out, m.Equity)
	}
	return out, nil
}

func toRunModel(run Run) (*runModel, error) {
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return nil, err
	}
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return nil, err
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return nil, err
	}
	return &runModel{
		ID:             run.ID,
		Symbol:         run.Symbol,
		Strategy:       run.Strategy,
		Status:         run.Status,
		Message:        run.Message,
		InitialCapital: run.InitialCapital,
		FinalEquity:    run.FinalEquity,
		Params:         datatypes.JSON(paramsJSON),
		Config:         datatypes.JSON(cfgJSON),
		Stats:          datatypes.JSON(statsJSON),
	}, nil
}

func fromRunModel(m runModel) (Run, error) {
	run := Run{
		ID:             m.ID,
		Symbol:         m.Symbol,
		Strategy:       m.Strategy,
		Status:         m.Status,
		Message:        m.Message,
		InitialCapital: m.InitialCapital,
		FinalEquity:    m.FinalEquity,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		CompletedAt:    m.CompletedAt,
	}
	if len(m.Params) > 0 {
		if err := json.Unmarshal(m.Params, &run.Params); err != nil {
			return Run{}, err
		}
	}
	if len(m.Config) > 0 {
		if err := json.Unmarshal(m.Config, &run.Config); err != nil {
			return Run{}, err
		}
	}
	if len(m.Stats) > 0 {
		if err := json.Unmarshal(m.Stats, &run.Stats); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}
