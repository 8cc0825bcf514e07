package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store 以 symbol@timeframe 为粒度将 K 线落盘到独立的 sqlite 文件，
// 服务器模式下的回测从这里取数，避免重复拉取远端行情。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) db(symbol, timeframe string) (*sql.DB, error) {
	if symbol == "" || timeframe == "" {
		return nil, fmt.Errorf("symbol/timeframe 不能为空")
	}
	key := strings.ToUpper(symbol) + "@" + strings.ToLower(timeframe)
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok && db != nil {
		return db, nil
	}
	path := s.dbPath(symbol, timeframe)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			open_time  INTEGER PRIMARY KEY,
			close_time INTEGER NOT NULL,
			open   REAL NOT NULL,
			high   REAL NOT NULL,
			low    REAL NOT NULL,
			close  REAL NOT NULL,
			volume REAL NOT NULL,
			trades INTEGER NOT NULL DEFAULT 0
		)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.dbs[key] = db
	return db, nil
}

func (s *Store) dbPath(symbol, timeframe string) string {
	dir := filepath.Join(s.root, strings.ToUpper(symbol))
	return filepath.Join(dir, strings.ToLower(timeframe)+".db")
}

// InsertCandles 批量写入（重复 open_time 覆盖旧值）。
func (s *Store) InsertCandles(ctx context.Context, symbol, timeframe string, candles []Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	db, err := s.db(symbol, timeframe)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    trades=excluded.trades`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// RangeCandles 读取 [start, end] 毫秒区间内的 K 线，按时间升序。
func (s *Store) RangeCandles(ctx context.Context, symbol, timeframe string, start, end int64) ([]Candle, error) {
	db, err := s.db(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, trades
		FROM candles WHERE open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Candle
	for rows.Next() {
		var c Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Trades); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountCandles 统计已有条数。
func (s *Store) CountCandles(ctx context.Context, symbol, timeframe string) (int64, error) {
	db, err := s.db(symbol, timeframe)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candles`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SourceFor 将某段落盘数据包装为回测引擎可用的 Source。
func (s *Store) SourceFor(ctx context.Context, symbol, timeframe string, start, end int64) (*SliceSource, error) {
	candles, err := s.RangeCandles(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s %s 在 [%d,%d] 内没有K线", symbol, timeframe, start, end)
	}
	return NewSliceSource(symbol, candles), nil
}
