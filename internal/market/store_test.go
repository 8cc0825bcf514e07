package market

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	candles := []Candle{validCandle(0, 100), validCandle(1, 101), validCandle(2, 102)}

	n, err := store.InsertCandles(ctx, "BTCUSDT", "1m", candles)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := store.CountCandles(ctx, "BTCUSDT", "1m")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	got, err := store.RangeCandles(ctx, "BTCUSDT", "1m", 0, 200_000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, candles, got)

	// 区间裁剪
	got, err = store.RangeCandles(ctx, "BTCUSDT", "1m", 60_000, 60_000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 101.0, got[0].Close, 1e-9)
}

func TestStoreUpsert(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.InsertCandles(ctx, "ETHUSDT", "1h", []Candle{validCandle(0, 100)})
	require.NoError(t, err)

	// 同一 open_time 重复写入覆盖旧值
	updated := validCandle(0, 100)
	updated.Close = 100.5
	updated.Volume = 42
	_, err = store.InsertCandles(ctx, "ETHUSDT", "1h", []Candle{updated})
	require.NoError(t, err)

	count, err := store.CountCandles(ctx, "ETHUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.RangeCandles(ctx, "ETHUSDT", "1h", 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 100.5, got[0].Close, 1e-9)
	assert.InDelta(t, 42.0, got[0].Volume, 1e-9)
}

func TestStoreSourceFor(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.SourceFor(ctx, "BTCUSDT", "1m", 0, 100)
	assert.Error(t, err, "空区间应报错而不是返回空数据源")

	_, err = store.InsertCandles(ctx, "BTCUSDT", "1m", []Candle{validCandle(0, 100), validCandle(1, 101)})
	require.NoError(t, err)

	src, err := store.SourceFor(ctx, "BTCUSDT", "1m", 0, 200_000)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Count())
	assert.NoError(t, src.Validate())
}

func TestStoreRejectsBadArgs(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.InsertCandles(context.Background(), "", "1m", []Candle{validCandle(0, 100)})
	assert.Error(t, err)
	_, err = store.CountCandles(context.Background(), "BTCUSDT", "")
	assert.Error(t, err)
}

func TestStorePathLayout(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(root, "BTCUSDT", "1m.db"), store.dbPath("btcusdt", "1M"))
}
