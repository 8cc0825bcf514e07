package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	// 四种时间戳写法混用：毫秒、秒、RFC3339、日期
	path := writeCSV(t, `timestamp,open,high,low,close,volume
1704067200000,100,105,99,104,1000
1704153600,104,106,103,105,1100
2024-01-03T00:00:00Z,105,107,104,106,1200
2024-01-04,106,108,105,107,1300
`)
	src, err := LoadCSV(path, "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 4, src.Count())
	assert.NoError(t, src.Validate())

	first, err := src.At(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200000), first.OpenTime)
	assert.InDelta(t, 104.0, first.Close, 1e-9)

	second, err := src.At(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1704153600000), second.OpenTime, "秒级时间戳应换算为毫秒")

	third, err := src.At(2)
	require.NoError(t, err)
	assert.Equal(t, int64(1704240000000), third.OpenTime)

	fourth, err := src.At(3)
	require.NoError(t, err)
	assert.Equal(t, int64(1704326400000), fourth.OpenTime)
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), "BTCUSDT")
	assert.Error(t, err)

	// 只有表头
	path := writeCSV(t, "timestamp,open,high,low,close,volume\n")
	_, err = LoadCSV(path, "BTCUSDT")
	assert.Error(t, err)

	// 字段不足
	path = writeCSV(t, "timestamp,open,high,low,close,volume\n1704067200000,100,105\n")
	_, err = LoadCSV(path, "BTCUSDT")
	assert.Error(t, err)

	// 非数字价格
	path = writeCSV(t, "timestamp,open,high,low,close,volume\n1704067200000,abc,105,99,104,1000\n")
	_, err = LoadCSV(path, "BTCUSDT")
	assert.Error(t, err)

	// 无法识别的时间格式
	path = writeCSV(t, "timestamp,open,high,low,close,volume\n01/04/2024,100,105,99,104,1000\n")
	_, err = LoadCSV(path, "BTCUSDT")
	assert.Error(t, err)
}
