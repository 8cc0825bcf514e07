package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// 止损/止盈阈值比较走 decimal，避免 float 累计误差在临界点上抖动。

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
