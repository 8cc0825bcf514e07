package backtest

import "errors"

var (
	// ErrInvalidConfig 表示回测配置越界，Run 开始前即被拒绝。
	ErrInvalidConfig = errors.New("回测配置无效")

	// 协作方缺失属于致命错误，循环不会启动。
	ErrNilStrategy    = errors.New("strategy 不能为空")
	ErrNilSource      = errors.New("数据源不能为空")
	ErrNilRiskManager = errors.New("risk manager 不能为空")
)
