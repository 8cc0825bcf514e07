// Package logger 是 slog 之上的薄封装：全局级别、可重定向输出、
// printf 风格与结构化键值两套入口，以及块状摘要输出。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	mu       sync.RWMutex
	base     *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	base = newLogger(os.Stdout)
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar})
	return slog.New(handler)
}

// SetOutput 重定向日志输出（例如同时写入文件）。
func SetOutput(w io.Writer) {
	mu.Lock()
	base = newLogger(w)
	mu.Unlock()
}

// SetLevel 支持 debug/info/warn/error，未识别时退回 info。
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "info", "":
		levelVar.Set(slog.LevelInfo)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

func active() *slog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = newLogger(os.Stdout)
	}
	return base
}

// printf 风格入口，适合一次性的人类可读消息。

func Debugf(format string, v ...any) {
	active().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	active().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	active().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	active().Error(fmt.Sprintf(format, v...))
}

// 结构化入口：kv 为交替的 key/value 对，交给 slog 原样输出，
// 任务 ID、symbol 这类可检索字段走这里。

func Infow(msg string, kv ...any) {
	active().Info(msg, kv...)
}

func Warnw(msg string, kv ...any) {
	active().Warn(msg, kv...)
}

func Errorw(msg string, kv ...any) {
	active().Error(msg, kv...)
}

// InfoBlock 打印一段带标题的多行摘要，每行独立成一条 info 日志，
// 避免多行文本在 TextHandler 里被转义成一团。
func InfoBlock(title, block string) {
	block = strings.TrimRight(block, "\n")
	if strings.TrimSpace(block) == "" {
		return
	}
	if title != "" {
		Infof("===== %s =====", title)
	}
	for _, line := range strings.Split(block, "\n") {
		Infof("%s", line)
	}
}
