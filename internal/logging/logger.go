// Package logging 构建写往 stderr 的 slog 日志器（console / json 两种格式）。
// stdout 专门留给报告输出，日志永远不写 stdout。
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options 描述日志器的构建参数。
type Options struct {
	Level  string    // debug|info|warn|error，默认 info
	Format string    // console|json，默认 console
	Writer io.Writer // 默认 os.Stderr
}

// New 按 Options 构建日志器；未知 format 返回错误。
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(ParseLevel(opts.Level))

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	var handler slog.Handler
	switch format {
	case "", "console":
		handler = newConsoleHandler(w, levelVar)
	case "json":
		handler = newJSONHandler(w, levelVar)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return slog.New(handler), nil
}

// Nop 返回丢弃一切输出的日志器（库代码在调用方未提供日志器时使用）。
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrNop 在 l 为 nil 时返回 Nop()。
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// ParseLevel 解析日志级别；无法识别的值按 info 处理。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel 判断 level 是否为可识别的级别名（空串视为合法，表示默认）。
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// ValidFormat 判断 format 是否受支持（空串视为合法，表示默认）。
func ValidFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console", "json":
		return true
	}
	return false
}
