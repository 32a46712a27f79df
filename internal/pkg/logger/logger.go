package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 创建默认的 slog 日志记录器（文本格式，输出到 stdout）。
//
// 参数:
//
//	level: 日志级别字符串: debug / info / warn / error（无法识别时退回 info）
func NewDefault(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(level string) slog.Level {
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
