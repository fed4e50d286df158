// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色/输出目标配置
// - 提供 pretty 输出（[信息]/[INFO] 等标签）
// - 通过 Reporter 接口注入到 fetch/polar/export，业务层不直接依赖全局日志
package logx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options 为日志初始化参数，字段与 settings.yaml 的 LOG_* 对应。
type Options struct {
	Level  string
	Format string // text|json|pretty
	Locale string // zh-CN|en
	Color  string // auto|always|never
	Writer io.Writer
}

// Init 初始化全局日志器并返回它。Writer 为空时写到 stderr，
// 这样 stdout 只保留导出进度行。
func Init(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	lv := parseSlogLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(w, hopts)
	case "pretty", "":
		handler = NewPrettyHandler(w, lv, opts.Locale, opts.Color)
	default:
		handler = slog.NewTextHandler(w, hopts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// silent 高于所有内置级别，用于关闭输出。
const silent slog.Level = 100

func parseSlogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		return silent
	default:
		return slog.LevelInfo
	}
}

func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// Reporter 是各组件接收的日志观察者。
type Reporter interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

type stdReporter struct{}

func (stdReporter) Debugf(format string, v ...any) { Debugf(format, v...) }
func (stdReporter) Infof(format string, v ...any)  { Infof(format, v...) }
func (stdReporter) Warnf(format string, v ...any)  { Warnf(format, v...) }
func (stdReporter) Errorf(format string, v ...any) { Errorf(format, v...) }

// Std 返回转发到全局 slog 的 Reporter。
func Std() Reporter { return stdReporter{} }

type discard struct{}

func (discard) Debugf(string, ...any) {}
func (discard) Infof(string, ...any)  {}
func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}

// Discard 返回丢弃一切输出的 Reporter。
func Discard() Reporter { return discard{} }

// OrStd 在 r 为 nil 时回退到 Std。
func OrStd(r Reporter) Reporter {
	if r == nil {
		return Std()
	}
	return r
}
