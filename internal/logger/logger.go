package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options 控制全局日志输出。
type Options struct {
	Level  string // debug/info/warn/error
	Format string // console/json
	Output io.Writer
}

var (
	mu  sync.RWMutex
	log = newLogger(Options{})
)

func newLogger(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime, NoColor: true}
	}
	return zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
}

// Setup 替换全局 logger，可在启动期重复调用。
func Setup(opts Options) {
	l := newLogger(opts)
	mu.Lock()
	log = l
	mu.Unlock()
}

// ParseLevel 解析日志级别，未知值回落到 info。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func emit(level zerolog.Level, format string, args ...interface{}) {
	mu.RLock()
	l := log
	mu.RUnlock()
	l.WithLevel(level).Msg(fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) { emit(zerolog.DebugLevel, format, args...) }
func Infof(format string, args ...interface{})  { emit(zerolog.InfoLevel, format, args...) }
func Warnf(format string, args ...interface{})  { emit(zerolog.WarnLevel, format, args...) }
func Errorf(format string, args ...interface{}) { emit(zerolog.ErrorLevel, format, args...) }
