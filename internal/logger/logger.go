package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 项目统一日志接口，键值对形式追加字段
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志配置
type Options struct {
	Level   string
	Writers []string // console / file
	File    string
}

// ZeroLogger 基于 zerolog 的实现
type ZeroLogger struct {
	zl zerolog.Logger
}

// New 根据配置创建日志实例
func New(opts Options) *ZeroLogger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	for _, w := range opts.Writers {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		case "file":
			file := opts.File
			if file == "" {
				file = "logs/formease.log"
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    20,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   true,
			})
		}
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	return &ZeroLogger{zl: zerolog.New(out).Level(level).With().Timestamp().Logger()}
}

// NewWithWriter 输出到指定 writer，主要用于测试
func NewWithWriter(w io.Writer, level zerolog.Level) *ZeroLogger {
	return &ZeroLogger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewNop 丢弃全部日志
func NewNop() Logger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

func (l *ZeroLogger) Debug(msg string, kv ...any) { l.emit(l.zl.Debug(), msg, kv) }

func (l *ZeroLogger) Info(msg string, kv ...any) { l.emit(l.zl.Info(), msg, kv) }

func (l *ZeroLogger) Warn(msg string, kv ...any) { l.emit(l.zl.Warn(), msg, kv) }

func (l *ZeroLogger) Error(msg string, kv ...any) { l.emit(l.zl.Error(), msg, kv) }

// Err 记录带错误对象的错误日志
func (l *ZeroLogger) Err(err error, msg string, kv ...any) {
	l.emit(l.zl.Error().Err(err), msg, kv)
}

// With 返回附加固定字段的子日志
func (l *ZeroLogger) With(kv ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i < len(kv); i += 2 {
		key, val := pair(kv, i)
		ctx = ctx.Interface(key, val)
	}
	return &ZeroLogger{zl: ctx.Logger()}
}

func (l *ZeroLogger) emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key, val := pair(kv, i)
		switch v := val.(type) {
		case error:
			ev = ev.AnErr(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func pair(kv []any, i int) (string, any) {
	key, ok := kv[i].(string)
	if !ok {
		key = fmt.Sprint(kv[i])
	}
	if i+1 >= len(kv) {
		return key, "(MISSING)"
	}
	return key, kv[i+1]
}
