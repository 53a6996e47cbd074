package storage

import (
	"context"
	"errors"
	"time"

	"formease/internal/ctxkeys"
	logger2 "formease/internal/logger"

	"gorm.io/gorm/logger"
)

// GormLogger 把 gorm 日志转到项目日志上
type GormLogger struct {
	logger2.Logger
	LogLevel logger.LogLevel
	SlowSQL  time.Duration
}

// NewGormLogger 默认只输出警告以上
func NewGormLogger(l logger2.Logger) *GormLogger {
	return &GormLogger{
		Logger:   l,
		LogLevel: logger.Warn,
		SlowSQL:  200 * time.Millisecond,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info(msg, append([]any{"runId", ctxkeys.RunID(ctx)}, data...)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn(msg, append([]any{"runId", ctxkeys.RunID(ctx)}, data...)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.Logger.Error(msg, append([]any{"runId", ctxkeys.RunID(ctx)}, data...)...)
	}
}

// Trace 记录 SQL，出错与慢查询分别提升级别
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"runId", ctxkeys.RunID(ctx),
		"sql", sql,
		"rows", rows,
		"elapsed", elapsed,
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		l.Logger.Err(err, "SQL执行错误", fields...)
	case l.SlowSQL > 0 && elapsed > l.SlowSQL && l.LogLevel >= logger.Warn:
		l.Logger.Warn("慢SQL查询", append(fields, "threshold", l.SlowSQL)...)
	case l.LogLevel == logger.Info:
		l.Logger.Debug("SQL执行", fields...)
	}
}
