package database

import (
	"context"
	"fmt"
	"time"

	"github.com/chenbimo/befly-sub001/log/logger"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger 把 gorm 的日志转发到 logger.Logger
type gormLogger struct {
	logger logger.Logger
	level  gormlogger.LogLevel
	logSQL bool
}

func newGormLogger(l logger.Logger, logSQL bool) gormlogger.Interface {
	return &gormLogger{logger: l.WithGroup("gorm"), level: gormlogger.Warn, logSQL: logSQL}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.level = level
	return &c
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Trace 语句失败由调用方记录，这里只在开启 LogSQL 时输出 SQL
func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if !g.logSQL || g.level <= gormlogger.Silent {
		return
	}
	sql, rows := fc()
	g.logger.DebugContext(ctx, "sql", "sql", sql, "rows", rows, "elapsed", time.Since(begin), "err", err)
}
