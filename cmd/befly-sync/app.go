package main

import (
	"context"

	"github.com/chenbimo/befly-sub001/log/logger"
	"github.com/chenbimo/befly-sub001/rdb/database"
	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/lock"
	"github.com/chenbimo/befly-sub001/rdb/reconcile"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// app 一次命令执行用到的全部组件
type app struct {
	options    *Options
	logger     logger.Logger
	reconciler *reconcile.Reconciler
	closers    []func() error
}

func newApp(g *Globals) (*app, error) {
	options, err := loadOptions(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		options.Logger.Level = g.LogLevel
	}

	a := &app{options: options}

	slog, err := logger.NewSLogWithOptions(&options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger failed")
	}
	a.closers = append(a.closers, slog.Close)
	a.logger = slog.With("runId", uuid.Must(uuid.NewV7()).String())

	var locker lock.Locker = lock.NopLocker{}
	if options.Lock.Type == "redis" {
		redisLocker, err := lock.NewRedisLockerWithOptions(options.Lock.Redis)
		if err != nil {
			_ = a.Close()
			return nil, errors.WithMessage(err, "create redis locker failed")
		}
		a.closers = append(a.closers, redisLocker.Close)
		locker = redisLocker
	}

	d := dialect.NewMySQLWithOptions(&options.Dialect)
	connector := reconcile.ConnectorFunc(func(ctx context.Context) (reconcile.Session, error) {
		session, err := database.Open(ctx, &options.Database, d.Queries(), a.logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	})

	a.reconciler, err = reconcile.NewReconcilerWithOptions(&options.Reconcile, d, connector, locker, a.logger)
	if err != nil {
		_ = a.Close()
		return nil, errors.WithMessage(err, "create reconciler failed")
	}

	return a, nil
}

// writeMetrics 写入指标文件失败只记录告警，不影响同步结果
func (a *app) writeMetrics() {
	if a.options.Metrics.Textfile == "" || a.reconciler.Metrics() == nil {
		return
	}
	if err := prometheus.WriteToTextfile(a.options.Metrics.Textfile, a.reconciler.Metrics().Gatherer()); err != nil {
		a.logger.Warn("write metrics textfile failed", "file", a.options.Metrics.Textfile, "error", err)
	}
}

func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}
