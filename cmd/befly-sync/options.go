package main

import (
	"time"

	"github.com/chenbimo/befly-sub001/cfg"
	"github.com/chenbimo/befly-sub001/log/logger"
	"github.com/chenbimo/befly-sub001/rdb/database"
	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/lock"
	"github.com/chenbimo/befly-sub001/rdb/reconcile"
	"github.com/pkg/errors"
)

// Options 配置文件结构
type Options struct {
	Reconcile reconcile.Options    `cfg:"reconcile"`
	Database  database.Options     `cfg:"database"`
	Dialect   dialect.MySQLOptions `cfg:"dialect"`
	Lock      LockOptions          `cfg:"lock"`
	Logger    logger.SLogOptions   `cfg:"logger"`
	Metrics   MetricsOptions       `cfg:"metrics"`
	Watch     WatchOptions         `cfg:"watch"`
}

type LockOptions struct {
	// 锁类型：none, redis
	Type  string                   `cfg:"type" def:"none" validate:"oneof=none redis"`
	Redis *lock.RedisLockerOptions `cfg:"redis" validate:"required_if=Type redis"`
}

type MetricsOptions struct {
	// 每次同步后把指标写入该文件，供 node_exporter textfile collector 采集
	Textfile string `cfg:"textfile"`
}

type WatchOptions struct {
	Debounce time.Duration `cfg:"debounce" def:"500ms"`
}

func loadOptions(path string) (*Options, error) {
	options := &Options{}
	if err := cfg.Load(path, options); err != nil {
		return nil, errors.WithMessage(err, "load config failed")
	}
	return options, nil
}
