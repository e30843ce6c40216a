// Package database 数据库会话
package database

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/chenbimo/befly-sub001/log"
	"github.com/chenbimo/befly-sub001/log/logger"
	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/introspect"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Options struct {
	// 数据库驱动，配置文件只允许 mysql。
	// sqlite 仅供进程内测试使用，调用方需要自行提供对应的元数据查询
	Driver string `cfg:"driver" def:"mysql" validate:"oneof=mysql"`
	// 非空时直接使用，忽略下面的连接参数
	DSN      string        `cfg:"dsn"`
	Host     string        `cfg:"host" def:"localhost"`
	Port     int           `cfg:"port" def:"3306"`
	Database string        `cfg:"database"`
	Username string        `cfg:"username"`
	Password string        `cfg:"password"`
	Charset  string        `cfg:"charset" def:"utf8mb4"`
	Timeout  time.Duration `cfg:"timeout" def:"5s"`
	// 是否在 debug 级别输出执行的 SQL
	LogSQL bool `cfg:"logSQL"`
}

// FormatDSN 根据连接参数拼接 DSN
func (o *Options) FormatDSN() string {
	if o.DSN != "" {
		return o.DSN
	}
	if o.Driver == "sqlite" {
		return o.Database
	}

	c := mysqldriver.NewConfig()
	c.User = o.Username
	c.Passwd = o.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	c.DBName = o.Database
	c.Timeout = o.Timeout
	if o.Charset != "" {
		c.Params = map[string]string{"charset": o.Charset}
	}
	return c.FormatDSN()
}

// Session 一次同步使用的单连接会话
type Session struct {
	*introspect.Introspector

	db *gorm.DB
}

// Open 打开数据库并校验连通性，连接池上限为 1，同步过程严格串行
func Open(ctx context.Context, options *Options, queries dialect.MetadataQueries, l logger.Logger) (*Session, error) {
	if options == nil {
		return nil, errors.New("database options is required")
	}

	var dialector gorm.Dialector
	switch options.Driver {
	case "mysql", "":
		dialector = mysql.Open(options.FormatDSN())
	case "sqlite":
		dialector = sqlite.Open(options.FormatDSN())
	default:
		return nil, errors.Errorf("unsupported database driver: %s", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(log.Or(l), options.LogSQL),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &Session{
		Introspector: introspect.New(db, queries),
		db:           db,
	}, nil
}

func (s *Session) DB() *gorm.DB {
	return s.db
}

// Exec 执行一条不带参数的语句
func (s *Session) Exec(ctx context.Context, sql string) error {
	return s.db.WithContext(ctx).Exec(sql).Error
}

func (s *Session) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB")
	}
	return sqlDB.Close()
}
