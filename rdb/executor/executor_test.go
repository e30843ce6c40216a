package executor

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/chenbimo/befly-sub001/log/logger"
	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recorder struct {
	executed []string
	failures map[string]error
}

func (r *recorder) Exec(ctx context.Context, sql string) error {
	r.executed = append(r.executed, sql)
	return r.failures[sql]
}

func newLogger(buf *bytes.Buffer) logger.Logger {
	l, err := logger.NewSLogWithWriter(buf, &logger.SLogOptions{Level: "debug", Format: "text"})
	if err != nil {
		panic(err)
	}
	return l
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	stmt := dialect.Statement{
		SQL:       "ALTER TABLE `user` ADD COLUMN `x` BIGINT, ALGORITHM=INSTANT",
		Fallbacks: []string{"ALTER TABLE `user` ADD COLUMN `x` BIGINT, ALGORITHM=INPLACE, LOCK=NONE", "ALTER TABLE `user` ADD COLUMN `x` BIGINT"},
	}

	Convey("测试降级链", t, func() {
		var buf bytes.Buffer

		Convey("主语句成功时只执行一次", func() {
			r := &recorder{}
			executed, err := New(r, newLogger(&buf)).Execute(ctx, stmt)
			So(err, ShouldBeNil)
			So(executed, ShouldEqual, stmt.SQL)
			So(r.executed, ShouldResemble, []string{stmt.SQL})
			So(buf.String(), ShouldNotContainSubstring, "WARN")
		})

		Convey("前两次失败时按顺序尝试到最后一条", func() {
			r := &recorder{failures: map[string]error{
				stmt.SQL:          errors.New("instant unsupported"),
				stmt.Fallbacks[0]: errors.New("inplace unsupported"),
			}}
			executed, err := New(r, newLogger(&buf)).Execute(ctx, stmt)
			So(err, ShouldBeNil)
			So(executed, ShouldEqual, stmt.Fallbacks[1])
			So(r.executed, ShouldResemble, stmt.Attempts())
			So(strings.Count(buf.String(), "level=WARN"), ShouldEqual, 2)
		})

		Convey("全部失败时返回最后一条语句和最后一次错误", func() {
			last := errors.New("plain failed")
			r := &recorder{failures: map[string]error{
				stmt.SQL:          errors.New("instant unsupported"),
				stmt.Fallbacks[0]: errors.New("inplace unsupported"),
				stmt.Fallbacks[1]: last,
			}}
			executed, err := New(r, newLogger(&buf)).Execute(ctx, stmt)
			So(executed, ShouldBeEmpty)
			var ddlErr *DDLExecutionError
			So(errors.As(err, &ddlErr), ShouldBeTrue)
			So(ddlErr.Statement, ShouldEqual, stmt.Fallbacks[1])
			So(ddlErr.Attempts, ShouldEqual, 3)
			So(ddlErr.Err, ShouldEqual, last)
			So(strings.Count(buf.String(), "level=WARN"), ShouldEqual, 3)
		})

		Convey("没有降级语句时失败一次即返回", func() {
			single := dialect.Statement{SQL: "ALTER TABLE `user` DROP INDEX `idx_x`"}
			r := &recorder{failures: map[string]error{single.SQL: errors.New("no such index")}}
			_, err := New(r, newLogger(&buf)).Execute(ctx, single)
			var ddlErr *DDLExecutionError
			So(errors.As(err, &ddlErr), ShouldBeTrue)
			So(ddlErr.Attempts, ShouldEqual, 1)
			So(r.executed, ShouldHaveLength, 1)
		})

		Convey("context 取消后不再执行", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			r := &recorder{}
			_, err := New(r, newLogger(&buf)).Execute(cancelled, stmt)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(r.executed, ShouldBeEmpty)
		})
	})
}

func TestExecuteWithGorm(t *testing.T) {
	Convey("SQLite 不支持 ALGORITHM 子句，降级到普通 ALTER", t, func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
		So(err, ShouldBeNil)
		sqlDB, err := db.DB()
		So(err, ShouldBeNil)
		sqlDB.SetMaxOpenConns(1)
		defer sqlDB.Close()

		So(db.Exec("CREATE TABLE user (id INTEGER PRIMARY KEY)").Error, ShouldBeNil)

		var buf bytes.Buffer
		stmt := dialect.Statement{
			SQL:       "ALTER TABLE user ADD COLUMN age BIGINT NOT NULL DEFAULT 0, ALGORITHM=INSTANT",
			Fallbacks: []string{"ALTER TABLE user ADD COLUMN age BIGINT NOT NULL DEFAULT 0, ALGORITHM=INPLACE, LOCK=NONE", "ALTER TABLE user ADD COLUMN age BIGINT NOT NULL DEFAULT 0"},
		}
		executed, err := New(GormExecer(db), newLogger(&buf)).Execute(context.Background(), stmt)
		So(err, ShouldBeNil)
		So(executed, ShouldEqual, stmt.Fallbacks[1])

		var count int64
		So(db.Raw("SELECT count(*) FROM pragma_table_info('user') WHERE name = 'age'").Scan(&count).Error, ShouldBeNil)
		So(count, ShouldEqual, 1)
		So(strings.Count(buf.String(), "level=WARN"), ShouldEqual, 2)
	})
}
