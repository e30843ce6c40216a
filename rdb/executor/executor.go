// Package executor 带降级链的 DDL 执行器
package executor

import (
	"context"
	"fmt"

	"github.com/chenbimo/befly-sub001/log"
	"github.com/chenbimo/befly-sub001/log/logger"
	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"gorm.io/gorm"
)

// Execer 执行单条语句
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// ExecerFunc 函数形式的 Execer
type ExecerFunc func(ctx context.Context, sql string) error

func (f ExecerFunc) Exec(ctx context.Context, sql string) error {
	return f(ctx, sql)
}

// GormExecer 用 gorm 执行语句
func GormExecer(db *gorm.DB) Execer {
	return ExecerFunc(func(ctx context.Context, sql string) error {
		return db.WithContext(ctx).Exec(sql).Error
	})
}

// DDLExecutionError 所有候选语句都执行失败
type DDLExecutionError struct {
	Statement string // 最后一次尝试的语句
	Attempts  int
	Err       error // 最后一次的错误
}

func (e *DDLExecutionError) Error() string {
	return fmt.Sprintf("ddl failed after %d attempt(s): %s: %v", e.Attempts, e.Statement, e.Err)
}

func (e *DDLExecutionError) Unwrap() error {
	return e.Err
}

type Executor struct {
	execer Execer
	logger logger.Logger
}

func New(execer Execer, l logger.Logger) *Executor {
	return &Executor{execer: execer, logger: log.Or(l)}
}

// Execute 依次尝试主语句与降级语句，遇到第一次成功即停止，不做退避。
// 成功时返回实际执行成功的那条语句
func (e *Executor) Execute(ctx context.Context, stmt dialect.Statement) (string, error) {
	attempts := stmt.Attempts()

	var lastErr error
	for i, sql := range attempts {
		if err := ctx.Err(); err != nil {
			return "", &DDLExecutionError{Statement: sql, Attempts: i, Err: err}
		}
		err := e.execer.Exec(ctx, sql)
		if err == nil {
			if i > 0 {
				e.logger.InfoContext(ctx, "ddl succeeded on fallback", "attempt", i+1, "sql", sql)
			}
			return sql, nil
		}
		lastErr = err
		e.logger.WarnContext(ctx, "ddl attempt failed", "attempt", i+1, "of", len(attempts), "sql", sql, "err", err)
	}

	return "", &DDLExecutionError{Statement: attempts[len(attempts)-1], Attempts: len(attempts), Err: lastErr}
}
