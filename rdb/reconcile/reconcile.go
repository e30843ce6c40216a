// Package reconcile 将线上库结构同步到表声明
//
// 一次同步的流程：读取并校验全部声明 -> 连接 -> 加锁 -> 检查版本 -> 逐表
// (读取线上结构 -> 列差异 -> 执行 -> 索引差异 -> 执行) -> 汇总 -> 释放锁 -> 关闭连接。
// 校验或版本检查失败时不会执行任何 DDL；任何一条 DDL 失败都会终止整个同步。
package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/chenbimo/befly-sub001/log"
	"github.com/chenbimo/befly-sub001/log/logger"
	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/diff"
	"github.com/chenbimo/befly-sub001/rdb/executor"
	"github.com/chenbimo/befly-sub001/rdb/loader"
	"github.com/chenbimo/befly-sub001/rdb/lock"
	"github.com/chenbimo/befly-sub001/rdb/schema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// Session 一次同步持有的数据库会话
type Session interface {
	ServerVersion(ctx context.Context) (string, error)
	Columns(ctx context.Context, table string) ([]schema.LiveColumn, error)
	Indexes(ctx context.Context, table string) (schema.LiveIndexes, error)
	Exec(ctx context.Context, sql string) error
	Close() error
}

type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

type ConnectorFunc func(ctx context.Context) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Session, error) {
	return f(ctx)
}

type Options struct {
	// 声明目录，核心表在前，项目表在后
	Sources []loader.Source `cfg:"sources" validate:"required,min=1,dive"`
	// 分布式锁的 key
	LockKey string `cfg:"lockKey" def:"befly:schema-sync"`

	EnableMetrics bool `cfg:"enableMetrics" def:"true"`
	EnableTracing bool `cfg:"enableTracing" def:"false"`
	// 指标名前缀
	Name string `cfg:"name" def:"befly_schema_sync"`
}

// Step 一个同步动作及其语句
type Step struct {
	Table     string
	Action    schema.Action
	Statement dialect.Statement
	// Executed 实际执行成功的语句，可能是降级语句，Plan 时为空
	Executed string
}

// Stats 同步结果，Plan 时为预计结果
type Stats struct {
	Processed int // 处理的表数
	Created   int // 新建的表数
	Modified  int // 有变更的表数

	ColumnsAdded    int
	ColumnsModified int
	IndexesCreated  int
	IndexesDropped  int

	Steps []Step
}

type Reconciler struct {
	sources   []loader.Source
	lockKey   string
	dialect   dialect.Dialect
	connector Connector
	locker    lock.Locker
	logger    logger.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// NewReconcilerWithOptions locker 为 nil 时不加锁
func NewReconcilerWithOptions(options *Options, d dialect.Dialect, connector Connector, locker lock.Locker, l logger.Logger) (*Reconciler, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if d == nil {
		return nil, errors.New("dialect is required")
	}
	if connector == nil {
		return nil, errors.New("connector is required")
	}
	if locker == nil {
		locker = lock.NopLocker{}
	}

	r := &Reconciler{
		sources:   options.Sources,
		lockKey:   options.LockKey,
		dialect:   d,
		connector: connector,
		locker:    locker,
		logger:    log.Or(l).WithGroup("reconcile"),
	}
	if r.lockKey == "" {
		r.lockKey = "befly:schema-sync"
	}

	name := options.Name
	if name == "" {
		name = "befly_schema_sync"
	}
	if options.EnableMetrics {
		r.metrics = NewMetrics(name)
	}
	if options.EnableTracing {
		r.tracer = otel.Tracer(name)
	}

	return r, nil
}

// Metrics 未开启指标时返回 nil
func (r *Reconciler) Metrics() *Metrics {
	return r.metrics
}

// Validate 读取并校验全部声明，不连接数据库
func (r *Reconciler) Validate() ([]schema.Table, error) {
	tables, err := loader.Load(r.sources)
	err = multierr.Append(err, loader.Check(tables, r.dialect))
	if err != nil {
		return nil, errors.WithMessage(err, "invalid declarations")
	}
	return tables, nil
}

// Run 执行同步
func (r *Reconciler) Run(ctx context.Context) (Stats, error) {
	return r.run(ctx, false)
}

// Plan 只计算并记录将要执行的语句，不执行 DDL，也不加锁
func (r *Reconciler) Plan(ctx context.Context) (Stats, error) {
	return r.run(ctx, true)
}

func (r *Reconciler) run(ctx context.Context, dryRun bool) (stats Stats, err error) {
	start := time.Now()
	ctx, span := r.startSpan(ctx, "reconcile.run", attribute.Bool("dry_run", dryRun))
	defer func() {
		r.endSpan(span, err)
		r.observeRun(start, err, dryRun)
	}()

	tables, err := r.Validate()
	if err != nil {
		return Stats{}, err
	}
	if r.metrics != nil {
		r.metrics.declarations.Set(float64(len(tables)))
	}
	if len(tables) == 0 {
		r.logger.WarnContext(ctx, "no table declarations found", "sources", len(r.sources))
	}

	session, err := r.connector.Connect(ctx)
	if err != nil {
		return Stats{}, errors.WithMessage(err, "connect failed")
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.WarnContext(ctx, "close session failed", "error", cerr)
		}
	}()

	if !dryRun {
		release, err := r.locker.Acquire(ctx, r.lockKey)
		if err != nil {
			return Stats{}, errors.WithMessage(err, "acquire lock failed")
		}
		defer release()
	}

	version, err := session.ServerVersion(ctx)
	if err != nil {
		return Stats{}, errors.WithMessage(err, "query server version failed")
	}
	if err := r.dialect.CheckVersion(version); err != nil {
		return Stats{}, err
	}
	r.logger.InfoContext(ctx, "server version accepted", "dialect", r.dialect.Name(), "version", version)

	exec := executor.New(executor.ExecerFunc(session.Exec), r.logger)
	for i := range tables {
		if err := r.syncTable(ctx, session, exec, &tables[i], &stats, dryRun); err != nil {
			return stats, err
		}
	}

	r.logger.InfoContext(ctx, "schema sync finished",
		"dryRun", dryRun,
		"processed", stats.Processed,
		"created", stats.Created,
		"modified", stats.Modified,
		"columnsAdded", stats.ColumnsAdded,
		"columnsModified", stats.ColumnsModified,
		"indexesCreated", stats.IndexesCreated,
		"indexesDropped", stats.IndexesDropped,
		"elapsed", time.Since(start),
	)
	return stats, nil
}

func (r *Reconciler) syncTable(ctx context.Context, session Session, exec *executor.Executor, t *schema.Table, stats *Stats, dryRun bool) (err error) {
	ctx, span := r.startSpan(ctx, "reconcile.table", attribute.String("table", t.Name))
	defer func() { r.endSpan(span, err) }()

	live, err := session.Columns(ctx, t.Name)
	if err != nil {
		return &TableError{Table: t.Name, Action: "introspect columns", Err: err}
	}

	if len(live) == 0 {
		actions, err := diff.Compute(t, live, nil, r.dialect)
		if err != nil {
			return &TableError{Table: t.Name, Action: "diff", Err: err}
		}
		if err := r.apply(ctx, exec, actions, stats, dryRun); err != nil {
			return err
		}
		stats.Processed++
		stats.Created++
		r.observeTable("created", dryRun)
		return nil
	}

	columnActions, err := diff.Columns(t, live, r.dialect)
	if err != nil {
		return &TableError{Table: t.Name, Action: "diff columns", Err: err}
	}

	var drops []schema.Action
	if hasModify(columnActions) {
		indexes, err := session.Indexes(ctx, t.Name)
		if err != nil {
			return &TableError{Table: t.Name, Action: "introspect indexes", Err: err}
		}
		if drops, err = diff.BlockingIndexes(columnActions, indexes, r.dialect); err != nil {
			return &TableError{Table: t.Name, Action: "diff indexes", Err: err}
		}
		if err := r.apply(ctx, exec, drops, stats, dryRun); err != nil {
			return err
		}
	}

	if err := r.apply(ctx, exec, columnActions, stats, dryRun); err != nil {
		return err
	}

	indexes, err := session.Indexes(ctx, t.Name)
	if err != nil {
		return &TableError{Table: t.Name, Action: "introspect indexes", Err: err}
	}
	// Plan 时已计划删除的索引仍在线上
	indexActions := diff.Indexes(t, diff.Without(indexes, drops))
	if err := r.apply(ctx, exec, indexActions, stats, dryRun); err != nil {
		return err
	}

	stats.Processed++
	if len(drops)+len(columnActions)+len(indexActions) > 0 {
		stats.Modified++
		r.observeTable("modified", dryRun)
	} else {
		r.observeTable("unchanged", dryRun)
		r.logger.DebugContext(ctx, "table up to date", "table", t.Name)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, exec *executor.Executor, actions []schema.Action, stats *Stats, dryRun bool) error {
	for _, action := range actions {
		stmt, err := r.dialect.Generate(action)
		if err != nil {
			return &TableError{Table: action.TableName(), Action: string(action.Kind()), Err: err}
		}

		step := Step{Table: action.TableName(), Action: action, Statement: stmt}
		l := r.logger.With("table", action.TableName(), "action", string(action.Kind()), "target", action.Target())
		if dryRun {
			l.InfoContext(ctx, "planned", "sql", stmt.SQL)
		} else {
			start := time.Now()
			executed, err := exec.Execute(ctx, stmt)
			r.observeAction(action.Kind(), time.Since(start), err)
			if err != nil {
				var ddlErr *executor.DDLExecutionError
				statement := stmt.SQL
				if errors.As(err, &ddlErr) {
					statement = ddlErr.Statement
				}
				return &TableError{Table: action.TableName(), Action: string(action.Kind()), Statement: statement, Err: err}
			}
			step.Executed = executed
			l.InfoContext(ctx, describe(action), "sql", executed)
		}

		stats.Steps = append(stats.Steps, step)
		count(action, stats)
	}
	return nil
}

func hasModify(actions []schema.Action) bool {
	for _, action := range actions {
		if _, ok := action.(schema.ModifyColumn); ok {
			return true
		}
	}
	return false
}

func describe(action schema.Action) string {
	switch a := action.(type) {
	case schema.CreateTable:
		return "table created"
	case schema.AddColumn:
		return "column added"
	case schema.ModifyColumn:
		kinds := make([]string, len(a.Changes))
		for i, k := range a.Changes {
			kinds[i] = string(k)
		}
		return "column modified (" + strings.Join(kinds, ",") + ")"
	case schema.CreateIndex:
		return "index created"
	case schema.DropIndex:
		return "index dropped"
	default:
		return string(action.Kind())
	}
}

func count(action schema.Action, stats *Stats) {
	switch action.(type) {
	case schema.AddColumn:
		stats.ColumnsAdded++
	case schema.ModifyColumn:
		stats.ColumnsModified++
	case schema.CreateIndex:
		stats.IndexesCreated++
	case schema.DropIndex:
		stats.IndexesDropped++
	}
}

func (r *Reconciler) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if r.tracer == nil {
		return ctx, nil
	}
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *Reconciler) endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (r *Reconciler) observeAction(kind schema.ActionKind, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.actions.WithLabelValues(string(kind), status).Inc()
	r.metrics.ddlDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (r *Reconciler) observeTable(result string, dryRun bool) {
	if r.metrics == nil || dryRun {
		return
	}
	r.metrics.tables.WithLabelValues(result).Inc()
}

func (r *Reconciler) observeRun(start time.Time, err error, dryRun bool) {
	if r.metrics == nil || dryRun {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.runs.WithLabelValues(status).Inc()
	r.metrics.runDuration.Set(time.Since(start).Seconds())
	if err == nil {
		r.metrics.lastSuccess.SetToCurrentTime()
	}
}
