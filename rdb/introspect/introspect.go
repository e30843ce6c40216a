// Package introspect 读取线上表结构
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/schema"
	"gorm.io/gorm"
)

// IntrospectionError 元数据查询失败
type IntrospectionError struct {
	Table string
	Query string
	Err   error
}

func (e *IntrospectionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("introspect query %q: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("introspect table %s: %v", e.Table, e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// Introspector 只读的元数据查询，每次调用都重新查询，不做缓存
type Introspector struct {
	db      *gorm.DB
	queries dialect.MetadataQueries
}

func New(db *gorm.DB, queries dialect.MetadataQueries) *Introspector {
	return &Introspector{db: db, queries: queries}
}

type columnRow struct {
	Name          string         `gorm:"column:name"`
	DataType      string         `gorm:"column:data_type"`
	MaxLength     sql.NullInt64  `gorm:"column:max_length"`
	IsNullable    string         `gorm:"column:is_nullable"`
	ColumnDefault sql.NullString `gorm:"column:column_default"`
	Comment       string         `gorm:"column:comment"`
}

type indexRow struct {
	IndexName  string `gorm:"column:index_name"`
	ColumnName string `gorm:"column:column_name"`
}

// Columns 返回表的全部列，表不存在时返回空
func (i *Introspector) Columns(ctx context.Context, table string) ([]schema.LiveColumn, error) {
	var rows []columnRow
	if err := i.db.WithContext(ctx).Raw(i.queries.Columns, table).Scan(&rows).Error; err != nil {
		return nil, &IntrospectionError{Table: table, Query: i.queries.Columns, Err: err}
	}

	columns := make([]schema.LiveColumn, 0, len(rows))
	for _, r := range rows {
		c := schema.LiveColumn{
			Name:     r.Name,
			DataType: strings.ToLower(r.DataType),
			Nullable: strings.EqualFold(r.IsNullable, "YES"),
			Comment:  r.Comment,
		}
		if r.MaxLength.Valid {
			n := r.MaxLength.Int64
			c.MaxLength = &n
		}
		if r.ColumnDefault.Valid {
			d := r.ColumnDefault.String
			c.Default = &d
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// Indexes 返回表的非主键索引，表不存在时返回空
func (i *Introspector) Indexes(ctx context.Context, table string) (schema.LiveIndexes, error) {
	var rows []indexRow
	if err := i.db.WithContext(ctx).Raw(i.queries.Indexes, table).Scan(&rows).Error; err != nil {
		return nil, &IntrospectionError{Table: table, Query: i.queries.Indexes, Err: err}
	}

	indexes := schema.LiveIndexes{}
	for _, r := range rows {
		indexes[r.IndexName] = append(indexes[r.IndexName], r.ColumnName)
	}
	return indexes, nil
}

// ServerVersion 返回服务端版本串
func (i *Introspector) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := i.db.WithContext(ctx).Raw(i.queries.Version).Scan(&version).Error; err != nil {
		return "", &IntrospectionError{Query: i.queries.Version, Err: err}
	}
	return version, nil
}
