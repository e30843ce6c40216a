// Package dialect 类型映射与 DDL 生成
//
// 方言是无状态的策略对象：抽象类型到列类型的映射、语句模板、元数据查询以及服务端版本门槛。
// 方言需要显式构造后传给同步器，可以在多个同步器之间共享。
package dialect

import (
	"fmt"

	"github.com/chenbimo/befly-sub001/rdb/field"
	"github.com/chenbimo/befly-sub001/rdb/schema"
)

// Dialect 数据库方言
type Dialect interface {
	Name() string

	// ColumnType 抽象类型到列类型的映射，纯查表
	ColumnType(rule field.Rule) (ColumnType, error)

	// Generate 将一个同步动作生成为一条语句及其降级改写
	Generate(action schema.Action) (Statement, error)

	// Queries 元数据查询
	Queries() MetadataQueries

	// CheckVersion 检查 VersionQuery 返回的版本串是否满足要求
	CheckVersion(version string) error
}

// ColumnType 列类型映射结果
type ColumnType struct {
	SQLType       string // 完整列类型，如 VARCHAR(255)
	DataType      string // 元数据中的底层类型名，如 varchar
	Length        int    // 需要比较长度时为列长度，否则为 0
	AllowsDefault bool
	AllowsIndex   bool
}

// Statement 一条 DDL 及其按顺序排列的降级改写，越靠后越保守
type Statement struct {
	SQL       string
	Fallbacks []string
}

// Attempts 按执行顺序返回所有候选语句
func (s Statement) Attempts() []string {
	attempts := make([]string, 0, 1+len(s.Fallbacks))
	attempts = append(attempts, s.SQL)
	return append(attempts, s.Fallbacks...)
}

// MetadataQueries 元数据查询，均以表名为唯一参数，作用于当前库
type MetadataQueries struct {
	// Version 返回服务端版本串
	Version string
	// Columns 列名 name、类型 data_type、长度 max_length、是否可空 is_nullable、默认值 column_default、注释 comment
	Columns string
	// Indexes 索引名 index_name、列名 column_name，按索引内顺序排列，不含主键
	Indexes string
}

// VersionIncompatibleError 服务端版本不满足要求
type VersionIncompatibleError struct {
	Version string
	Reason  string
}

func (e *VersionIncompatibleError) Error() string {
	return fmt.Sprintf("incompatible server version %q: %s", e.Version, e.Reason)
}

// UnindexableError 字段类型不支持索引
type UnindexableError struct {
	Column string
	Type   field.Type
}

func (e *UnindexableError) Error() string {
	return fmt.Sprintf("column %s of type %s cannot be indexed", e.Column, e.Type)
}
