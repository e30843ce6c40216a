// Package schema 声明表结构、线上表结构事实以及两者之间的同步动作
package schema

import (
	"strings"

	"github.com/chenbimo/befly-sub001/rdb/field"
)

// 系统列，由同步引擎在每张表上注入，声明中不允许出现
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
	ColumnState     = "state"
)

var systemColumns = []string{ColumnID, ColumnCreatedAt, ColumnUpdatedAt, ColumnDeletedAt, ColumnState}

// SystemColumns 按建表顺序返回系统列
func SystemColumns() []string {
	out := make([]string, len(systemColumns))
	copy(out, systemColumns)
	return out
}

// IsSystemColumn 是否为保留的系统列
func IsSystemColumn(name string) bool {
	for _, c := range systemColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Table 表声明
type Table struct {
	Name   string  // 表名
	Source string  // 声明文件路径
	Fields []Field // 按声明顺序排列的字段
}

// Field 表声明中的一个字段
type Field struct {
	Key    string // 声明中的字段键
	Column string // 列名，字段键的 snake_case 形式
	Rule   field.Rule
}

// Lookup 按列名查找字段
func (t *Table) Lookup(column string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// Column 建表语句中的一列，系统列没有 Rule
type Column struct {
	Name   string
	System bool
	Rule   field.Rule
}

// Columns 系统列在前，声明字段按顺序在后
func (t *Table) Columns() []Column {
	columns := make([]Column, 0, len(systemColumns)+len(t.Fields))
	for _, name := range systemColumns {
		columns = append(columns, Column{Name: name, System: true})
	}
	for _, f := range t.Fields {
		columns = append(columns, Column{Name: f.Column, Rule: f.Rule})
	}
	return columns
}

// LiveColumn 线上已有列
type LiveColumn struct {
	Name      string
	DataType  string // 小写的底层类型名，如 bigint、varchar
	MaxLength *int64 // 字符类型的长度，非字符类型为 nil
	Nullable  bool
	Default   *string
	Comment   string
}

// LiveIndexes 线上非主键索引：索引名 -> 按顺序排列的列名
type LiveIndexes map[string][]string

// IndexPrefix 引擎管理的单列索引名前缀
const IndexPrefix = "idx_"

// IndexName 字段对应的确定性索引名
func IndexName(column string) string {
	return IndexPrefix + column
}

// ManagedColumn 判断索引是否由引擎管理，是则返回对应的列名。
// 只有 idx_<列名> 命名、恰好一列、列名与后缀一致且不是系统列的索引才受管理
func (idx LiveIndexes) ManagedColumn(name string) (string, bool) {
	columns, ok := idx[name]
	if !ok || len(columns) != 1 || !strings.HasPrefix(name, IndexPrefix) {
		return "", false
	}
	column := strings.TrimPrefix(name, IndexPrefix)
	if column != columns[0] || IsSystemColumn(column) {
		return "", false
	}
	return column, true
}
