// Package diff 比较表声明与线上结构，得到有序的同步动作列表
//
// 所有函数都是纯函数：同样的声明和线上状态总是得到同样顺序的动作。
// 字段按声明顺序处理，删除索引按索引名排序。
package diff

import (
	"sort"
	"strings"

	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/field"
	"github.com/chenbimo/befly-sub001/rdb/schema"
)

// TypeMapper 类型映射，通常是 dialect.Dialect
type TypeMapper interface {
	ColumnType(rule field.Rule) (dialect.ColumnType, error)
}

// Compute 计算一张表的全部动作，列动作在前，索引动作在后。
// 线上没有任何列时只返回一个 CreateTable。
// 例外：会阻塞改列的索引先于列动作删除，见 BlockingIndexes
func Compute(t *schema.Table, live []schema.LiveColumn, indexes schema.LiveIndexes, m TypeMapper) ([]schema.Action, error) {
	columnActions, err := Columns(t, live, m)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return columnActions, nil
	}

	drops, err := BlockingIndexes(columnActions, indexes, m)
	if err != nil {
		return nil, err
	}
	actions := append(drops, columnActions...)
	return append(actions, Indexes(t, Without(indexes, drops))...), nil
}

// BlockingIndexes 改列后的类型不可索引时，列上受管理的索引必须在 MODIFY 之前删除，
// 否则 MySQL 拒绝修改。按列动作顺序返回这些 DropIndex
func BlockingIndexes(columnActions []schema.Action, live schema.LiveIndexes, m TypeMapper) ([]schema.Action, error) {
	var drops []schema.Action
	for _, action := range columnActions {
		modify, ok := action.(schema.ModifyColumn)
		if !ok {
			continue
		}
		name := schema.IndexName(modify.Field.Column)
		if _, managed := live.ManagedColumn(name); !managed {
			continue
		}
		ct, err := m.ColumnType(modify.Field.Rule)
		if err != nil {
			return nil, err
		}
		if !ct.AllowsIndex {
			drops = append(drops, schema.DropIndex{Table: modify.Table, Index: name})
		}
	}
	return drops, nil
}

// Without 返回去掉已删除索引后的副本，live 不变
func Without(live schema.LiveIndexes, drops []schema.Action) schema.LiveIndexes {
	if len(drops) == 0 {
		return live
	}
	out := make(schema.LiveIndexes, len(live))
	for name, columns := range live {
		out[name] = columns
	}
	for _, action := range drops {
		if drop, ok := action.(schema.DropIndex); ok {
			delete(out, drop.Index)
		}
	}
	return out
}

// Columns 计算列动作。系统列不参与比较，表存在即认为系统列存在
func Columns(t *schema.Table, live []schema.LiveColumn, m TypeMapper) ([]schema.Action, error) {
	if len(live) == 0 {
		return []schema.Action{schema.CreateTable{Table: t.Name, Columns: t.Columns()}}, nil
	}

	byName := make(map[string]schema.LiveColumn, len(live))
	for _, c := range live {
		byName[c.Name] = c
	}

	var actions []schema.Action
	for _, f := range t.Fields {
		c, ok := byName[f.Column]
		if !ok {
			actions = append(actions, schema.AddColumn{Table: t.Name, Field: f})
			continue
		}

		ct, err := m.ColumnType(f.Rule)
		if err != nil {
			return nil, err
		}
		if changes := Changes(f, c, ct); len(changes) > 0 {
			actions = append(actions, schema.ModifyColumn{Table: t.Name, Field: f, Changes: changes})
		}
	}
	return actions, nil
}

// Changes 比较长度、注释和底层类型
func Changes(f schema.Field, live schema.LiveColumn, ct dialect.ColumnType) []schema.ChangeKind {
	var changes []schema.ChangeKind
	if ct.Length > 0 && (live.MaxLength == nil || *live.MaxLength != int64(ct.Length)) {
		changes = append(changes, schema.ChangeLength)
	}
	if live.Comment != f.Rule.Name() {
		changes = append(changes, schema.ChangeComment)
	}
	if !strings.EqualFold(live.DataType, ct.DataType) {
		changes = append(changes, schema.ChangeType)
	}
	return changes
}

// Indexes 计算索引动作。多列索引和不符合 idx_<列名> 命名的索引不受管理，既不创建也不删除
func Indexes(t *schema.Table, live schema.LiveIndexes) []schema.Action {
	var actions []schema.Action
	for _, f := range t.Fields {
		if !f.Rule.Index() {
			continue
		}
		if _, ok := live[schema.IndexName(f.Column)]; !ok {
			actions = append(actions, schema.CreateIndex{Table: t.Name, Field: f})
		}
	}

	names := make([]string, 0, len(live))
	for name := range live {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		column, ok := live.ManagedColumn(name)
		if !ok {
			continue
		}
		if f, declared := t.Lookup(column); declared && f.Rule.Index() {
			continue
		}
		actions = append(actions, schema.DropIndex{Table: t.Name, Index: name})
	}
	return actions
}
