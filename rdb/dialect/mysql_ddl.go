package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chenbimo/befly-sub001/rdb/field"
	"github.com/chenbimo/befly-sub001/rdb/schema"
)

var mysqlSystemColumns = map[string]string{
	schema.ColumnID:        "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT COMMENT '主键ID'",
	schema.ColumnCreatedAt: "BIGINT UNSIGNED NOT NULL DEFAULT 0 COMMENT '创建时间'",
	schema.ColumnUpdatedAt: "BIGINT UNSIGNED NOT NULL DEFAULT 0 COMMENT '更新时间'",
	schema.ColumnDeletedAt: "BIGINT UNSIGNED NOT NULL DEFAULT 0 COMMENT '删除时间'",
	schema.ColumnState:     "TINYINT NOT NULL DEFAULT 0 COMMENT '状态'",
}

// 建表时附带的系统列索引
var mysqlSystemIndexes = []string{schema.ColumnCreatedAt, schema.ColumnUpdatedAt, schema.ColumnState}

// ALTER 的执行策略，从快到慢
var mysqlAlterAlgorithms = []string{
	", ALGORITHM=INSTANT",
	", ALGORITHM=INPLACE, LOCK=NONE",
	"",
}

func (d *MySQL) Generate(action schema.Action) (Statement, error) {
	switch a := action.(type) {
	case schema.CreateTable:
		return d.createTable(a)
	case schema.AddColumn:
		def, err := d.columnDefinition(a.Field.Column, a.Field.Rule)
		if err != nil {
			return Statement{}, err
		}
		return alter(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(a.Table), def)), nil
	case schema.ModifyColumn:
		def, err := d.columnDefinition(a.Field.Column, a.Field.Rule)
		if err != nil {
			return Statement{}, err
		}
		return alter(fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", quote(a.Table), def)), nil
	case schema.CreateIndex:
		if err := d.checkIndexable(a.Field); err != nil {
			return Statement{}, err
		}
		return Statement{SQL: fmt.Sprintf("ALTER TABLE %s ADD INDEX %s (%s)",
			quote(a.Table), quote(schema.IndexName(a.Field.Column)), quote(a.Field.Column))}, nil
	case schema.DropIndex:
		return Statement{SQL: fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", quote(a.Table), quote(a.Index))}, nil
	default:
		return Statement{}, fmt.Errorf("mysql: unsupported action %T", action)
	}
}

func alter(base string) Statement {
	stmt := Statement{SQL: base + mysqlAlterAlgorithms[0]}
	for _, algorithm := range mysqlAlterAlgorithms[1:] {
		stmt.Fallbacks = append(stmt.Fallbacks, base+algorithm)
	}
	return stmt
}

func (d *MySQL) createTable(a schema.CreateTable) (Statement, error) {
	var lines, indexes []string
	for _, c := range a.Columns {
		if c.System {
			def, ok := mysqlSystemColumns[c.Name]
			if !ok {
				return Statement{}, fmt.Errorf("mysql: unknown system column %s", c.Name)
			}
			lines = append(lines, quote(c.Name)+" "+def)
			continue
		}

		def, err := d.columnDefinition(c.Name, c.Rule)
		if err != nil {
			return Statement{}, err
		}
		lines = append(lines, def)
		if c.Rule.Index() {
			if err := d.checkIndexable(schema.Field{Column: c.Name, Rule: c.Rule}); err != nil {
				return Statement{}, err
			}
			indexes = append(indexes, c.Name)
		}
	}

	lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", quote(schema.ColumnID)))
	for _, column := range append(append([]string{}, mysqlSystemIndexes...), indexes...) {
		lines = append(lines, fmt.Sprintf("INDEX %s (%s)", quote(schema.IndexName(column)), quote(column)))
	}

	return Statement{SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) ENGINE=%s DEFAULT CHARSET=%s COLLATE=%s",
		quote(a.Table), strings.Join(lines, ",\n  "), d.options.Engine, d.options.Charset, d.options.Collate)}, nil
}

// columnDefinition 生成完整列定义，ADD 和 MODIFY 共用
func (d *MySQL) columnDefinition(column string, rule field.Rule) (string, error) {
	ct, err := d.ColumnType(rule)
	if err != nil {
		return "", err
	}

	parts := []string{quote(column), ct.SQLType}
	if ct.AllowsDefault {
		parts = append(parts, "NOT NULL", "DEFAULT "+d.defaultLiteral(rule))
	} else {
		parts = append(parts, "NULL")
	}
	parts = append(parts, "COMMENT "+literal(rule.Name()))
	return strings.Join(parts, " "), nil
}

func (d *MySQL) defaultLiteral(rule field.Rule) string {
	switch v := rule.Default().(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return literal(v)
	}
	if rule.Type() == field.TypeNumber {
		return "0"
	}
	return "''"
}

func (d *MySQL) checkIndexable(f schema.Field) error {
	ct, err := d.ColumnType(f.Rule)
	if err != nil {
		return err
	}
	if !ct.AllowsIndex {
		return &UnindexableError{Column: f.Column, Type: f.Rule.Type()}
	}
	return nil
}

func quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func literal(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
