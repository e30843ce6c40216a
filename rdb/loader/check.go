package loader

import (
	"fmt"
	"regexp"

	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/schema"
	"go.uber.org/multierr"
)

// MySQL 标识符最长 64 个字符，索引名带 idx_ 前缀
const maxIdentifierLength = 64

var identifierRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// DeclarationError 表声明未通过同步前校验
type DeclarationError struct {
	Table  string
	Source string
	Column string
	Reason string
}

func (e *DeclarationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("table %s (%s): %s", e.Table, e.Source, e.Reason)
	}
	return fmt.Sprintf("table %s (%s): column %s: %s", e.Table, e.Source, e.Column, e.Reason)
}

// Check 同步前的整体校验，返回所有问题而不是第一个
//
// 检查表名与列名是否合法、表名是否重复（包括跨目录）、是否使用了系统列、
// 列名是否冲突、字段类型能否映射以及声明了索引的字段是否可索引
func Check(tables []schema.Table, d dialect.Dialect) error {
	var errs error
	seen := map[string]string{}

	for i := range tables {
		t := &tables[i]
		fail := func(column, format string, args ...any) {
			errs = multierr.Append(errs, &DeclarationError{Table: t.Name, Source: t.Source, Column: column, Reason: fmt.Sprintf(format, args...)})
		}

		if !identifierRegex.MatchString(t.Name) || len(t.Name) > maxIdentifierLength {
			fail("", "invalid table name")
		}
		if prev, ok := seen[t.Name]; ok {
			fail("", "table already declared in %s", prev)
		} else {
			seen[t.Name] = t.Source
		}
		if len(t.Fields) == 0 {
			fail("", "no fields declared")
		}

		columns := map[string]string{}
		for _, f := range t.Fields {
			if schema.IsSystemColumn(f.Column) {
				fail(f.Column, "reserved system column")
				continue
			}
			if !identifierRegex.MatchString(f.Column) || len(schema.IndexName(f.Column)) > maxIdentifierLength {
				fail(f.Column, "invalid column name")
			}
			if key, ok := columns[f.Column]; ok {
				fail(f.Column, "keys %s and %s map to the same column", key, f.Key)
				continue
			}
			columns[f.Column] = f.Key

			ct, err := d.ColumnType(f.Rule)
			if err != nil {
				fail(f.Column, "%v", err)
				continue
			}
			if f.Rule.Index() && !ct.AllowsIndex {
				fail(f.Column, "type %s cannot be indexed", f.Rule.Type())
			}
		}
	}

	return errs
}
