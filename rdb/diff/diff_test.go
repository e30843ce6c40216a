package diff

import (
	"testing"

	"github.com/chenbimo/befly-sub001/rdb/dialect"
	"github.com/chenbimo/befly-sub001/rdb/field"
	"github.com/chenbimo/befly-sub001/rdb/schema"
	. "github.com/smartystreets/goconvey/convey"
)

var mysql = dialect.NewMySQLWithOptions(nil)

func newTable(name string, fields ...[2]string) *schema.Table {
	t := &schema.Table{Name: name}
	for _, kv := range fields {
		rule, err := field.Parse(kv[1])
		if err != nil {
			panic(err)
		}
		t.Fields = append(t.Fields, schema.Field{Key: kv[0], Column: kv[0], Rule: rule})
	}
	return t
}

// converged 构造与声明完全一致的线上状态
func converged(t *schema.Table) ([]schema.LiveColumn, schema.LiveIndexes) {
	var columns []schema.LiveColumn
	for _, name := range schema.SystemColumns() {
		columns = append(columns, schema.LiveColumn{Name: name, DataType: "bigint"})
	}
	indexes := schema.LiveIndexes{
		"idx_created_at": {"created_at"},
		"idx_updated_at": {"updated_at"},
		"idx_state":      {"state"},
	}
	for _, f := range t.Fields {
		ct, err := mysql.ColumnType(f.Rule)
		if err != nil {
			panic(err)
		}
		c := schema.LiveColumn{Name: f.Column, DataType: ct.DataType, Comment: f.Rule.Name()}
		if ct.Length > 0 {
			n := int64(ct.Length)
			c.MaxLength = &n
		}
		columns = append(columns, c)
		if f.Rule.Index() {
			indexes[schema.IndexName(f.Column)] = []string{f.Column}
		}
	}
	return columns, indexes
}

func kinds(actions []schema.Action) []schema.ActionKind {
	var out []schema.ActionKind
	for _, a := range actions {
		out = append(out, a.Kind())
	}
	return out
}

func TestCompute(t *testing.T) {
	user := newTable("user",
		[2]string{"age", "年龄|number|0|150|18|0|null"},
		[2]string{"email", "邮箱|string|0|255|null|1|null"},
		[2]string{"bio", "简介|text|null|null|null|0|null"},
	)

	Convey("线上无表时只生成一个建表动作", t, func() {
		actions, err := Compute(user, nil, schema.LiveIndexes{"idx_foo": {"foo"}}, mysql)
		So(err, ShouldBeNil)
		So(len(actions), ShouldEqual, 1)

		create, ok := actions[0].(schema.CreateTable)
		So(ok, ShouldBeTrue)
		So(create.Table, ShouldEqual, "user")
		So(len(create.Columns), ShouldEqual, 5+len(user.Fields))

		var names []string
		for _, c := range create.Columns {
			names = append(names, c.Name)
		}
		So(names, ShouldResemble, []string{"id", "created_at", "updated_at", "deleted_at", "state", "age", "email", "bio"})
	})

	Convey("完全一致时没有动作", t, func() {
		columns, indexes := converged(user)
		actions, err := Compute(user, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(actions, ShouldBeEmpty)
	})

	Convey("同样的输入总是得到同样的动作", t, func() {
		columns, _ := converged(newTable("user", [2]string{"age", "年龄|number|0|150|18|0|null"}))
		indexes := schema.LiveIndexes{"idx_b": {"b"}, "idx_a": {"a"}, "idx_c": {"c"}}
		first, err := Compute(user, columns, indexes, mysql)
		So(err, ShouldBeNil)
		for i := 0; i < 10; i++ {
			again, err := Compute(user, columns, indexes, mysql)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, first)
		}
		So(kinds(first), ShouldResemble, []schema.ActionKind{
			schema.KindAddColumn, schema.KindAddColumn,
			schema.KindCreateIndex,
			schema.KindDropIndex, schema.KindDropIndex, schema.KindDropIndex,
		})
		So(first[3].Target(), ShouldEqual, "idx_a")
		So(first[5].Target(), ShouldEqual, "idx_c")
	})

	Convey("线上 age 是字符串列时生成一个改列动作", t, func() {
		decl := newTable("user", [2]string{"age", "年龄|number|0|150|18|0|null"})
		columns, indexes := converged(decl)
		n := int64(50)
		columns[5] = schema.LiveColumn{Name: "age", DataType: "varchar", MaxLength: &n, Comment: "年龄"}

		actions, err := Compute(decl, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(len(actions), ShouldEqual, 1)
		modify, ok := actions[0].(schema.ModifyColumn)
		So(ok, ShouldBeTrue)
		So(modify.Changes, ShouldContain, schema.ChangeType)

		stmt, err := mysql.Generate(modify)
		So(err, ShouldBeNil)
		So(stmt.SQL, ShouldContainSubstring, "MODIFY COLUMN `age` BIGINT NOT NULL DEFAULT 18")
	})

	Convey("长度和注释变化合并为一个改列动作", t, func() {
		decl := newTable("user", [2]string{"email", "电子邮箱|string|0|128|null|1|null"})
		columns, indexes := converged(newTable("user", [2]string{"email", "邮箱|string|0|255|null|1|null"}))

		actions, err := Compute(decl, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(len(actions), ShouldEqual, 1)
		So(actions[0].(schema.ModifyColumn).Changes, ShouldResemble, []schema.ChangeKind{schema.ChangeLength, schema.ChangeComment})
	})

	Convey("email 声明索引但线上缺失时只生成一个建索引动作", t, func() {
		decl := newTable("user", [2]string{"email", "邮箱|string|0|255|null|1|null"})
		columns, indexes := converged(decl)
		delete(indexes, "idx_email")

		actions, err := Compute(decl, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(len(actions), ShouldEqual, 1)
		create, ok := actions[0].(schema.CreateIndex)
		So(ok, ShouldBeTrue)
		So(create.Field.Column, ShouldEqual, "email")
	})

	Convey("索引标记从 true 变为 false 时只生成一个删索引动作", t, func() {
		before := newTable("user", [2]string{"email", "邮箱|string|0|255|null|1|null"})
		after := newTable("user", [2]string{"email", "邮箱|string|0|255|null|0|null"})
		columns, indexes := converged(before)

		actions, err := Compute(after, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(len(actions), ShouldEqual, 1)
		So(actions[0], ShouldResemble, schema.DropIndex{Table: "user", Index: "idx_email"})
	})

	Convey("字段删除后其索引被删除，列保留", t, func() {
		columns, indexes := converged(user)
		decl := newTable("user", [2]string{"age", "年龄|number|0|150|18|0|null"})

		actions, err := Compute(decl, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(actions, ShouldResemble, []schema.Action{schema.DropIndex{Table: "user", Index: "idx_email"}})
	})

	Convey("索引列改为 text 时先删索引再改列", t, func() {
		before := newTable("user", [2]string{"email", "邮箱|string|0|255|null|1|null"})
		after := newTable("user", [2]string{"email", "邮箱|text|null|null|null|0|null"})
		columns, indexes := converged(before)

		actions, err := Compute(after, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(kinds(actions), ShouldResemble, []schema.ActionKind{schema.KindDropIndex, schema.KindModifyColumn})
		So(actions[0], ShouldResemble, schema.DropIndex{Table: "user", Index: "idx_email"})
		So(indexes, ShouldContainKey, "idx_email")
	})

	Convey("取消索引同时长度超过索引上限时先删索引", t, func() {
		before := newTable("user", [2]string{"email", "邮箱|string|0|255|null|1|null"})
		after := newTable("user", [2]string{"email", "邮箱|string|0|1000|null|0|null"})
		columns, indexes := converged(before)

		actions, err := Compute(after, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(kinds(actions), ShouldResemble, []schema.ActionKind{schema.KindDropIndex, schema.KindModifyColumn})
	})

	Convey("改列后仍可索引时不提前删索引", t, func() {
		before := newTable("user", [2]string{"email", "邮箱|string|0|255|null|1|null"})
		after := newTable("user", [2]string{"email", "邮箱|string|0|128|null|0|null"})
		columns, indexes := converged(before)

		actions, err := Compute(after, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(kinds(actions), ShouldResemble, []schema.ActionKind{schema.KindModifyColumn, schema.KindDropIndex})

		drops, err := BlockingIndexes(actions[:1], indexes, mysql)
		So(err, ShouldBeNil)
		So(drops, ShouldBeEmpty)
	})

	Convey("不受管理的索引不动", t, func() {
		columns, indexes := converged(user)
		indexes["idx_age_email"] = []string{"age", "email"}
		indexes["uk_email"] = []string{"email"}
		indexes["idx_nick"] = []string{"nickname"}
		indexes["idx_state"] = []string{"state"}

		actions, err := Compute(user, columns, indexes, mysql)
		So(err, ShouldBeNil)
		So(actions, ShouldBeEmpty)
	})

	Convey("类型映射失败时返回错误", t, func() {
		decl := &schema.Table{Name: "user", Fields: []schema.Field{{Key: "x", Column: "x"}}}
		columns := []schema.LiveColumn{{Name: "id"}, {Name: "x"}}
		_, err := Compute(decl, columns, nil, mysql)
		So(err, ShouldNotBeNil)
	})
}
