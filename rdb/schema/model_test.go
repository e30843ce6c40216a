package schema

import (
	"testing"

	"github.com/chenbimo/befly-sub001/rdb/field"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagedColumn(t *testing.T) {
	Convey("测试受管理索引的识别", t, func() {
		idx := LiveIndexes{
			"idx_email":      {"email"},
			"idx_state":      {"state"},
			"idx_name_email": {"name", "email"},
			"idx_alias":      {"nickname"},
			"uk_phone":       {"phone"},
		}

		column, ok := idx.ManagedColumn("idx_email")
		So(ok, ShouldBeTrue)
		So(column, ShouldEqual, "email")

		for _, name := range []string{"idx_state", "idx_name_email", "idx_alias", "uk_phone", "idx_missing"} {
			_, ok := idx.ManagedColumn(name)
			So(ok, ShouldBeFalse)
		}
	})
}

func TestColumns(t *testing.T) {
	Convey("测试建表列顺序", t, func() {
		rule, err := field.Parse("年龄|number|0|150|18|0|null")
		So(err, ShouldBeNil)
		table := &Table{Name: "user", Fields: []Field{{Key: "age", Column: "age", Rule: rule}}}

		columns := table.Columns()
		So(len(columns), ShouldEqual, 6)
		for i, name := range SystemColumns() {
			So(columns[i].Name, ShouldEqual, name)
			So(columns[i].System, ShouldBeTrue)
		}
		So(columns[5].Name, ShouldEqual, "age")
		So(columns[5].System, ShouldBeFalse)

		f, ok := table.Lookup("age")
		So(ok, ShouldBeTrue)
		So(f.Key, ShouldEqual, "age")
		_, ok = table.Lookup("id")
		So(ok, ShouldBeFalse)

		So(IsSystemColumn("deleted_at"), ShouldBeTrue)
		So(IsSystemColumn("age"), ShouldBeFalse)
	})
}
