package schema

// ActionKind 同步动作类型
type ActionKind string

const (
	KindCreateTable  ActionKind = "create_table"
	KindAddColumn    ActionKind = "add_column"
	KindModifyColumn ActionKind = "modify_column"
	KindCreateIndex  ActionKind = "create_index"
	KindDropIndex    ActionKind = "drop_index"
)

// ChangeKind 列差异类型，仅用于观测，生成器总是重新生成完整列定义
type ChangeKind string

const (
	ChangeLength  ChangeKind = "length"
	ChangeComment ChangeKind = "comment"
	ChangeType    ChangeKind = "type"
)

// Action 同步动作，只有本包中的类型实现该接口
type Action interface {
	Kind() ActionKind
	TableName() string
	// Target 动作作用的对象：表名、列名或索引名
	Target() string
	action()
}

type CreateTable struct {
	Table   string
	Columns []Column
}

type AddColumn struct {
	Table string
	Field Field
}

type ModifyColumn struct {
	Table   string
	Field   Field
	Changes []ChangeKind
}

type CreateIndex struct {
	Table string
	Field Field
}

type DropIndex struct {
	Table string
	Index string
}

func (a CreateTable) Kind() ActionKind  { return KindCreateTable }
func (a AddColumn) Kind() ActionKind    { return KindAddColumn }
func (a ModifyColumn) Kind() ActionKind { return KindModifyColumn }
func (a CreateIndex) Kind() ActionKind  { return KindCreateIndex }
func (a DropIndex) Kind() ActionKind    { return KindDropIndex }

func (a CreateTable) TableName() string  { return a.Table }
func (a AddColumn) TableName() string    { return a.Table }
func (a ModifyColumn) TableName() string { return a.Table }
func (a CreateIndex) TableName() string  { return a.Table }
func (a DropIndex) TableName() string    { return a.Table }

func (a CreateTable) Target() string  { return a.Table }
func (a AddColumn) Target() string    { return a.Field.Column }
func (a ModifyColumn) Target() string { return a.Field.Column }
func (a CreateIndex) Target() string  { return IndexName(a.Field.Column) }
func (a DropIndex) Target() string    { return a.Index }

func (CreateTable) action()  {}
func (AddColumn) action()    {}
func (ModifyColumn) action() {}
func (CreateIndex) action()  {}
func (DropIndex) action()    {}
