package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chenbimo/befly-sub001/rdb/field"
)

// MySQLOptions MySQL 方言选项
type MySQLOptions struct {
	// 可建索引的 VARCHAR 最大长度，utf8mb4 下 3072 字节对应 768 字符
	MaxIndexLength int `cfg:"maxIndexLength" def:"768" validate:"min=1"`

	// 最低主版本号
	MinMajorVersion int `cfg:"minMajorVersion" def:"8" validate:"min=1"`

	Engine  string `cfg:"engine" def:"InnoDB"`
	Charset string `cfg:"charset" def:"utf8mb4"`
	Collate string `cfg:"collate" def:"utf8mb4_0900_ai_ci"`
}

// MySQL MySQL 兼容方言
type MySQL struct {
	options MySQLOptions
}

func NewMySQLWithOptions(options *MySQLOptions) *MySQL {
	opts := MySQLOptions{}
	if options != nil {
		opts = *options
	}
	if opts.MaxIndexLength <= 0 {
		opts.MaxIndexLength = 768
	}
	if opts.MinMajorVersion <= 0 {
		opts.MinMajorVersion = 8
	}
	if opts.Engine == "" {
		opts.Engine = "InnoDB"
	}
	if opts.Charset == "" {
		opts.Charset = "utf8mb4"
	}
	if opts.Collate == "" {
		opts.Collate = "utf8mb4_0900_ai_ci"
	}
	return &MySQL{options: opts}
}

func (d *MySQL) Name() string {
	return "mysql"
}

// ColumnType 类型映射表：
//
//	number                      BIGINT        数字默认值或 0   可索引
//	string, array_string        VARCHAR(max)  字符串默认值或 '' 长度不超过 MaxIndexLength 时可索引
//	array_number_string         VARCHAR(max)  字符串默认值或 '' 不可索引
//	text, array_*_text          MEDIUMTEXT    无默认值          不可索引
func (d *MySQL) ColumnType(rule field.Rule) (ColumnType, error) {
	switch t := rule.Type(); t {
	case field.TypeNumber:
		return ColumnType{SQLType: "BIGINT", DataType: "bigint", AllowsDefault: true, AllowsIndex: true}, nil
	case field.TypeString, field.TypeArrayString:
		n := rule.Length()
		return ColumnType{
			SQLType:       fmt.Sprintf("VARCHAR(%d)", n),
			DataType:      "varchar",
			Length:        n,
			AllowsDefault: true,
			AllowsIndex:   n <= d.options.MaxIndexLength,
		}, nil
	case field.TypeArrayNumberString:
		n := rule.Length()
		return ColumnType{SQLType: fmt.Sprintf("VARCHAR(%d)", n), DataType: "varchar", Length: n, AllowsDefault: true}, nil
	case field.TypeText, field.TypeArrayText, field.TypeArrayNumberText:
		return ColumnType{SQLType: "MEDIUMTEXT", DataType: "mediumtext"}, nil
	default:
		return ColumnType{}, &field.UnsupportedTypeError{Type: string(t)}
	}
}

func (d *MySQL) Queries() MetadataQueries {
	return MetadataQueries{
		Version: "SELECT VERSION()",
		Columns: "SELECT COLUMN_NAME AS name, DATA_TYPE AS data_type, CHARACTER_MAXIMUM_LENGTH AS max_length, " +
			"IS_NULLABLE AS is_nullable, COLUMN_DEFAULT AS column_default, COLUMN_COMMENT AS comment " +
			"FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? " +
			"ORDER BY ORDINAL_POSITION",
		Indexes: "SELECT INDEX_NAME AS index_name, COLUMN_NAME AS column_name " +
			"FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY' " +
			"ORDER BY INDEX_NAME, SEQ_IN_INDEX",
	}
}

var versionPattern = regexp.MustCompile(`^(\d+)\.`)

// CheckVersion 拒绝低于最低主版本的服务端和 MariaDB 分支
func (d *MySQL) CheckVersion(version string) error {
	if strings.Contains(strings.ToLower(version), "mariadb") {
		return &VersionIncompatibleError{Version: version, Reason: "MariaDB is not supported"}
	}
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(version))
	if m == nil {
		return &VersionIncompatibleError{Version: version, Reason: "unrecognized version format"}
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return &VersionIncompatibleError{Version: version, Reason: "unrecognized version format"}
	}
	if major < d.options.MinMajorVersion {
		return &VersionIncompatibleError{
			Version: version,
			Reason:  fmt.Sprintf("major version %d is lower than required %d", major, d.options.MinMajorVersion),
		}
	}
	return nil
}
