// Package loader 读取表声明文件并在同步前做整体校验
//
// 每个声明文件对应一张表，文件名决定表名，内容是 字段键 -> 字段规则 的有序映射。
// 字段规则可以是管道格式字符串，也可以是结构化对象。
package loader

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/chenbimo/befly-sub001/rdb/field"
	"github.com/chenbimo/befly-sub001/rdb/schema"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Source 一个声明目录，按配置顺序读取，核心表在前，项目表在后
type Source struct {
	Dir    string `cfg:"dir" validate:"required"`
	Prefix string `cfg:"prefix"` // 表名前缀
	// 目录不存在时是否忽略
	Optional bool `cfg:"optional"`
}

// entry 声明文件中的一个字段，值为管道字符串或结构化规则
type entry struct {
	key  string
	pipe *string
	spec *field.Spec
}

var extensions = map[string]func([]byte) ([]entry, error){
	".json": decodeJSON,
	".yaml": decodeYAML,
	".yml":  decodeYAML,
}

// IsDeclaration 文件名是否为声明文件，以 _ 或 . 开头的文件被忽略
func IsDeclaration(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := extensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// Files 按字典序列出目录下的声明文件
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsDeclaration(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Load 读取所有声明。单个文件或字段出错不会中断读取，所有错误合并后一起返回，
// 出错的表不出现在结果中
func Load(sources []Source) ([]schema.Table, error) {
	var tables []schema.Table
	var errs error

	for _, src := range sources {
		files, err := Files(src.Dir)
		if err != nil {
			if src.Optional && os.IsNotExist(errors.Cause(err)) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}

		for _, file := range files {
			table, err := LoadFile(file, src.Prefix)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			tables = append(tables, table)
		}
	}

	return tables, errs
}

// LoadFile 读取一个声明文件
func LoadFile(path string, prefix string) (schema.Table, error) {
	decode, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return schema.Table{}, errors.Errorf("unsupported declaration file %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Table{}, errors.Wrapf(err, "read %s", path)
	}
	entries, err := decode(data)
	if err != nil {
		return schema.Table{}, errors.WithMessagef(err, "decode %s", path)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	table := schema.Table{
		Name:   prefix + SnakeCase(base),
		Source: path,
	}

	var errs error
	for _, e := range entries {
		rule, err := parseEntry(e)
		if err != nil {
			errs = multierr.Append(errs, errors.WithMessage(err, path))
			continue
		}
		table.Fields = append(table.Fields, schema.Field{
			Key:    e.key,
			Column: SnakeCase(e.key),
			Rule:   rule,
		})
	}
	if errs != nil {
		return schema.Table{}, errs
	}
	return table, nil
}

func parseEntry(e entry) (field.Rule, error) {
	var rule field.Rule
	var err error
	if e.pipe != nil {
		rule, err = field.Parse(*e.pipe)
	} else {
		rule, err = field.ParseSpec(*e.spec)
	}
	var malformed *field.MalformedRuleError
	if errors.As(err, &malformed) {
		malformed.Key = e.key
	}
	return rule, err
}

// decodeJSON 逐个读取 token 以保留字段的声明顺序
func decodeJSON(data []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "invalid json")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("declaration must be a json object")
	}

	var entries []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "invalid json")
		}
		key := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(err, "invalid json value for %s", key)
		}

		e := entry{key: key}
		switch bytes.TrimSpace(raw)[0] {
		case '"':
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, errors.Wrapf(err, "invalid rule for %s", key)
			}
			e.pipe = &s
		case '{':
			spec := &field.Spec{}
			specDec := json.NewDecoder(bytes.NewReader(raw))
			specDec.DisallowUnknownFields()
			if err := specDec.Decode(spec); err != nil {
				return nil, errors.Wrapf(err, "invalid rule for %s", key)
			}
			e.spec = spec
		default:
			return nil, errors.Errorf("rule for %s must be a string or an object", key)
		}
		entries = append(entries, e)
	}

	if _, err := dec.Token(); err != nil {
		return nil, errors.Wrap(err, "invalid json")
	}
	return entries, nil
}

func decodeYAML(data []byte) ([]entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "invalid yaml")
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("declaration must be a yaml mapping")
	}

	entries := make([]entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		e := entry{key: key}
		switch value.Kind {
		case yaml.ScalarNode:
			s := value.Value
			e.pipe = &s
		case yaml.MappingNode:
			spec := &field.Spec{}
			if err := value.Decode(spec); err != nil {
				return nil, errors.Wrapf(err, "invalid rule for %s", key)
			}
			e.spec = spec
		default:
			return nil, errors.Errorf("rule for %s must be a string or a mapping", key)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SnakeCase userProfile -> user_profile, userID -> user_id, user-log -> user_log
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if r == '-' || r == ' ' || r == '.' {
			b.WriteRune('_')
			continue
		}
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
