// Package field 字段规则模型
//
// 字段规则描述一列的显示名、抽象类型、取值范围、默认值、索引意图和校验正则。
// 规则有两种来源格式（管道分隔字符串和结构化对象），都经由 New 归一化为同一个 Rule，
// 同步引擎只接触 Rule，不接触任何来源格式。
package field

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxVarcharLength VARCHAR 列允许的最大长度
const MaxVarcharLength = 65535

var displayNamePattern = regexp.MustCompile(`^[\p{Han}A-Za-z0-9 _-]+$`)

// Rule 归一化后的字段规则，构造后不可变
type Rule struct {
	name    string
	typ     Type
	min     *float64
	max     *float64
	def     any
	index   bool
	pattern string
}

// Params 构造 Rule 的参数
type Params struct {
	Name    string
	Type    Type
	Min     *float64
	Max     *float64
	Default any // nil, string 或 float64
	Index   bool
	Pattern string
}

// New 校验参数并构造 Rule
func New(p Params) (Rule, error) {
	fail := func(reason string) (Rule, error) {
		return Rule{}, &MalformedRuleError{Reason: reason}
	}

	if !displayNamePattern.MatchString(p.Name) {
		return fail("display name must only contain letters, digits, CJK characters, space, underscore or hyphen")
	}
	if _, err := ParseType(string(p.Type)); err != nil || string(p.Type) == legacyArray {
		return fail("type must be one of " + typeList())
	}
	for _, b := range []*float64{p.Min, p.Max} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return fail("bounds must be null or finite numbers")
		}
	}
	if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
		return fail("min must not be greater than max")
	}
	if p.Type.RequiresMax() {
		if p.Max == nil {
			return fail("max is required for type " + string(p.Type))
		}
		if isVarchar(p.Type) {
			if *p.Max != math.Trunc(*p.Max) || *p.Max < 1 || *p.Max > MaxVarcharLength {
				return fail("max must be an integer between 1 and " + strconv.Itoa(MaxVarcharLength))
			}
		}
	}

	def, err := normalizeDefault(p.Type, p.Default)
	if err != nil {
		return fail(err.Error())
	}

	if p.Pattern != "" {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fail("invalid pattern: " + err.Error())
		}
	}

	return Rule{
		name:    p.Name,
		typ:     p.Type,
		min:     copyFloat(p.Min),
		max:     copyFloat(p.Max),
		def:     def,
		index:   p.Index,
		pattern: p.Pattern,
	}, nil
}

func (r Rule) Name() string {
	return r.name
}

func (r Rule) Type() Type {
	return r.typ
}

func (r Rule) Min() (float64, bool) {
	if r.min == nil {
		return 0, false
	}
	return *r.min, true
}

func (r Rule) Max() (float64, bool) {
	if r.max == nil {
		return 0, false
	}
	return *r.max, true
}

// Length VARCHAR 类列的存储长度，即 max 的整数值
func (r Rule) Length() int {
	if r.max == nil {
		return 0
	}
	return int(*r.max)
}

// Default 默认值：nil、string 或 float64
func (r Rule) Default() any {
	return r.def
}

func (r Rule) Index() bool {
	return r.index
}

func (r Rule) Pattern() string {
	return r.pattern
}

// Regexp 编译后的校验正则，没有正则时返回 nil
func (r Rule) Regexp() *regexp.Regexp {
	if r.pattern == "" {
		return nil
	}
	return regexp.MustCompile(r.pattern)
}

// String 以管道格式输出规则
func (r Rule) String() string {
	idx := "0"
	if r.index {
		idx = "1"
	}
	return strings.Join([]string{
		r.name,
		string(r.typ),
		formatBound(r.min),
		formatBound(r.max),
		formatDefault(r.def),
		idx,
		nullIfEmpty(r.pattern),
	}, "|")
}

func isVarchar(t Type) bool {
	return t == TypeString || t == TypeArrayString || t == TypeArrayNumberString
}

func normalizeDefault(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if t == TypeNumber {
		var f float64
		switch d := v.(type) {
		case float64:
			f = d
		case int:
			f = float64(d)
		case int64:
			f = float64(d)
		case uint64:
			f = float64(d)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
			if err != nil {
				return nil, errors.New("default of number field must be numeric")
			}
			f = parsed
		default:
			return nil, errors.New("default of number field must be numeric")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.New("default of number field must be finite")
		}
		// number 映射为整数列
		if f != math.Trunc(f) {
			return nil, errors.New("default of number field must be an integer")
		}
		return f, nil
	}

	// 空字符串与未声明等价，生成的列默认值都是 ''
	switch d := v.(type) {
	case string:
		if d == "" {
			return nil, nil
		}
		return d, nil
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(d), nil
	case int64:
		return strconv.FormatInt(d, 10), nil
	case uint64:
		return strconv.FormatUint(d, 10), nil
	default:
		return nil, errors.New("default must be a string or number")
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func formatBound(f *float64) string {
	if f == nil {
		return null
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatDefault(v any) string {
	switch d := v.(type) {
	case nil:
		return null
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64)
	case string:
		return nullIfEmpty(d)
	default:
		return null
	}
}

func nullIfEmpty(s string) string {
	if s == "" {
		return null
	}
	return s
}

func typeList() string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
