package field

import (
	"fmt"
)

// MalformedRuleError 字段规则无法解析
type MalformedRuleError struct {
	Key    string
	Raw    string
	Reason string
}

func (e *MalformedRuleError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("malformed field rule %q: %s", e.Raw, e.Reason)
	}
	return fmt.Sprintf("malformed field rule %s=%q: %s", e.Key, e.Raw, e.Reason)
}

// UnsupportedTypeError 抽象类型不在类型集合中
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported field type %q", e.Type)
}
