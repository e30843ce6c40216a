package field

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Spec 结构化格式的字段规则
type Spec struct {
	Name    string   `json:"name" yaml:"name" validate:"required"`
	Type    string   `json:"type" yaml:"type" validate:"required,oneof=number string text array array_string array_text array_number_string array_number_text"`
	Min     *float64 `json:"min" yaml:"min"`
	Max     *float64 `json:"max" yaml:"max"`
	Default any      `json:"default" yaml:"default"`
	Index   bool     `json:"index" yaml:"index"`
	Regexp  *string  `json:"regexp" yaml:"regexp"`
}

// ParseSpec 校验结构化规则并归一化为 Rule
func ParseSpec(s Spec) (Rule, error) {
	raw := s.Name + "|" + s.Type
	if err := validate.Struct(s); err != nil {
		return Rule{}, &MalformedRuleError{Raw: raw, Reason: err.Error()}
	}

	typ, err := ParseType(s.Type)
	if err != nil {
		return Rule{}, &MalformedRuleError{Raw: raw, Reason: err.Error()}
	}

	pattern := ""
	if s.Regexp != nil && !isNull(*s.Regexp) {
		pattern = *s.Regexp
	}

	rule, err := New(Params{
		Name:    s.Name,
		Type:    typ,
		Min:     s.Min,
		Max:     s.Max,
		Default: s.Default,
		Index:   s.Index,
		Pattern: pattern,
	})
	if err != nil {
		return Rule{}, withRaw(err, raw)
	}
	return rule, nil
}
