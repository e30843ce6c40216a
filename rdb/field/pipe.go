package field

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const null = "null"

// pipeParts 显示名|类型|最小值|最大值|默认值|索引|正则
const pipeParts = 7

// Parse 解析管道格式的字段规则，正则位于最后一段，可以包含 |
func Parse(raw string) (Rule, error) {
	rule, err := parsePipe(raw)
	if err != nil {
		return Rule{}, withRaw(err, raw)
	}
	return rule, nil
}

func parsePipe(raw string) (Rule, error) {
	parts := strings.SplitN(raw, "|", pipeParts)
	if len(parts) != pipeParts {
		return Rule{}, &MalformedRuleError{Reason: "expected " + strconv.Itoa(pipeParts) + " parts separated by |, got " + strconv.Itoa(len(parts))}
	}
	for i := 0; i < pipeParts-1; i++ {
		parts[i] = strings.TrimSpace(parts[i])
	}

	typ, err := ParseType(parts[1])
	if err != nil {
		return Rule{}, &MalformedRuleError{Reason: "type must be one of " + typeList() + ", array"}
	}

	min, err := parseBound(parts[2])
	if err != nil {
		return Rule{}, &MalformedRuleError{Reason: "min: " + err.Error()}
	}
	max, err := parseBound(parts[3])
	if err != nil {
		return Rule{}, &MalformedRuleError{Reason: "max: " + err.Error()}
	}

	var def any
	if !isNull(parts[4]) {
		def = parts[4]
	}

	index, err := parseFlag(parts[5])
	if err != nil {
		return Rule{}, &MalformedRuleError{Reason: "index: " + err.Error()}
	}

	pattern := parts[6]
	if isNull(strings.TrimSpace(pattern)) {
		pattern = ""
	}

	return New(Params{
		Name:    parts[0],
		Type:    typ,
		Min:     min,
		Max:     max,
		Default: def,
		Index:   index,
		Pattern: pattern,
	})
}

func isNull(s string) bool {
	return s == "" || strings.EqualFold(s, null)
}

func parseBound(s string) (*float64, error) {
	if isNull(s) {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Errorf("%q is neither null nor a number", s)
	}
	return &f, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, errors.Errorf("%q is not a boolean flag", s)
	}
}

func withRaw(err error, raw string) error {
	var e *MalformedRuleError
	if errors.As(err, &e) {
		return &MalformedRuleError{Key: e.Key, Raw: raw, Reason: e.Reason}
	}
	return err
}
