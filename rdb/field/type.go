package field

import (
	"fmt"
)

// Type 字段的抽象类型，取值集合是封闭的，新增类型时 Types() 和所有方言都必须同步处理
type Type string

const (
	TypeNumber            Type = "number"
	TypeString            Type = "string"
	TypeText              Type = "text"
	TypeArrayString       Type = "array_string"
	TypeArrayText         Type = "array_text"
	TypeArrayNumberString Type = "array_number_string"
	TypeArrayNumberText   Type = "array_number_text"
)

// legacyArray 管道格式中的 array 等价于 array_string
const legacyArray = "array"

var types = []Type{
	TypeNumber,
	TypeString,
	TypeText,
	TypeArrayString,
	TypeArrayText,
	TypeArrayNumberString,
	TypeArrayNumberText,
}

// Types 返回全部抽象类型
func Types() []Type {
	out := make([]Type, len(types))
	copy(out, types)
	return out
}

// ParseType 解析类型名
func ParseType(s string) (Type, error) {
	if s == legacyArray {
		return TypeArrayString, nil
	}
	for _, t := range types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &UnsupportedTypeError{Type: s}
}

// IsArray 是否为数组类型
func (t Type) IsArray() bool {
	switch t {
	case TypeArrayString, TypeArrayText, TypeArrayNumberString, TypeArrayNumberText:
		return true
	case TypeNumber, TypeString, TypeText:
		return false
	default:
		panic(fmt.Sprintf("field: unhandled type %q", string(t)))
	}
}

// RequiresMax string 和数组类型的 max 决定列长度，必须是具体数值
func (t Type) RequiresMax() bool {
	switch t {
	case TypeString, TypeArrayString, TypeArrayText, TypeArrayNumberString, TypeArrayNumberText:
		return true
	case TypeNumber, TypeText:
		return false
	default:
		panic(fmt.Sprintf("field: unhandled type %q", string(t)))
	}
}
