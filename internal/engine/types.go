package engine

import (
	"fmt"
	"reflect"
)

// Type — имя типа значения на порту (например, "Integer", "String").
type Type string

// Базовые типы, которые движок умеет выводить сам.
const (
	// TypeNone — значение отсутствует (nil без объявленного типа).
	TypeNone Type = "None"

	TypeInteger Type = "Integer"
	TypeFloat   Type = "Float"
	TypeString  Type = "String"
	TypeBoolean Type = "Boolean"
	TypeList    Type = "List"
	TypeDict    Type = "Dictionary"
)

// Typed — значение, которое само сообщает свой тип.
type Typed interface {
	PortType() Type
}

// TypeChecker — коллаборатор реестра типов.
//
// Движку нужен только предикат "подходит ли runtime-тип для порта"
// и вывод типа значения для SetResult без явного типа.
type TypeChecker interface {
	// IsSubtype сообщает, является ли sub подтипом super (или равен ему).
	IsSubtype(sub, super Type) bool

	// TypeOf возвращает тип значения.
	TypeOf(v any) Type
}

// exactTypes — TypeChecker по умолчанию: подтип только равный тип.
type exactTypes struct{}

func (exactTypes) IsSubtype(sub, super Type) bool { return sub == super }

func (exactTypes) TypeOf(v any) Type { return InferType(v) }

// InferType выводит тип значения по его Go-представлению.
func InferType(v any) Type {
	if v == nil {
		return TypeNone
	}
	if t, ok := v.(Typed); ok {
		return t.PortType()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Slice, reflect.Array:
		return TypeList
	case reflect.Map:
		return TypeDict
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return TypeNone
		}
	}
	return Type(fmt.Sprintf("%T", v))
}
