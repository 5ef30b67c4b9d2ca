package modules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/Pipeflow/internal/engine"
)

// Format рендерит Go template над значениями входа value.
//
// Шаблону доступны:
//   - {{ .Value }}  — значение первого connector'а порта value
//   - {{ .Values }} — значения всех connector'ов
//
// Выход: value (String).
type Format struct{}

// FormatData — данные шаблона Format.
type FormatData struct {
	Value  any
	Values []any
}

// Compute реализует engine.Computer.
func (f *Format) Compute(m *engine.Module) error {
	if err := m.CheckInputPort("template"); err != nil {
		return err
	}
	raw, err := m.GetInputFromPort("template")
	if err != nil {
		return err
	}
	tmpl, ok := raw.(string)
	if !ok {
		return engine.ModuleErrorf(m, "template must be a String, got %s", engine.InferType(raw))
	}

	values, err := m.ForceGetInputListFromPort("value")
	if err != nil {
		return err
	}
	data := FormatData{Values: values}
	if len(values) > 0 {
		data.Value = values[0]
	}

	out, err := Render(tmpl, data)
	if err != nil {
		return &engine.ModuleError{Module: m, Message: err.Error(), Err: err}
	}
	m.SetResult("value", out, TypeString)
	return nil
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// fromJSON — парсит JSON строку
	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	// default — значение по умолчанию для пустого аргумента
	"default": func(def, val any) any {
		if isEmpty(val) {
			return def
		}
		return val
	},

	"coalesce": func(values ...any) any {
		for _, v := range values {
			if !isEmpty(v) {
				return v
			}
		}
		return nil
	},

	// join — склеивает элементы списка любого типа
	"join": func(sep string, items []any) string {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep)
	},

	"split":     func(sep, s string) []string { return strings.Split(s, sep) },
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"hasSuffix": strings.HasSuffix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Render рендерит строковый шаблон с данными.
// Строка без "{{" возвращается как есть.
func Render(tmpl string, data any) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}
