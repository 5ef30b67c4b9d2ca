package modules

import (
	"fmt"
	"strings"

	"github.com/shaiso/Pipeflow/internal/engine"
)

// Concat склеивает значения всех connector'ов порта items через sep.
type Concat struct{}

// Compute реализует engine.Computer.
func (c *Concat) Compute(m *engine.Module) error {
	items, err := m.ForceGetInputListFromPort("items")
	if err != nil {
		return err
	}
	rawSep, err := m.ForceGetInputFromPort("sep", "")
	if err != nil {
		return err
	}
	sep, _ := rawSep.(string)

	parts := make([]string, 0, len(items))
	for _, item := range flatten(items) {
		parts = append(parts, fmt.Sprint(item))
	}
	m.SetResult("value", strings.Join(parts, sep), TypeString)
	return nil
}

// ListOf собирает значения всех connector'ов порта item в список.
// Неподключённый порт даёт пустой список.
type ListOf struct{}

// Compute реализует engine.Computer.
func (l *ListOf) Compute(m *engine.Module) error {
	items, err := m.ForceGetInputListFromPort("item")
	if err != nil {
		return err
	}
	m.SetResult("value", items, TypeList)
	return nil
}

// flatten раскрывает вложенные списки на один уровень.
func flatten(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if list, ok := item.([]any); ok {
			out = append(out, list...)
			continue
		}
		out = append(out, item)
	}
	return out
}
