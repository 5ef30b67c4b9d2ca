package modules

import (
	"fmt"
	"slices"
	"sync"

	"github.com/shaiso/Pipeflow/internal/engine"
)

// PortSpec — описание порта типа модуля.
type PortSpec struct {
	// Name — имя порта.
	Name string

	// Types — допустимые типы значения. Пусто — любой тип.
	Types []engine.Type
}

// Descriptor — зарегистрированный тип модуля.
type Descriptor struct {
	// Name — имя типа, одновременно имя типа значений на порту "self".
	Name engine.Type

	// Parent — родительский тип. Порты и отношение подтипов наследуются.
	Parent engine.Type

	// Abstract — тип нельзя создать напрямую.
	Abstract bool

	// New создаёт логику модуля.
	New func() engine.Computer

	// Convert приводит сырое значение к типу (только для Constant типов).
	Convert func(v any) (any, error)

	Inputs  []PortSpec
	Outputs []PortSpec
}

// Registry — реестр типов модулей.
//
// Реестр же служит коллаборатором типов для движка: отношение подтипов
// задаётся цепочкой Parent. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	types map[engine.Type]*Descriptor
}

// NewRegistry создаёт реестр с корневыми типами Module и Variant.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[engine.Type]*Descriptor)}
	r.types[TypeModule] = &Descriptor{
		Name:     TypeModule,
		Abstract: true,
		New:      func() engine.Computer { return abstractModule{} },
	}
	r.types[TypeVariant] = &Descriptor{
		Name:     TypeVariant,
		Parent:   TypeModule,
		Abstract: true,
		New:      func() engine.Computer { return abstractModule{} },
	}
	return r
}

// DefaultRegistry создаёт реестр со всеми стандартными типами.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerConstants(r)
	registerBasic(r)
	return r
}

// Register регистрирует тип. Существующий тип с тем же именем перезаписывается.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.Name != TypeModule {
		if d.Parent == "" {
			d.Parent = TypeModule
		}
		if _, ok := r.types[d.Parent]; !ok {
			return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, d.Parent, d.Name)
		}
	}
	r.types[d.Name] = d
	return nil
}

// MustRegister регистрирует тип и паникует при ошибке.
// Используется для встроенных типов.
func (r *Registry) MustRegister(d *Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get возвращает описание типа.
func (r *Registry) Get(typeName engine.Type) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.types[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, typeName)
	}
	return d, nil
}

// Has проверяет, зарегистрирован ли тип.
func (r *Registry) Has(typeName engine.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[typeName]
	return ok
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []engine.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]engine.Type, 0, len(r.types))
	for t := range r.types {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Count возвращает количество зарегистрированных типов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Unregister удаляет тип из реестра.
func (r *Registry) Unregister(typeName engine.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.types, typeName)
}

// Instantiate создаёт модуль типа в pipeline.
func (r *Registry) Instantiate(p *engine.Pipeline, typeName engine.Type, label string) (*engine.Module, error) {
	d, err := r.Get(typeName)
	if err != nil {
		return nil, err
	}
	if d.Abstract {
		return nil, fmt.Errorf("%w: %s", engine.ErrAbstractModuleType, typeName)
	}
	var impl engine.Computer
	if d.New != nil {
		impl = d.New()
	}
	return p.Add(d.Name, label, impl), nil
}

// --- engine.TypeChecker ---

// IsSubtype проходит по цепочке Parent. Variant принимает любой тип.
func (r *Registry) IsSubtype(sub, super engine.Type) bool {
	if super == TypeVariant {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for t := sub; t != ""; {
		if t == super {
			return true
		}
		d, ok := r.types[t]
		if !ok {
			return false
		}
		t = d.Parent
	}
	return false
}

// TypeOf выводит тип значения.
func (r *Registry) TypeOf(v any) engine.Type {
	return engine.InferType(v)
}

// --- engine.Catalog ---

// HasType реализует engine.Catalog.
func (r *Registry) HasType(typeName string) bool {
	return r.Has(engine.Type(typeName))
}

// IsAbstract реализует engine.Catalog.
func (r *Registry) IsAbstract(typeName string) bool {
	d, err := r.Get(engine.Type(typeName))
	return err == nil && d.Abstract
}

// HasInput реализует engine.Catalog.
func (r *Registry) HasInput(typeName, port string) bool {
	_, ok := r.InputSpec(engine.Type(typeName), port)
	return ok
}

// HasOutput реализует engine.Catalog.
func (r *Registry) HasOutput(typeName, port string) bool {
	if port == engine.SelfPort {
		return r.Has(engine.Type(typeName))
	}
	_, ok := r.OutputSpec(engine.Type(typeName), port)
	return ok
}

// InputSpec ищет входной порт в типе и его предках.
func (r *Registry) InputSpec(typeName engine.Type, port string) (PortSpec, bool) {
	return r.findPort(typeName, port, func(d *Descriptor) []PortSpec { return d.Inputs })
}

// OutputSpec ищет выходной порт в типе и его предках.
func (r *Registry) OutputSpec(typeName engine.Type, port string) (PortSpec, bool) {
	return r.findPort(typeName, port, func(d *Descriptor) []PortSpec { return d.Outputs })
}

func (r *Registry) findPort(typeName engine.Type, port string, ports func(*Descriptor) []PortSpec) (PortSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for t := typeName; t != ""; {
		d, ok := r.types[t]
		if !ok {
			break
		}
		for _, p := range ports(d) {
			if p.Name == port {
				return p, true
			}
		}
		t = d.Parent
	}
	return PortSpec{}, false
}

// Coerce приводит значение параметра к первому подходящему типу порта.
//
// Возвращает значение и его тип. Если порт принимает любой тип,
// тип выводится из значения.
func (r *Registry) Coerce(v any, accepted []engine.Type) (any, engine.Type, error) {
	inferred := r.TypeOf(v)
	if len(accepted) == 0 {
		return v, inferred, nil
	}
	for _, t := range accepted {
		if r.IsSubtype(inferred, t) {
			return v, inferred, nil
		}
	}
	for _, t := range accepted {
		d, err := r.Get(t)
		if err != nil || d.Convert == nil {
			continue
		}
		if converted, err := d.Convert(v); err == nil {
			return converted, t, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %v (%s) to %v", ErrInvalidValue, v, inferred, accepted)
}
