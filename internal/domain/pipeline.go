package domain

// PipelineSpec — описание pipeline: модули и соединения между портами.
//
// Это "программа" для движка. Из неё компилируется engine.Pipeline,
// в котором каждый ModuleDef становится модулем arena.
type PipelineSpec struct {
	// Name — имя pipeline.
	Name string `json:"name,omitempty"`

	// Description — описание назначения pipeline.
	Description string `json:"description,omitempty"`

	// Modules — модули pipeline.
	Modules []ModuleDef `json:"modules"`

	// Connections — соединения выходных портов со входными.
	Connections []ConnectionDef `json:"connections,omitempty"`
}

// ModuleDef — определение модуля в pipeline.
type ModuleDef struct {
	// ID — уникальный идентификатор модуля в рамках pipeline.
	ID string `json:"id"`

	// Type — имя зарегистрированного типа модуля ("Integer", "Calc", ...).
	Type string `json:"type"`

	// Params — значения входных портов, заданные прямо в pipeline.
	// Каждый параметр подаётся на порт через скрытый Constant модуль.
	Params map[string]any `json:"params,omitempty"`
}

// ConnectionDef — соединение From.FromPort → To.ToPort.
type ConnectionDef struct {
	From     string `json:"from"`
	FromPort string `json:"from_port"`
	To       string `json:"to"`
	ToPort   string `json:"to_port"`
}

// Module возвращает определение модуля по ID.
func (s *PipelineSpec) Module(id string) *ModuleDef {
	for i := range s.Modules {
		if s.Modules[i].ID == id {
			return &s.Modules[i]
		}
	}
	return nil
}

// Upstream возвращает соединения, входящие в модуль id, в порядке описания.
func (s *PipelineSpec) Upstream(id string) []ConnectionDef {
	var conns []ConnectionDef
	for _, c := range s.Connections {
		if c.To == id {
			conns = append(conns, c)
		}
	}
	return conns
}
