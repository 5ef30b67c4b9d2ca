package engine

// NoModule — ID освобождённого connector'а.
const NoModule ModuleID = -1

// Connector — ребро producer → consumer.
//
// Connector хранит не ссылку на модуль, а пару (ID producer'а, имя порта),
// поэтому между модулями нет циклов ссылок. Значение всегда читается
// заново через Pipeline.Fetch: connector ничего не кэширует сам.
type Connector struct {
	// Producer — ID модуля-источника в arena.
	Producer ModuleID

	// Port — имя выходного порта producer'а.
	Port string

	// Spec — допустимые типы входного порта. nil — любой тип.
	Spec []Type

	// Type — фактический тип выхода producer'а, заполняется в UpdateUpstream.
	Type Type
}

// NewConnector создаёт connector к выходу producer'а.
func NewConnector(producer ModuleID, port string, spec ...Type) *Connector {
	return &Connector{
		Producer: producer,
		Port:     port,
		Spec:     spec,
	}
}

// Clear освобождает connector.
func (c *Connector) Clear() {
	c.Producer = NoModule
	c.Port = ""
}

// Detached сообщает, что connector уже освобождён.
func (c *Connector) Detached() bool {
	return c.Producer == NoModule
}

// accepts проверяет runtime-тип по спецификации connector'а.
func (c *Connector) accepts(checker TypeChecker, t Type) bool {
	if t == TypeNone {
		return false
	}
	if c.Spec == nil {
		return true
	}
	for _, s := range c.Spec {
		if checker.IsSubtype(t, s) {
			return true
		}
	}
	return false
}
