package engine

// PortState — состояние входного порта.
type PortState int

const (
	// Unconnected — у порта нет connector'ов, порт считается отсутствующим.
	Unconnected PortState = iota

	// Single — ровно один connector.
	Single

	// Multi — несколько connector'ов (агрегация списков, fallback на adaptor).
	Multi
)

func (s PortState) String() string {
	switch s {
	case Single:
		return "single"
	case Multi:
		return "multi"
	default:
		return "unconnected"
	}
}

// InputPort — входной порт модуля со списком connector'ов.
type InputPort struct {
	Name       string
	Connectors []*Connector
}

// State возвращает состояние порта.
func (p *InputPort) State() PortState {
	if p == nil {
		return Unconnected
	}
	switch len(p.Connectors) {
	case 0:
		return Unconnected
	case 1:
		return Single
	default:
		return Multi
	}
}

// remove удаляет connector из порта. Возвращает true, если порт опустел.
func (p *InputPort) remove(c *Connector) bool {
	for i, existing := range p.Connectors {
		if existing == c {
			p.Connectors = append(p.Connectors[:i], p.Connectors[i+1:]...)
			break
		}
	}
	return len(p.Connectors) == 0
}

// Output — значение выходного порта вместе с его типом.
type Output struct {
	Value any
	Type  Type
}
