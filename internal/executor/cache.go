package executor

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/engine"
)

// Cache хранит выходы модулей по сигнатуре.
type Cache interface {
	Get(signature uint64) (map[string]engine.Output, bool)
	Put(signature uint64, outputs map[string]engine.Output)
}

// MemoryCache — in-process реализация Cache. Потокобезопасна.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uint64]map[string]engine.Output
}

// NewMemoryCache создаёт пустой кэш.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[uint64]map[string]engine.Output)}
}

// Get возвращает копию сохранённых выходов.
func (c *MemoryCache) Get(signature uint64) (map[string]engine.Output, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	outputs, ok := c.entries[signature]
	if !ok {
		return nil, false
	}
	return maps.Clone(outputs), true
}

// Put сохраняет выходы модуля.
func (c *MemoryCache) Put(signature uint64, outputs map[string]engine.Output) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[signature] = maps.Clone(outputs)
}

// Len возвращает количество записей.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear удаляет все записи.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// signatures считает сигнатуры модулей в топологическом порядке.
//
// Сигнатура покрывает тип, параметры и входящие соединения вместе
// с сигнатурами producer'ов. tainted — модули, результат которых
// нельзя переиспользовать: сам модуль не кэшируемый или зависит
// от такого модуля.
func signatures(spec *domain.PipelineSpec, dag *engine.DAG, modules map[string]*engine.Module) (sigs map[string]uint64, tainted map[string]bool, err error) {
	sigs = make(map[string]uint64, len(dag.Order))
	tainted = make(map[string]bool, len(dag.Order))

	for _, node := range dag.Order {
		h := xxhash.New()
		_, _ = h.WriteString(node.Def.Type)
		_, _ = h.Write([]byte{0})

		// encoding/json сортирует ключи map, порядок стабилен
		params, err := json.Marshal(node.Def.Params)
		if err != nil {
			return nil, nil, fmt.Errorf("module %s: encode params: %w", node.ID, err)
		}
		_, _ = h.Write(params)

		taint := !modules[node.ID].IsCacheable()
		for _, conn := range spec.Upstream(node.ID) {
			fmt.Fprintf(h, "|%s<-%s:%016x", conn.ToPort, conn.FromPort, sigs[conn.From])
			taint = taint || tainted[conn.From]
		}

		sigs[node.ID] = h.Sum64()
		tainted[node.ID] = taint
	}
	return sigs, tainted, nil
}
