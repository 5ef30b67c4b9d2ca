package engine

import (
	"fmt"

	"github.com/shaiso/Pipeflow/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Def — определение модуля из PipelineSpec.
	Def *domain.ModuleDef

	// ID — идентификатор узла (совпадает с Def.ID).
	ID string

	// InDegree — количество входящих рёбер (различных producer'ов).
	InDegree int

	// DependsOn — узлы, выходы которых потребляет этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые потребляют выходы этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф модулей pipeline.
type DAG struct {
	// Nodes — все узлы графа (moduleID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без входящих соединений.
	RootNodes []*Node

	// SinkNodes — узлы, выходы которых никто не потребляет.
	SinkNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node

	// ids — порядок модулей в spec, чтобы обход был детерминированным.
	ids []string
}

// BuildDAG строит DAG из PipelineSpec.
//
// Module.Update замечает цикл только при повторном входе,
// поэтому циклы отсекаются здесь, до компиляции pipeline.
func BuildDAG(spec *domain.PipelineSpec) (*DAG, error) {
	if spec == nil || len(spec.Modules) == 0 {
		return nil, ErrEmptyModules
	}

	dag := &DAG{
		Nodes: make(map[string]*Node, len(spec.Modules)),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Modules {
		def := &spec.Modules[i]
		if _, exists := dag.Nodes[def.ID]; exists {
			return nil, NewValidationError(def.ID, "id",
				fmt.Sprintf("duplicate module ID: %s", def.ID), ErrDuplicateModuleID)
		}
		dag.Nodes[def.ID] = &Node{Def: def, ID: def.ID}
		dag.ids = append(dag.ids, def.ID)
	}

	// Второй проход: связываем узлы по соединениям
	for _, conn := range spec.Connections {
		if err := dag.linkConnection(conn); err != nil {
			return nil, err
		}
	}

	dag.findRootNodes()
	dag.findSinkNodes()

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// linkConnection добавляет ребро для соединения.
func (d *DAG) linkConnection(conn domain.ConnectionDef) error {
	from, ok := d.Nodes[conn.From]
	if !ok {
		return NewValidationError(conn.To, "connections",
			fmt.Sprintf("connected to unknown module: %s", conn.From), ErrMissingDependency)
	}
	to, ok := d.Nodes[conn.To]
	if !ok {
		return NewValidationError(conn.From, "connections",
			fmt.Sprintf("connected to unknown module: %s", conn.To), ErrMissingDependency)
	}
	if from == to {
		return NewValidationError(conn.To, "connections",
			"module is connected to itself", ErrSelfDependency)
	}
	d.addEdge(from, to)
	return nil
}

// addEdge добавляет ребро между узлами.
// Несколько соединений между одной парой модулей дают одно ребро.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, id := range d.ids {
		if node := d.Nodes[id]; node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// findSinkNodes находит узлы без исходящих рёбер.
func (d *DAG) findSinkNodes() {
	d.SinkNodes = make([]*Node, 0)
	for _, id := range d.ids {
		if node := d.Nodes[id]; len(node.Dependents) == 0 {
			d.SinkNodes = append(d.SinkNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetNode возвращает узел по ID.
func (d *DAG) GetNode(id string) *Node {
	return d.Nodes[id]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// Downstream возвращает все узлы, транзитивно зависящие от id.
func (d *DAG) Downstream(id string) []*Node {
	start, ok := d.Nodes[id]
	if !ok {
		return nil
	}
	seen := map[string]bool{id: true}
	var out []*Node
	stack := append([]*Node(nil), start.Dependents...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		out = append(out, node)
		stack = append(stack, node.Dependents...)
	}
	return out
}

// IsComplete проверяет, все ли узлы завершены.
func (d *DAG) IsComplete(completed map[string]bool) bool {
	for id := range d.Nodes {
		if !completed[id] {
			return false
		}
	}
	return true
}
