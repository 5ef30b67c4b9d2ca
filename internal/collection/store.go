package collection

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/shaiso/Pipeflow/internal/domain"
)

// ChildLink — строка таблицы entity_children.
type ChildLink struct {
	Parent int64 `json:"parent"`
	Child  int64 `json:"child"`
}

// Membership — строка таблицы entity_workspace.
type Membership struct {
	Entity    int64  `json:"entity"`
	Workspace string `json:"workspace"`
}

// Snapshot — всё содержимое хранилища индекса.
//
// Children упорядочены по родителю, внутри родителя — в порядке детей.
// MaxID — наибольший выданный ID, включая уже удалённые сущности.
type Snapshot struct {
	MaxID      int64                 `json:"max_id"`
	Entities   []domain.EntityRecord `json:"entities"`
	Children   []ChildLink           `json:"children"`
	Workspaces []string              `json:"workspaces"`
	Members    []Membership          `json:"members"`
}

// EntityUpsert — сущность для insert-or-replace вместе со списком детей.
type EntityUpsert struct {
	Record   domain.EntityRecord
	Children []int64
}

// Changeset — изменения одного commit.
//
// Хранилище применяет их в порядке: удаления, upsert'ы изменённых
// сущностей (с перезаписью их строк entity_children), затем полная
// перезапись workspaces и entity_workspace.
//
// MaxID хранилище запоминает как верхнюю границу выданных ID и никогда
// не уменьшает.
type Changeset struct {
	MaxID      int64
	Deleted    []int64
	Upserts    []EntityUpsert
	Workspaces []string
	Members    []Membership
}

// Store — персистентное хранилище индекса коллекции.
//
// Реализации: repo.EntityRepo (PostgreSQL), FileStore и MemoryStore.
type Store interface {
	// Load читает всё содержимое индекса.
	Load(ctx context.Context) (*Snapshot, error)

	// Commit атомарно применяет изменения.
	Commit(ctx context.Context, cs *Changeset) error

	// Reset удаляет все строки всех таблиц.
	Reset(ctx context.Context) error
}

// MemoryStore — Store в памяти процесса.
//
// Новый MemoryStore содержит workspace Default, как и свежая схема БД.
type MemoryStore struct {
	mu         sync.Mutex
	maxID      int64
	entities   map[int64]domain.EntityRecord
	children   []ChildLink
	workspaces []string
	members    []Membership
}

// NewMemoryStore создаёт хранилище с workspace Default.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:   make(map[int64]domain.EntityRecord),
		workspaces: []string{domain.DefaultWorkspace},
	}
}

// Load реализует Store.
func (s *MemoryStore) Load(_ context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		MaxID:      s.maxID,
		Entities:   make([]domain.EntityRecord, 0, len(s.entities)),
		Children:   slices.Clone(s.children),
		Workspaces: slices.Clone(s.workspaces),
		Members:    slices.Clone(s.members),
	}
	for _, rec := range s.entities {
		snap.Entities = append(snap.Entities, rec)
	}
	slices.SortFunc(snap.Entities, func(a, b domain.EntityRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return snap, nil
}

// Commit реализует Store.
func (s *MemoryStore) Commit(_ context.Context, cs *Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxID = max(s.maxID, cs.MaxID)
	for _, id := range cs.Deleted {
		delete(s.entities, id)
		s.children = slices.DeleteFunc(s.children, func(l ChildLink) bool {
			return l.Parent == id || l.Child == id
		})
	}

	for _, up := range cs.Upserts {
		id := up.Record.ID
		s.entities[id] = up.Record
		s.children = slices.DeleteFunc(s.children, func(l ChildLink) bool {
			return l.Parent == id
		})
		for _, child := range up.Children {
			s.children = append(s.children, ChildLink{Parent: id, Child: child})
		}
	}

	s.workspaces = slices.Clone(cs.Workspaces)
	s.members = slices.Clone(cs.Members)
	return nil
}

// Reset реализует Store.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.entities)
	s.maxID = 0
	s.children = nil
	s.workspaces = nil
	s.members = nil
	return nil
}

// restore заменяет содержимое хранилища снимком.
func (s *MemoryStore) restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxID = snap.MaxID
	s.entities = make(map[int64]domain.EntityRecord, len(snap.Entities))
	for _, rec := range snap.Entities {
		s.entities[rec.ID] = rec
		s.maxID = max(s.maxID, rec.ID)
	}
	s.children = slices.Clone(snap.Children)
	s.workspaces = slices.Clone(snap.Workspaces)
	s.members = slices.Clone(snap.Members)
}
