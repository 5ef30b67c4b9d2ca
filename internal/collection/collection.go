package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/telemetry"
)

// Listener получает уведомление после успешного Commit.
type Listener interface {
	Updated(ctx context.Context)
}

// ListenerFunc позволяет использовать функцию как Listener.
type ListenerFunc func(ctx context.Context)

// Updated реализует Listener.
func (f ListenerFunc) Updated(ctx context.Context) { f(ctx) }

// Collection — индекс сущностей: лес Entity в памяти, отражающий Store,
// и именованные workspace'ы.
//
// Изменения копятся в памяти и попадают в Store только при Commit.
// Collection рассчитана на одного писателя и не потокобезопасна.
type Collection struct {
	store  Store
	loader Loader
	logger *slog.Logger

	entities   map[int64]*domain.Entity
	deleted    map[int64]*domain.Entity
	workspaces map[string][]*domain.Entity
	current    string
	listeners  []Listener

	// maxID — последний выданный ID. Не уменьшается при удалении.
	maxID int64
}

// Config — конфигурация Collection.
type Config struct {
	// Store — хранилище индекса (default: NewMemoryStore()).
	Store Store

	// Loader — загрузчик vistrail (default: NewFileLoader()).
	Loader Loader

	Logger *slog.Logger
}

// New создаёт Collection и загружает индекс из Store.
//
// Ошибка Store пишется в лог на уровне error и возвращается:
// без загруженного индекса Collection использовать нельзя.
func New(ctx context.Context, cfg Config) (*Collection, error) {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	loader := cfg.Loader
	if loader == nil {
		loader = NewFileLoader()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collection{
		store:   store,
		loader:  loader,
		logger:  logger,
		current: domain.DefaultWorkspace,
	}
	c.resetMemory()

	if err := c.Load(ctx); err != nil {
		logger.Error("could not load collection index", "error", err)
		return nil, err
	}
	return c, nil
}

func (c *Collection) resetMemory() {
	c.entities = make(map[int64]*domain.Entity)
	c.deleted = make(map[int64]*domain.Entity)
	c.workspaces = make(map[string][]*domain.Entity)
	c.maxID = 0
}

// Load перечитывает индекс из Store, отбрасывая несохранённые изменения.
func (c *Collection) Load(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load collection index: %w", err)
	}
	c.resetMemory()

	// Удалённые сущности не возвращают свои ID: счётчик берётся из
	// хранилища, а не только из уцелевших строк.
	c.maxID = snap.MaxID
	for _, rec := range snap.Entities {
		c.maxID = max(c.maxID, rec.ID)
		if !rec.Type.Valid() {
			c.logger.Error("cannot find entity type", "entity_id", rec.ID, "type", int(rec.Type))
			continue
		}
		c.entities[rec.ID] = rec.Entity()
	}

	for _, link := range snap.Children {
		parent, ok := c.entities[link.Parent]
		if !ok {
			continue
		}
		child, ok := c.entities[link.Child]
		if !ok {
			continue
		}
		parent.AddChild(child)
	}

	for _, ws := range snap.Workspaces {
		c.workspaces[ws] = nil
	}
	for _, m := range snap.Members {
		e, ok := c.entities[m.Entity]
		if !ok {
			continue
		}
		c.workspaces[m.Workspace] = append(c.workspaces[m.Workspace], e)
	}

	c.logger.Debug("collection index loaded",
		"entities", len(c.entities),
		"workspaces", len(c.workspaces),
	)
	return nil
}

// AddListener регистрирует получателя уведомлений о Commit.
func (c *Collection) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// --- Сущности ---

// Entity возвращает сущность по ID.
func (c *Collection) Entity(id int64) (*domain.Entity, error) {
	e, ok := c.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	return e, nil
}

// Entities возвращает все сущности, упорядоченные по ID.
func (c *Collection) Entities() []*domain.Entity {
	ids := slices.Sorted(maps.Keys(c.entities))
	out := make([]*domain.Entity, len(ids))
	for i, id := range ids {
		out[i] = c.entities[id]
	}
	return out
}

// Len возвращает количество сущностей в памяти.
func (c *Collection) Len() int { return len(c.entities) }

// MaxID возвращает последний выданный ID.
func (c *Collection) MaxID() int64 { return c.maxID }

// AddEntity добавляет сущность и всё её поддерево.
//
// Сущность без ID получает maxID+1. Все добавленные сущности
// помечаются изменёнными, у детей выставляется Parent.
func (c *Collection) AddEntity(e *domain.Entity) {
	if e.ID == 0 {
		c.maxID++
		e.ID = c.maxID
	} else {
		c.maxID = max(c.maxID, e.ID)
	}
	e.WasUpdated = true
	c.entities[e.ID] = e
	for _, child := range e.Children {
		child.Parent = e
		c.AddEntity(child)
	}
}

// DeleteEntity удаляет сущность и всё её поддерево из памяти.
//
// Удалённые сущности ждут Commit в списке на удаление и убираются
// из всех workspace'ов. Если у сущности есть родитель, она убирается
// из его детей, а родитель помечается изменённым.
func (c *Collection) DeleteEntity(e *domain.Entity) {
	if parent := e.Parent; parent != nil {
		parent.Children = slices.DeleteFunc(parent.Children, func(ch *domain.Entity) bool {
			return ch == e
		})
		parent.WasUpdated = true
		e.Parent = nil
	}
	c.deleteSubtree(e)
}

func (c *Collection) deleteSubtree(e *domain.Entity) {
	c.deleted[e.ID] = e
	delete(c.entities, e.ID)
	for ws, members := range c.workspaces {
		c.workspaces[ws] = slices.DeleteFunc(members, func(m *domain.Entity) bool {
			return m == e
		})
	}
	for _, child := range e.Children {
		c.deleteSubtree(child)
	}
}

// FromURL возвращает сущность, привязанную к url.
// Если таких несколько, возвращается сущность с меньшим ID.
func (c *Collection) FromURL(url string) (*domain.Entity, bool) {
	for _, e := range c.Entities() {
		if e.URL == url {
			return e, true
		}
	}
	return nil, false
}

// URLExists сообщает, что загрузчик может открыть url.
func (c *Collection) URLExists(url string) bool {
	return c.loader.Valid(url)
}

// --- Сохранение ---

// SaveEntities сохраняет изменения в Store.
//
// Порядок: удаления, upsert изменённых сущностей, полная перезапись
// workspace'ов. После успеха список на удаление очищается, а флаги
// WasUpdated сбрасываются. При ошибке состояние в памяти не меняется.
func (c *Collection) SaveEntities(ctx context.Context) error {
	cs := c.changeset()
	if err := c.store.Commit(ctx, cs); err != nil {
		telemetry.IndexCommits.WithLabelValues("error").Inc()
		c.logger.Error("could not save collection index", "error", err)
		return fmt.Errorf("save collection index: %w", err)
	}
	telemetry.IndexCommits.WithLabelValues("ok").Inc()

	clear(c.deleted)
	for _, up := range cs.Upserts {
		if e, ok := c.entities[up.Record.ID]; ok {
			e.WasUpdated = false
		}
	}
	c.logger.Debug("collection index saved",
		"deleted", len(cs.Deleted),
		"upserted", len(cs.Upserts),
		"workspaces", len(cs.Workspaces),
	)
	return nil
}

// Commit сохраняет изменения и уведомляет Listener'ов.
func (c *Collection) Commit(ctx context.Context) error {
	if err := c.SaveEntities(ctx); err != nil {
		return err
	}
	for _, l := range c.listeners {
		l.Updated(ctx)
	}
	return nil
}

func (c *Collection) changeset() *Changeset {
	cs := &Changeset{
		MaxID:   c.maxID,
		Deleted: slices.Sorted(maps.Keys(c.deleted)),
	}

	for _, e := range c.Entities() {
		if !e.WasUpdated {
			continue
		}
		up := EntityUpsert{Record: e.Record(), Children: make([]int64, 0, len(e.Children))}
		for _, child := range e.Children {
			up.Children = append(up.Children, child.ID)
		}
		cs.Upserts = append(cs.Upserts, up)
	}

	cs.Workspaces = c.Workspaces()
	for _, ws := range cs.Workspaces {
		for _, e := range c.workspaces[ws] {
			cs.Members = append(cs.Members, Membership{Entity: e.ID, Workspace: ws})
		}
	}
	return cs
}

// Reset очищает Store и индекс в памяти.
func (c *Collection) Reset(ctx context.Context) error {
	if err := c.store.Reset(ctx); err != nil {
		c.logger.Error("could not reset collection index", "error", err)
		return fmt.Errorf("reset collection index: %w", err)
	}
	c.resetMemory()
	return nil
}

// --- Workspace'ы ---

// Workspaces возвращает отсортированные имена workspace'ов.
func (c *Collection) Workspaces() []string {
	return slices.Sorted(maps.Keys(c.workspaces))
}

// Workspace возвращает сущности workspace'а в порядке добавления.
func (c *Collection) Workspace(name string) []*domain.Entity {
	return slices.Clone(c.workspaces[name])
}

// WorkspacesOf возвращает workspace'ы, в которые входит сущность.
func (c *Collection) WorkspacesOf(e *domain.Entity) []string {
	var out []string
	for _, ws := range c.Workspaces() {
		if slices.Contains(c.workspaces[ws], e) {
			out = append(out, ws)
		}
	}
	return out
}

// CurrentWorkspace возвращает текущий workspace.
func (c *Collection) CurrentWorkspace() string { return c.current }

// SetCurrentWorkspace делает workspace текущим, создавая его при необходимости.
func (c *Collection) SetCurrentWorkspace(name string) {
	c.AddWorkspace(name)
	c.current = name
}

// AddWorkspace создаёт пустой workspace, если его ещё нет.
func (c *Collection) AddWorkspace(name string) {
	if _, ok := c.workspaces[name]; !ok {
		c.workspaces[name] = nil
	}
}

// AddToWorkspace добавляет сущность в workspace ("" — текущий).
func (c *Collection) AddToWorkspace(e *domain.Entity, workspace string) {
	if workspace == "" {
		workspace = c.current
	}
	c.AddWorkspace(workspace)
	if !slices.Contains(c.workspaces[workspace], e) {
		c.workspaces[workspace] = append(c.workspaces[workspace], e)
	}
}

// DelFromWorkspace убирает сущность из workspace ("" — текущий).
func (c *Collection) DelFromWorkspace(e *domain.Entity, workspace string) {
	if workspace == "" {
		workspace = c.current
	}
	members, ok := c.workspaces[workspace]
	if !ok {
		return
	}
	c.workspaces[workspace] = slices.DeleteFunc(members, func(m *domain.Entity) bool {
		return m == e
	})
}

// DeleteWorkspace удаляет workspace. Сами сущности остаются в индексе.
func (c *Collection) DeleteWorkspace(name string) {
	delete(c.workspaces, name)
}

// --- Vistrail ---

// UpdateVistrail перестраивает сущность vistrail по url.
//
// Если url уже в индексе, берётся корень его дерева: запоминаются
// workspace'ы корня, поддерево удаляется. Затем сущность создаётся
// заново из replacement (или из загрузчика, если replacement == nil)
// и возвращается в те же workspace'ы.
func (c *Collection) UpdateVistrail(ctx context.Context, url string, replacement *domain.Vistrail) (*domain.Entity, error) {
	var workspaces []string
	if existing, ok := c.FromURL(url); ok {
		root := existing.Root()
		url = root.URL
		workspaces = c.WorkspacesOf(root)
		for _, ws := range workspaces {
			c.DelFromWorkspace(root, ws)
		}
		c.DeleteEntity(root)
	}

	v := replacement
	if v == nil {
		if !c.loader.Valid(url) {
			c.logger.Error("vistrail locator is not valid", "url", url)
			return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
		}
		loaded, err := c.loader.Load(ctx, url)
		if err != nil {
			return nil, err
		}
		v = loaded
	}
	if v.URL == "" {
		v.URL = url
	}

	entity := c.CreateVistrailEntity(v)
	for _, ws := range workspaces {
		c.AddToWorkspace(entity, ws)
	}
	return entity, nil
}

// UpdateFromDirectory обновляет все vistrail каталога.
// Ошибки отдельных файлов не останавливают обход и возвращаются вместе.
func (c *Collection) UpdateFromDirectory(ctx context.Context, dir string) ([]*domain.Entity, error) {
	urls, err := c.loader.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	var (
		updated []*domain.Entity
		errs    []error
	)
	for _, url := range urls {
		e, err := c.UpdateVistrail(ctx, url, nil)
		if err != nil {
			c.logger.Warn("failed to index vistrail", "url", url, "error", err)
			errs = append(errs, err)
			continue
		}
		updated = append(updated, e)
	}
	return updated, errors.Join(errs...)
}
