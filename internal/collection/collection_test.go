package collection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Pipeflow/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordingStore — MemoryStore, запоминающий все Changeset'ы.
type recordingStore struct {
	*MemoryStore
	commits   []*Changeset
	commitErr error
	loadErr   error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (s *recordingStore) Load(ctx context.Context) (*Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.MemoryStore.Load(ctx)
}

func (s *recordingStore) Commit(ctx context.Context, cs *Changeset) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits = append(s.commits, cs)
	return s.MemoryStore.Commit(ctx, cs)
}

func (s *recordingStore) last() *Changeset {
	return s.commits[len(s.commits)-1]
}

func newCollection(t *testing.T, store Store) *Collection {
	t.Helper()
	c, err := New(context.Background(), Config{Store: store, Logger: discard})
	if err != nil {
		t.Fatalf("new collection: %v", err)
	}
	return c
}

func ids(entities []*domain.Entity) []int64 {
	out := make([]int64, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

func chain() (grandparent, parent, child *domain.Entity) {
	grandparent = domain.NewEntity(domain.EntityTypeVistrail, "gp", "file:///gp.vt.json")
	parent = domain.NewEntity(domain.EntityTypeWorkflow, "p", "")
	child = domain.NewEntity(domain.EntityTypeWorkflowExec, "c", "")
	grandparent.AddChild(parent)
	parent.AddChild(child)
	return grandparent, parent, child
}

func TestNew_DefaultWorkspace(t *testing.T) {
	c := newCollection(t, nil)

	if diff := cmp.Diff([]string{domain.DefaultWorkspace}, c.Workspaces()); diff != "" {
		t.Errorf("workspaces mismatch (-want +got):\n%s", diff)
	}
	if c.CurrentWorkspace() != domain.DefaultWorkspace {
		t.Errorf("expected current workspace Default, got %s", c.CurrentWorkspace())
	}
}

func TestNew_StoreFailure(t *testing.T) {
	store := newRecordingStore()
	store.loadErr = errors.New("disk on fire")

	c, err := New(context.Background(), Config{Store: store, Logger: discard})
	if err == nil {
		t.Fatal("expected error")
	}
	if c != nil {
		t.Error("unusable collection must not be returned")
	}
}

func TestAddEntity_AssignsIDsRecursively(t *testing.T) {
	c := newCollection(t, nil)
	gp, p, ch := chain()

	c.AddEntity(gp)

	if diff := cmp.Diff([]int64{1, 2, 3}, []int64{gp.ID, p.ID, ch.ID}); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if ch.Parent != p || p.Parent != gp {
		t.Error("parents must be set")
	}
	for _, e := range []*domain.Entity{gp, p, ch} {
		if !e.WasUpdated {
			t.Errorf("entity %d must be dirty", e.ID)
		}
	}
}

func TestAddEntity_IDsNeverReused(t *testing.T) {
	store := newRecordingStore()
	c := newCollection(t, store)

	a := domain.NewEntity(domain.EntityTypeWorkflow, "a", "")
	b := domain.NewEntity(domain.EntityTypeWorkflow, "b", "")
	c.AddEntity(a)
	c.AddEntity(b)
	c.DeleteEntity(b)

	next := domain.NewEntity(domain.EntityTypeWorkflow, "c", "")
	c.AddEntity(next)
	if next.ID != 3 {
		t.Errorf("expected id 3, got %d", next.ID)
	}

	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// После перезагрузки счётчик восстанавливается из хранилища
	reloaded := newCollection(t, store)
	fresh := domain.NewEntity(domain.EntityTypeWorkflow, "d", "")
	reloaded.AddEntity(fresh)
	if fresh.ID != 4 {
		t.Errorf("expected id 4 after reload, got %d", fresh.ID)
	}
}

func TestAddEntity_DeletedMaxIDNotReusedAfterReload(t *testing.T) {
	ctx := context.Background()
	stores := map[string]func(t *testing.T) func() Store{
		"memory": func(t *testing.T) func() Store {
			store := NewMemoryStore()
			return func() Store { return store }
		},
		"file": func(t *testing.T) func() Store {
			path := filepath.Join(t.TempDir(), "index.json")
			return func() Store { return NewFileStore(path) }
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)

			c := newCollection(t, store())
			a := domain.NewEntity(domain.EntityTypeWorkflow, "a", "")
			b := domain.NewEntity(domain.EntityTypeWorkflow, "b", "")
			c.AddEntity(a)
			c.AddEntity(b)
			if err := c.Commit(ctx); err != nil {
				t.Fatalf("commit: %v", err)
			}

			c.DeleteEntity(b)
			if err := c.Commit(ctx); err != nil {
				t.Fatalf("commit: %v", err)
			}

			reloaded := newCollection(t, store())
			if reloaded.MaxID() != b.ID {
				t.Errorf("expected max id %d after reload, got %d", b.ID, reloaded.MaxID())
			}
			fresh := domain.NewEntity(domain.EntityTypeWorkflow, "c", "")
			reloaded.AddEntity(fresh)
			if fresh.ID != b.ID+1 {
				t.Errorf("expected id %d, got %d (deleted id %d reused)", b.ID+1, fresh.ID, b.ID)
			}
		})
	}
}

func TestDeleteEntity_RemovesSubtree(t *testing.T) {
	store := newRecordingStore()
	c := newCollection(t, store)
	ctx := context.Background()

	gp, p, ch := chain()
	c.AddEntity(gp)
	c.AddToWorkspace(p, "")
	if err := c.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	c.DeleteEntity(p)

	if diff := cmp.Diff([]int64{gp.ID}, ids(c.Entities())); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
	if len(c.Workspace(domain.DefaultWorkspace)) != 0 {
		t.Error("deleted entity must leave every workspace")
	}
	if len(gp.Children) != 0 {
		t.Error("deleted entity must be detached from its parent")
	}

	if err := c.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cs := store.last()
	if diff := cmp.Diff([]int64{p.ID, ch.ID}, cs.Deleted); diff != "" {
		t.Errorf("deleted mismatch (-want +got):\n%s", diff)
	}
	for _, up := range cs.Upserts {
		if up.Record.ID == p.ID || up.Record.ID == ch.ID {
			t.Errorf("deleted entity %d must not be upserted", up.Record.ID)
		}
	}
	if len(cs.Members) != 0 {
		t.Errorf("expected no memberships, got %v", cs.Members)
	}

	reloaded := newCollection(t, store)
	if diff := cmp.Diff([]int64{gp.ID}, ids(reloaded.Entities())); diff != "" {
		t.Errorf("reloaded entities mismatch (-want +got):\n%s", diff)
	}

	// Следующий commit ничего не удаляет повторно
	if err := c.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(store.last().Deleted) != 0 || len(store.last().Upserts) != 0 {
		t.Errorf("expected empty changeset, got %+v", store.last())
	}
}

func TestCommit_PersistsTree(t *testing.T) {
	store := newRecordingStore()
	c := newCollection(t, store)

	gp, p, ch := chain()
	c.AddEntity(gp)
	c.AddToWorkspace(gp, "W1")
	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if gp.WasUpdated || p.WasUpdated || ch.WasUpdated {
		t.Error("commit must clear dirty flags")
	}

	reloaded := newCollection(t, store)
	root, err := reloaded.Entity(gp.ID)
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	if len(root.Children) != 1 || root.Children[0].ID != p.ID {
		t.Fatalf("expected child %d, got %v", p.ID, ids(root.Children))
	}
	if root.Children[0].Children[0].Parent != root.Children[0] {
		t.Error("grandchild parent must be restored")
	}
	if diff := cmp.Diff([]string{"Default", "W1"}, reloaded.Workspaces()); diff != "" {
		t.Errorf("workspaces mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{gp.ID}, ids(reloaded.Workspace("W1"))); diff != "" {
		t.Errorf("W1 members mismatch (-want +got):\n%s", diff)
	}
}

func TestCommit_Listeners(t *testing.T) {
	store := newRecordingStore()
	c := newCollection(t, store)

	var notified int
	c.AddListener(ListenerFunc(func(context.Context) { notified++ }))

	e := domain.NewEntity(domain.EntityTypeWorkflow, "w", "")
	c.AddEntity(e)

	store.commitErr = errors.New("connection reset")
	if err := c.Commit(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}
	if notified != 0 {
		t.Error("listeners must not be notified on failure")
	}
	if !e.WasUpdated {
		t.Error("failed commit must keep the entity dirty")
	}

	store.commitErr = nil
	if err := c.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if notified != 1 {
		t.Errorf("expected 1 notification, got %d", notified)
	}
}

func TestWorkspaces(t *testing.T) {
	c := newCollection(t, nil)
	e := domain.NewEntity(domain.EntityTypeVistrail, "v", "")
	c.AddEntity(e)

	c.AddToWorkspace(e, "")
	c.AddToWorkspace(e, "")
	if got := len(c.Workspace(domain.DefaultWorkspace)); got != 1 {
		t.Errorf("entity must be added once, got %d", got)
	}

	c.SetCurrentWorkspace("Work")
	c.AddToWorkspace(e, "")
	if diff := cmp.Diff([]string{"Default", "Work"}, c.WorkspacesOf(e)); diff != "" {
		t.Errorf("workspaces mismatch (-want +got):\n%s", diff)
	}

	c.DelFromWorkspace(e, "")
	if len(c.Workspace("Work")) != 0 {
		t.Error("entity must be removed from current workspace")
	}
	c.DelFromWorkspace(e, "missing")

	c.DeleteWorkspace("Work")
	if diff := cmp.Diff([]string{"Default"}, c.Workspaces()); diff != "" {
		t.Errorf("workspaces mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 1 {
		t.Error("deleting a workspace must keep its entities")
	}
}

func TestLoad_SkipsUnknownEntityType(t *testing.T) {
	store := NewMemoryStore()
	err := store.Commit(context.Background(), &Changeset{
		Upserts: []EntityUpsert{
			{Record: domain.EntityRecord{ID: 1, Type: domain.EntityTypeVistrail, Name: "ok"}},
			{Record: domain.EntityRecord{ID: 7, Type: domain.EntityType(42), Name: "alien"}},
		},
		Workspaces: []string{domain.DefaultWorkspace},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	c := newCollection(t, store)
	if diff := cmp.Diff([]int64{1}, ids(c.Entities())); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
	if c.MaxID() != 7 {
		t.Errorf("max id must still count skipped rows, got %d", c.MaxID())
	}
}

func TestUpdateVistrail_PreservesWorkspaces(t *testing.T) {
	c := newCollection(t, nil)
	ctx := context.Background()
	url := "file:///tmp/a.vt.json"

	old := c.CreateVistrailEntity(&domain.Vistrail{
		URL:       url,
		Name:      "a",
		Workflows: []domain.Workflow{{Name: "w1"}},
	})
	c.AddToWorkspace(old, "W1")
	oldIDs := make([]int64, 0)
	old.Walk(func(e *domain.Entity) { oldIDs = append(oldIDs, e.ID) })

	// Обновление по URL дочерней сущности поднимается до корня
	workflowURL := old.Children[0].URL
	updated, err := c.UpdateVistrail(ctx, workflowURL, &domain.Vistrail{
		Name:      "a v2",
		Workflows: []domain.Workflow{{Name: "w1"}, {Name: "w2"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.URL != url {
		t.Errorf("expected root url %s, got %s", url, updated.URL)
	}
	if diff := cmp.Diff([]string{"W1"}, c.WorkspacesOf(updated)); diff != "" {
		t.Errorf("workspaces mismatch (-want +got):\n%s", diff)
	}
	if slicesContainsEntity(c.Workspace("W1"), old) {
		t.Error("old entity must leave W1")
	}
	for _, id := range oldIDs {
		if _, err := c.Entity(id); !errors.Is(err, ErrEntityNotFound) {
			t.Errorf("old entity %d must be deleted", id)
		}
	}
	if len(updated.Children) != 2 {
		t.Errorf("expected 2 workflows, got %d", len(updated.Children))
	}
}

func slicesContainsEntity(list []*domain.Entity, e *domain.Entity) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}

func TestUpdateVistrail_InvalidURL(t *testing.T) {
	c := newCollection(t, nil)

	_, err := c.UpdateVistrail(context.Background(), "http://example.com/a", nil)
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestUpdateFromDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("alpha.vt.json", `{"workflows": [{"name": "main", "executions": [{"name": "run 1", "completed": true}]}], "thumbnails": ["a.png"]}`)
	write("beta.vt.json", `{"name": "Beta"}`)
	write("broken.vt.json", `{`)
	write("notes.txt", "ignored")

	c := newCollection(t, nil)
	updated, err := c.UpdateFromDirectory(context.Background(), dir)
	if err == nil {
		t.Error("expected error for broken file")
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 indexed vistrails, got %d", len(updated))
	}

	alpha := updated[0]
	if alpha.Name != "alpha" || alpha.URL != FileURL(filepath.Join(dir, "alpha.vt.json")) {
		t.Errorf("unexpected alpha entity %+v", alpha.Record())
	}
	if alpha.Size == 0 {
		t.Error("size must be taken from the file")
	}
	// workflow + thumbnail, у workflow — одно выполнение
	if len(alpha.Children) != 2 || len(alpha.Children[0].Children) != 1 {
		t.Errorf("unexpected tree for alpha")
	}
	if updated[1].Name != "Beta" {
		t.Errorf("expected Beta, got %s", updated[1].Name)
	}

	// Повторный проход заменяет сущности, а не дублирует их
	before := c.Len()
	if _, err := c.UpdateFromDirectory(context.Background(), dir); err == nil {
		t.Error("expected error for broken file")
	}
	if c.Len() != before {
		t.Errorf("expected %d entities after refresh, got %d", before, c.Len())
	}
}

func TestWriterLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.lock")
	ctx := context.Background()

	first, err := AcquireWriterLock(ctx, path, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := AcquireWriterLock(ctx, path, 200*time.Millisecond); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	second, err := AcquireWriterLock(ctx, path, time.Second)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = second.Release()
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "index.json")
	ctx := context.Background()

	c := newCollection(t, NewFileStore(path))
	gp, p, _ := chain()
	c.AddEntity(gp)
	c.AddToWorkspace(p, "W1")
	if err := c.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded := newCollection(t, NewFileStore(path))
	if diff := cmp.Diff([]int64{1, 2, 3}, ids(reloaded.Entities())); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{p.ID}, ids(reloaded.Workspace("W1"))); diff != "" {
		t.Errorf("W1 members mismatch (-want +got):\n%s", diff)
	}
	root, _ := reloaded.Entity(gp.ID)
	if !root.ModTime.Equal(gp.ModTime) {
		t.Errorf("mod time must survive the round trip")
	}

	if err := reloaded.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	empty := newCollection(t, NewFileStore(path))
	if empty.Len() != 0 || len(empty.Workspaces()) != 0 {
		t.Errorf("expected empty index after reset, got %d entities", empty.Len())
	}
}
