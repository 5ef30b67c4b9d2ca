package domain

import "time"

// EntityType — тип записи в индексе коллекции.
type EntityType int

const (
	EntityTypeVistrail     EntityType = 1
	EntityTypeWorkflow     EntityType = 2
	EntityTypeWorkflowExec EntityType = 3
	EntityTypeThumbnail    EntityType = 4
)

// String возвращает строковое представление EntityType.
func (t EntityType) String() string {
	switch t {
	case EntityTypeVistrail:
		return "vistrail"
	case EntityTypeWorkflow:
		return "workflow"
	case EntityTypeWorkflowExec:
		return "workflow_exec"
	case EntityTypeThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// Valid сообщает, известен ли тип.
func (t EntityType) Valid() bool {
	return t >= EntityTypeVistrail && t <= EntityTypeThumbnail
}

// DefaultWorkspace — workspace, который существует всегда.
const DefaultWorkspace = "Default"

// Entity — узел леса сущностей коллекции.
//
// ID == 0 означает, что сущность ещё не добавлена в коллекцию.
// Parent эксклюзивен: у сущности не более одного родителя.
type Entity struct {
	ID          int64
	Type        EntityType
	Name        string
	User        int64
	ModTime     time.Time
	CreateTime  time.Time
	Size        int64
	Description string
	URL         string

	Parent   *Entity
	Children []*Entity

	// WasUpdated — сущность изменена и будет сохранена при следующем commit.
	WasUpdated bool
}

// NewEntity создаёт сущность без ID.
func NewEntity(t EntityType, name, url string) *Entity {
	now := time.Now().UTC()
	return &Entity{
		Type:       t,
		Name:       name,
		URL:        url,
		CreateTime: now,
		ModTime:    now,
	}
}

// AddChild добавляет дочернюю сущность.
func (e *Entity) AddChild(child *Entity) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

// Root возвращает корень дерева, в котором находится сущность.
func (e *Entity) Root() *Entity {
	root := e
	for root.Parent != nil {
		root = root.Parent
	}
	return root
}

// Walk обходит поддерево в глубину, начиная с самой сущности.
func (e *Entity) Walk(fn func(*Entity)) {
	fn(e)
	for _, child := range e.Children {
		child.Walk(fn)
	}
}

// Record возвращает строку таблицы entity.
func (e *Entity) Record() EntityRecord {
	return EntityRecord{
		ID:          e.ID,
		Type:        e.Type,
		Name:        e.Name,
		User:        e.User,
		ModTime:     e.ModTime,
		CreateTime:  e.CreateTime,
		Size:        e.Size,
		Description: e.Description,
		URL:         e.URL,
	}
}

// EntityRecord — строка таблицы entity без связей.
type EntityRecord struct {
	ID          int64      `json:"id"`
	Type        EntityType `json:"type"`
	Name        string     `json:"name"`
	User        int64      `json:"user"`
	ModTime     time.Time  `json:"mod_time"`
	CreateTime  time.Time  `json:"create_time"`
	Size        int64      `json:"size"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
}

// Entity создаёт сущность из строки таблицы.
func (r EntityRecord) Entity() *Entity {
	return &Entity{
		ID:          r.ID,
		Type:        r.Type,
		Name:        r.Name,
		User:        r.User,
		ModTime:     r.ModTime,
		CreateTime:  r.CreateTime,
		Size:        r.Size,
		Description: r.Description,
		URL:         r.URL,
	}
}
