package domain

import "time"

// Vistrail — содержимое источника, которое индексирует коллекция.
//
// Коллекции не важен формат источника: загрузчик отдаёт только
// метаданные, из которых строится дерево сущностей.
type Vistrail struct {
	URL         string    `json:"url,omitempty"`
	Name        string    `json:"name"`
	User        int64     `json:"user,omitempty"`
	Description string    `json:"description,omitempty"`
	Size        int64     `json:"size,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	ModifiedAt  time.Time `json:"modified_at,omitempty"`

	// Workflows — именованные версии pipeline внутри vistrail.
	Workflows []Workflow `json:"workflows,omitempty"`

	// Thumbnails — имена файлов превью.
	Thumbnails []string `json:"thumbnails,omitempty"`
}

// Workflow — именованный pipeline внутри vistrail.
type Workflow struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Pipeline    *PipelineSpec `json:"pipeline,omitempty"`
	ModifiedAt  time.Time     `json:"modified_at,omitempty"`

	// Executions — журнал выполнений этого workflow.
	Executions []WorkflowExec `json:"executions,omitempty"`
}

// WorkflowExec — запись о выполнении workflow.
type WorkflowExec struct {
	Name       string    `json:"name"`
	User       int64     `json:"user,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Completed  bool      `json:"completed"`
}
