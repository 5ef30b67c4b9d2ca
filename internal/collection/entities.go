package collection

import (
	"fmt"
	"net/url"

	"github.com/shaiso/Pipeflow/internal/domain"
)

// CreateVistrailEntity строит дерево сущностей vistrail и добавляет его.
//
//	vistrail
//	├── workflow ...
//	│   └── workflow_exec ...
//	└── thumbnail ...
func (c *Collection) CreateVistrailEntity(v *domain.Vistrail) *domain.Entity {
	e := domain.NewEntity(domain.EntityTypeVistrail, v.Name, v.URL)
	e.User = v.User
	e.Description = v.Description
	e.Size = v.Size
	if !v.CreatedAt.IsZero() {
		e.CreateTime = v.CreatedAt
	}
	if !v.ModifiedAt.IsZero() {
		e.ModTime = v.ModifiedAt
	}

	for _, wf := range v.Workflows {
		e.AddChild(workflowEntity(wf, v.URL))
	}
	for _, name := range v.Thumbnails {
		thumb := domain.NewEntity(domain.EntityTypeThumbnail, name, withQuery(v.URL, "thumbnail", name))
		e.AddChild(thumb)
	}

	c.AddEntity(e)
	return e
}

// CreateWorkflowEntity добавляет сущность отдельного workflow.
func (c *Collection) CreateWorkflowEntity(wf domain.Workflow) *domain.Entity {
	e := workflowEntity(wf, "")
	c.AddEntity(e)
	return e
}

func workflowEntity(wf domain.Workflow, vistrailURL string) *domain.Entity {
	e := domain.NewEntity(domain.EntityTypeWorkflow, wf.Name, withQuery(vistrailURL, "workflow", wf.Name))
	e.Description = wf.Description
	if !wf.ModifiedAt.IsZero() {
		e.ModTime = wf.ModifiedAt
	}
	if wf.Pipeline != nil {
		e.Size = int64(len(wf.Pipeline.Modules))
	}

	for i, ex := range wf.Executions {
		name := ex.Name
		if name == "" {
			name = fmt.Sprintf("%s #%d", wf.Name, i+1)
		}
		exec := domain.NewEntity(domain.EntityTypeWorkflowExec, name, "")
		exec.User = ex.User
		if !ex.StartedAt.IsZero() {
			exec.CreateTime = ex.StartedAt
		}
		if !ex.FinishedAt.IsZero() {
			exec.ModTime = ex.FinishedAt
		}
		if ex.Completed {
			exec.Description = "completed"
		} else {
			exec.Description = "incomplete"
		}
		e.AddChild(exec)
	}
	return e
}

// withQuery добавляет к URL vistrail параметр, указывающий на часть vistrail.
func withQuery(base, key, value string) string {
	if base == "" {
		return ""
	}
	return base + "?" + url.Values{key: []string{value}}.Encode()
}
