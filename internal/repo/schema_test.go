package repo

import (
	"strings"
	"testing"
)

func TestSchema_CollectionColumns(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
	}{
		{"entity user column", `"user"      BIGINT`},
		{"workspace key", "id TEXT PRIMARY KEY"},
		{"membership entity", "entity    BIGINT NOT NULL REFERENCES entity (id)"},
		{"membership workspace", "workspace TEXT NOT NULL REFERENCES workspaces (id)"},
		{"default workspace", "INSERT INTO workspaces (id) VALUES ('Default')"},
		{"id high-water mark", "CREATE SEQUENCE IF NOT EXISTS entity_id_seq"},
	}
	for _, tt := range tests {
		if !strings.Contains(schema, tt.ddl) {
			t.Errorf("%s: schema has no %q", tt.name, tt.ddl)
		}
	}
	for _, old := range []string{"user_id", "entity_id BIGINT", "workspaces (name)"} {
		if strings.Contains(schema, old) {
			t.Errorf("schema still uses %q", old)
		}
	}
}
