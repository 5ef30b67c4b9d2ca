package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы индекса коллекции и журнала выполнений.
//
// Порядок детей и членов workspace'а хранится в position.
// entity_id_seq хранит наибольший выданный ID сущности: после удаления
// последней сущности её ID не выдаётся повторно.
const schema = `
CREATE TABLE IF NOT EXISTS entity (
	id          BIGINT PRIMARY KEY,
	type        INTEGER NOT NULL,
	name        TEXT NOT NULL,
	"user"      BIGINT NOT NULL DEFAULT 0,
	mod_time    TIMESTAMPTZ NOT NULL,
	create_time TIMESTAMPTZ NOT NULL,
	size        BIGINT NOT NULL DEFAULT 0,
	description TEXT,
	url         TEXT
);

CREATE TABLE IF NOT EXISTS entity_children (
	parent   BIGINT NOT NULL REFERENCES entity (id) ON DELETE CASCADE,
	child    BIGINT NOT NULL REFERENCES entity (id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	PRIMARY KEY (parent, child)
);

CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS entity_workspace (
	entity    BIGINT NOT NULL REFERENCES entity (id) ON DELETE CASCADE,
	workspace TEXT NOT NULL REFERENCES workspaces (id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	PRIMARY KEY (entity, workspace)
);

INSERT INTO workspaces (id) VALUES ('Default') ON CONFLICT DO NOTHING;

CREATE SEQUENCE IF NOT EXISTS entity_id_seq;

CREATE TABLE IF NOT EXISTS executions (
	id          UUID PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	status      TEXT NOT NULL,
	modules     JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS executions_started_at_idx ON executions (started_at DESC);
`

// EnsureSchema создаёт недостающие таблицы.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
