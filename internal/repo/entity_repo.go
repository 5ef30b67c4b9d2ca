package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Pipeflow/internal/collection"
	"github.com/shaiso/Pipeflow/internal/domain"
)

// EntityRepo — хранилище индекса коллекции в PostgreSQL.
// Реализует collection.Store.
type EntityRepo struct {
	pool *pgxpool.Pool
}

// NewEntityRepo создаёт новый EntityRepo.
func NewEntityRepo(pool *pgxpool.Pool) *EntityRepo {
	return &EntityRepo{pool: pool}
}

var _ collection.Store = (*EntityRepo)(nil)

// Load читает все таблицы индекса.
func (r *EntityRepo) Load(ctx context.Context) (*collection.Snapshot, error) {
	snap := &collection.Snapshot{}

	// До первого setval is_called = false: ни один ID ещё не выдан
	err := r.pool.QueryRow(ctx, `
		SELECT CASE WHEN is_called THEN last_value ELSE 0 END
		FROM entity_id_seq
	`).Scan(&snap.MaxID)
	if err != nil {
		return nil, fmt.Errorf("read entity id counter: %w", err)
	}

	entities, err := r.loadEntities(ctx)
	if err != nil {
		return nil, err
	}
	snap.Entities = entities

	rows, err := r.pool.Query(ctx, `
		SELECT parent, child
		FROM entity_children
		ORDER BY parent, position
	`)
	if err != nil {
		return nil, fmt.Errorf("list entity children: %w", err)
	}
	snap.Children, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (collection.ChildLink, error) {
		var l collection.ChildLink
		err := row.Scan(&l.Parent, &l.Child)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan entity children: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	snap.Workspaces, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan workspaces: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT entity, workspace
		FROM entity_workspace
		ORDER BY workspace, position
	`)
	if err != nil {
		return nil, fmt.Errorf("list entity workspaces: %w", err)
	}
	snap.Members, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (collection.Membership, error) {
		var m collection.Membership
		err := row.Scan(&m.Entity, &m.Workspace)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan entity workspaces: %w", err)
	}

	return snap, nil
}

func (r *EntityRepo) loadEntities(ctx context.Context) ([]domain.EntityRecord, error) {
	query := `
		SELECT id, type, name, "user", mod_time, create_time, size, description, url
		FROM entity
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var records []domain.EntityRecord
	for rows.Next() {
		var (
			rec         domain.EntityRecord
			typ         int32
			description *string
			url         *string
		)
		if err := rows.Scan(
			&rec.ID,
			&typ,
			&rec.Name,
			&rec.User,
			&rec.ModTime,
			&rec.CreateTime,
			&rec.Size,
			&description,
			&url,
		); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		rec.Type = domain.EntityType(typ)
		if description != nil {
			rec.Description = *description
		}
		if url != nil {
			rec.URL = *url
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Commit применяет изменения в одной транзакции.
func (r *EntityRepo) Commit(ctx context.Context, cs *collection.Changeset) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if cs.MaxID > 0 {
		_, err := tx.Exec(ctx, `
			SELECT setval('entity_id_seq', GREATEST($1, CASE WHEN is_called THEN last_value ELSE 0 END))
			FROM entity_id_seq
		`, cs.MaxID)
		if err != nil {
			return fmt.Errorf("advance entity id counter: %w", err)
		}
	}

	if len(cs.Deleted) > 0 {
		// entity_children и entity_workspace чистятся каскадом
		if _, err := tx.Exec(ctx, `DELETE FROM entity WHERE id = ANY($1)`, cs.Deleted); err != nil {
			return fmt.Errorf("delete entities: %w", err)
		}
	}

	if err := upsertEntities(ctx, tx, cs.Upserts); err != nil {
		return err
	}

	if err := rewriteWorkspaces(ctx, tx, cs.Workspaces, cs.Members); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// upsertEntities пишет изменённые сущности и перезаписывает их детей.
//
// Ссылки на детей вставляются после всех сущностей: ребёнок может
// появиться в том же Changeset позже родителя.
func upsertEntities(ctx context.Context, tx pgx.Tx, upserts []collection.EntityUpsert) error {
	if len(upserts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	parents := make([]int64, 0, len(upserts))
	var links [][]any
	for _, up := range upserts {
		rec := up.Record
		batch.Queue(`
			INSERT INTO entity (id, type, name, "user", mod_time, create_time, size, description, url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				type = EXCLUDED.type,
				name = EXCLUDED.name,
				"user" = EXCLUDED."user",
				mod_time = EXCLUDED.mod_time,
				create_time = EXCLUDED.create_time,
				size = EXCLUDED.size,
				description = EXCLUDED.description,
				url = EXCLUDED.url
		`,
			rec.ID,
			int32(rec.Type),
			rec.Name,
			rec.User,
			rec.ModTime,
			rec.CreateTime,
			rec.Size,
			nullString(rec.Description),
			nullString(rec.URL),
		)

		parents = append(parents, rec.ID)
		for pos, child := range up.Children {
			links = append(links, []any{rec.ID, child, int32(pos)})
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert entities: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM entity_children WHERE parent = ANY($1)`, parents); err != nil {
		return fmt.Errorf("clear entity children: %w", err)
	}
	if len(links) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"entity_children"},
		[]string{"parent", "child", "position"},
		pgx.CopyFromRows(links),
	)
	if err != nil {
		return fmt.Errorf("insert entity children: %w", err)
	}
	return nil
}

// rewriteWorkspaces полностью заменяет workspaces и entity_workspace.
func rewriteWorkspaces(ctx context.Context, tx pgx.Tx, workspaces []string, members []collection.Membership) error {
	if _, err := tx.Exec(ctx, `DELETE FROM workspaces`); err != nil {
		return fmt.Errorf("clear workspaces: %w", err)
	}

	if len(workspaces) > 0 {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"workspaces"},
			[]string{"id"},
			pgx.CopyFromSlice(len(workspaces), func(i int) ([]any, error) {
				return []any{workspaces[i]}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert workspaces: %w", err)
		}
	}

	if len(members) > 0 {
		positions := make(map[string]int32)
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"entity_workspace"},
			[]string{"entity", "workspace", "position"},
			pgx.CopyFromSlice(len(members), func(i int) ([]any, error) {
				m := members[i]
				pos := positions[m.Workspace]
				positions[m.Workspace]++
				return []any{m.Entity, m.Workspace, pos}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert entity workspaces: %w", err)
		}
	}
	return nil
}

// Reset удаляет все строки индекса.
func (r *EntityRepo) Reset(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		TRUNCATE entity_workspace, entity_children, workspaces, entity;
		ALTER SEQUENCE entity_id_seq RESTART;
	`)
	if err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	return nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
