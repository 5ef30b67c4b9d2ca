package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Pipeflow/internal/collection"
	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/mq"
)

// entityView — сущность индекса для вывода.
type entityView struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Parent     int64     `json:"parent,omitempty"`
	URL        string    `json:"url,omitempty"`
	ModTime    time.Time `json:"mod_time"`
	Workspaces []string  `json:"workspaces,omitempty"`
}

// NewIndexCmd создаёт группу команд для индекса коллекции.
func NewIndexCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the collection index",
	}

	cmd.AddCommand(
		newIndexListCmd(env),
		newIndexAddDirCmd(env),
		newIndexUpdateCmd(env),
		newIndexDeleteCmd(env),
		newIndexResetCmd(env),
		newIndexWatchCmd(env),
		newWorkspaceCmd(env),
	)
	return cmd
}

// withCollection открывает индекс и вызывает fn. Для записи изменения
// сохраняются, только если fn завершилась без ошибки.
func withCollection(ctx context.Context, env *Env, write bool, fn func(*collection.Collection) error) error {
	coll, release, err := env.OpenCollection(ctx, write)
	if err != nil {
		return err
	}
	defer release()

	if err := fn(coll); err != nil {
		return err
	}
	if !write {
		return nil
	}
	return coll.Commit(ctx)
}

func printEntities(env *Env, coll *collection.Collection, entities []*domain.Entity) {
	views := make([]entityView, len(entities))
	rows := make([][]string, len(entities))
	for i, e := range entities {
		v := entityView{
			ID:         e.ID,
			Type:       e.Type.String(),
			Name:       e.Name,
			URL:        e.URL,
			ModTime:    e.ModTime,
			Workspaces: coll.WorkspacesOf(e),
		}
		parent := ""
		if e.Parent != nil {
			v.Parent = e.Parent.ID
			parent = strconv.FormatInt(e.Parent.ID, 10)
		}
		views[i] = v
		rows[i] = []string{
			strconv.FormatInt(v.ID, 10),
			v.Type,
			truncate(v.Name, 40),
			parent,
			strings.Join(v.Workspaces, ","),
			truncate(v.URL, 60),
		}
	}
	env.Out.Print([]string{"ID", "TYPE", "NAME", "PARENT", "WORKSPACES", "URL"}, rows, views)
}

func newIndexListCmd(env *Env) *cobra.Command {
	var workspace string
	var roots bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(cmd.Context(), env, false, func(coll *collection.Collection) error {
				entities := coll.Entities()
				if workspace != "" {
					entities = coll.Workspace(workspace)
				}
				if roots {
					var top []*domain.Entity
					for _, e := range entities {
						if e.Parent == nil {
							top = append(top, e)
						}
					}
					entities = top
				}
				printEntities(env, coll, entities)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Only entities of this workspace")
	cmd.Flags().BoolVar(&roots, "roots", false, "Only top-level entities")
	return cmd
}

func newIndexAddDirCmd(env *Env) *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "add-dir DIR",
		Short: "Index every " + collection.VistrailExt + " file of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ошибки отдельных файлов не мешают сохранить остальные
			var fileErrs error
			err := withCollection(cmd.Context(), env, true, func(coll *collection.Collection) error {
				var updated []*domain.Entity
				updated, fileErrs = coll.UpdateFromDirectory(cmd.Context(), args[0])
				for _, e := range updated {
					coll.AddToWorkspace(e, workspace)
				}
				env.Out.Success(fmt.Sprintf("Indexed %d vistrail(s) from %s", len(updated), args[0]))
				printEntities(env, coll, updated)
				return nil
			})
			if err != nil {
				return err
			}
			return fileErrs
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace to add the vistrails to (default: current)")
	return cmd
}

func newIndexUpdateCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "update PATH|URL",
		Short: "Re-index one vistrail, keeping its workspaces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if !strings.Contains(url, "://") {
				url = collection.FileURL(url)
			}
			return withCollection(cmd.Context(), env, true, func(coll *collection.Collection) error {
				e, err := coll.UpdateVistrail(cmd.Context(), url, nil)
				if err != nil {
					return err
				}
				printEntities(env, coll, []*domain.Entity{e})
				return nil
			})
		},
	}
}

func newIndexDeleteCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete entities with their children",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withCollection(cmd.Context(), env, true, func(coll *collection.Collection) error {
				for _, id := range ids {
					e, err := coll.Entity(id)
					if err != nil {
						return err
					}
					coll.DeleteEntity(e)
				}
				env.Out.Success(fmt.Sprintf("Deleted %d entit(ies)", len(ids)))
				return nil
			})
		},
	}
}

func newIndexResetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove everything from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, release, err := env.OpenCollection(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer release()

			if err := coll.Reset(cmd.Context()); err != nil {
				return err
			}
			env.Out.Success("Index reset")
			return nil
		},
	}
}

func newIndexWatchCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print index.updated events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := env.Broker(cmd.Context())
			if err != nil {
				return err
			}

			consumer := mq.NewConsumer(conn, env.Logger, mq.ConsumerConfig{
				Queue: mq.QueueIndexUpdated,
				Handler: func(_ context.Context, msg *mq.Message) error {
					payload, err := mq.ParsePayload[mq.IndexUpdatedPayload](msg)
					if err != nil {
						return mq.Permanent(err)
					}
					env.Out.Print(
						[]string{"TIME", "ENTITIES", "WORKSPACES"},
						[][]string{{
							msg.Timestamp.Format(time.RFC3339),
							strconv.Itoa(payload.Entities),
							strings.Join(payload.Workspaces, ","),
						}},
						payload,
					)
					return nil
				},
			})
			err = consumer.Run(cmd.Context())
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newWorkspaceCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(cmd.Context(), env, false, func(coll *collection.Collection) error {
				type workspaceView struct {
					Name     string `json:"name"`
					Entities int    `json:"entities"`
				}
				var views []workspaceView
				var rows [][]string
				for _, name := range coll.Workspaces() {
					v := workspaceView{Name: name, Entities: len(coll.Workspace(name))}
					views = append(views, v)
					rows = append(rows, []string{v.Name, strconv.Itoa(v.Entities)})
				}
				env.Out.Print([]string{"NAME", "ENTITIES"}, rows, views)
				return nil
			})
		},
	}

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(cmd.Context(), env, true, func(coll *collection.Collection) error {
				coll.AddWorkspace(args[0])
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a workspace (its entities stay indexed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCollection(cmd.Context(), env, true, func(coll *collection.Collection) error {
				coll.DeleteWorkspace(args[0])
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add WORKSPACE ID...",
		Short: "Add entities to a workspace",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editWorkspace(cmd.Context(), env, args, (*collection.Collection).AddToWorkspace)
		},
	}

	remove := &cobra.Command{
		Use:   "remove WORKSPACE ID...",
		Short: "Remove entities from a workspace",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editWorkspace(cmd.Context(), env, args, (*collection.Collection).DelFromWorkspace)
		},
	}

	cmd.AddCommand(list, create, del, add, remove)
	return cmd
}

func editWorkspace(ctx context.Context, env *Env, args []string, edit func(*collection.Collection, *domain.Entity, string)) error {
	ids, err := parseIDs(args[1:])
	if err != nil {
		return err
	}
	return withCollection(ctx, env, true, func(coll *collection.Collection) error {
		for _, id := range ids {
			e, err := coll.Entity(id)
			if err != nil {
				return err
			}
			edit(coll, e, args[0])
		}
		return nil
	})
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id %q: %w", a, err)
		}
		ids[i] = id
	}
	return ids, nil
}
