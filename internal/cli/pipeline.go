package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/engine"
	"github.com/shaiso/Pipeflow/internal/executor"
	"github.com/shaiso/Pipeflow/internal/modules"
	"github.com/shaiso/Pipeflow/internal/mq"
	"github.com/shaiso/Pipeflow/internal/repo"
)

// ErrPipelineFailed — выполнение закончилось со статусом FAILED.
var ErrPipelineFailed = errors.New("pipeline failed")

func newRunCmd(env *Env) *cobra.Command {
	var save, publish bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a pipeline spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			registry := modules.DefaultRegistry()

			data, err := readFile(args[0])
			if err != nil {
				return err
			}
			spec, err := engine.ParsePipelineSpec(data, registry)
			if err != nil {
				return err
			}

			cfg := executor.Config{Registry: registry, Logger: env.Logger}
			if publish {
				conn, err := env.Broker(ctx)
				if err != nil {
					return err
				}
				cfg.Publisher = mq.NewPublisher(conn, env.Logger)
			}

			exec, err := executor.New(cfg).Execute(ctx, spec)
			if err != nil && exec == nil {
				return err
			}

			if save {
				pool, err := env.Pool(ctx)
				if err != nil {
					return err
				}
				if err := repo.NewExecutionRepo(pool).Create(ctx, exec); err != nil {
					return err
				}
			}

			printExecution(env.Out, spec, exec)
			if err != nil {
				return err
			}
			if exec.Status == domain.ExecutionStatusFailed {
				return fmt.Errorf("%w: %s", ErrPipelineFailed, strings.Join(exec.Failed(), ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Record the execution in the database")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish pipeline.executed to RabbitMQ")
	return cmd
}

func newSubmitCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "submit FILE",
		Short: "Queue a pipeline spec for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := readFile(args[0])
			if err != nil {
				return err
			}
			spec, err := engine.ParsePipelineSpec(data, modules.DefaultRegistry())
			if err != nil {
				return err
			}

			conn, err := env.Broker(ctx)
			if err != nil {
				return err
			}
			id, err := mq.NewPublisher(conn, env.Logger).PublishPipelineRequested(ctx, spec)
			if err != nil {
				return err
			}

			env.Out.Success(fmt.Sprintf("Pipeline queued: %s", id))
			env.Out.Print([]string{"REQUEST", "PIPELINE"}, [][]string{{id.String(), spec.Name}},
				map[string]any{"request_id": id, "pipeline": spec.Name})
			return nil
		},
	}
}

// printExecution выводит результаты модулей в порядке spec.
func printExecution(out *Output, spec *domain.PipelineSpec, exec *domain.Execution) {
	headers := []string{"MODULE", "TYPE", "STATUS", "DURATION", "RESULT"}
	rows := make([][]string, 0, len(spec.Modules))
	for _, def := range spec.Modules {
		m, ok := exec.Modules[def.ID]
		if !ok {
			continue
		}
		result := m.Error
		if result == "" {
			result = formatOutputs(m.Outputs)
		}
		rows = append(rows, []string{
			m.ModuleID,
			m.Type,
			string(m.Status),
			m.Duration.Round(time.Microsecond).String(),
			truncate(result, 60),
		})
	}
	out.Print(headers, rows, exec)
}

func formatOutputs(outputs map[string]any) string {
	parts := make([]string, 0, len(outputs))
	for _, port := range slices.Sorted(maps.Keys(outputs)) {
		parts = append(parts, fmt.Sprintf("%s=%v", port, outputs[port]))
	}
	return strings.Join(parts, " ")
}

func newTypesCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered module types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := modules.DefaultRegistry()

			type typeView struct {
				Name     string   `json:"name"`
				Parent   string   `json:"parent,omitempty"`
				Abstract bool     `json:"abstract"`
				Inputs   []string `json:"inputs"`
				Outputs  []string `json:"outputs"`
			}

			var views []typeView
			var rows [][]string
			for _, name := range registry.Types() {
				d, err := registry.Get(name)
				if err != nil {
					return err
				}
				v := typeView{
					Name:     string(d.Name),
					Parent:   string(d.Parent),
					Abstract: d.Abstract,
					Inputs:   portNames(d.Inputs),
					Outputs:  portNames(d.Outputs),
				}
				views = append(views, v)
				rows = append(rows, []string{
					v.Name,
					v.Parent,
					fmt.Sprint(v.Abstract),
					strings.Join(v.Inputs, ","),
					strings.Join(v.Outputs, ","),
				})
			}

			env.Out.Print([]string{"NAME", "PARENT", "ABSTRACT", "INPUTS", "OUTPUTS"}, rows, views)
			return nil
		},
	}
}

func portNames(ports []modules.PortSpec) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}

func newExecutionsCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Browse recorded executions",
	}

	var filter repo.ExecutionFilter
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := env.Pool(cmd.Context())
			if err != nil {
				return err
			}
			filter.Status = domain.ExecutionStatus(strings.ToUpper(status))
			execs, err := repo.NewExecutionRepo(pool).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			rows := make([][]string, len(execs))
			for i, e := range execs {
				rows[i] = []string{
					e.ID.String(),
					e.Pipeline,
					string(e.Status),
					e.StartedAt.Format(time.RFC3339),
					e.Duration().Round(time.Millisecond).String(),
				}
			}
			env.Out.Print([]string{"ID", "PIPELINE", "STATUS", "STARTED", "DURATION"}, rows, execs)
			return nil
		},
	}
	list.Flags().StringVar(&filter.Pipeline, "pipeline", "", "Filter by pipeline name")
	list.Flags().StringVar(&status, "status", "", "Filter by status (succeeded, failed)")
	list.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum number of executions")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show module results of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid execution id: %w", err)
			}
			pool, err := env.Pool(cmd.Context())
			if err != nil {
				return err
			}
			exec, err := repo.NewExecutionRepo(pool).GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			// Порядок модулей в журнале не хранится: показываем по ID
			spec := &domain.PipelineSpec{Name: exec.Pipeline}
			for _, moduleID := range slices.Sorted(maps.Keys(exec.Modules)) {
				spec.Modules = append(spec.Modules, domain.ModuleDef{ID: moduleID})
			}
			printExecution(env.Out, spec, exec)
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
