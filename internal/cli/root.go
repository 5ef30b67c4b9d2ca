package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/Pipeflow/internal/telemetry"
)

// NewRootCmd собирает дерево команд pipeflow.
func NewRootCmd(version string) *cobra.Command {
	env := &Env{}

	root := &cobra.Command{
		Use:           "pipeflow",
		Short:         "Pipeflow — dataflow pipeline engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env.Out = NewOutput(env.JSON, cmd.OutOrStdout(), cmd.ErrOrStderr())
			env.Logger = telemetry.SetupLoggerTo(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			env.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&env.DBURL, "db-url", "", "PostgreSQL DSN (default: $DB_URL)")
	flags.StringVar(&env.AMQPURL, "amqp-url", "", "RabbitMQ URL (default: $RABBITMQ_URL)")
	flags.StringVar(&env.IndexPath, "index", DefaultIndexPath(), "collection index file when no database is configured")
	flags.BoolVar(&env.JSON, "json", false, "Output in JSON format")

	root.AddCommand(
		newRunCmd(env),
		newSubmitCmd(env),
		newTypesCmd(env),
		newExecutionsCmd(env),
		NewIndexCmd(env),
		newWorkerCmd(env),
	)
	return root
}
