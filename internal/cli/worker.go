package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/Pipeflow/internal/executor"
	"github.com/shaiso/Pipeflow/internal/mq"
	"github.com/shaiso/Pipeflow/internal/repo"
	"github.com/shaiso/Pipeflow/internal/worker"
)

func newWorkerCmd(env *Env) *cobra.Command {
	var metricsAddr string
	var prefetch int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Execute queued pipelines and record their executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := env.Logger

			conn, err := env.Broker(ctx)
			if err != nil {
				return err
			}

			cfg := worker.Config{
				Conn:        conn,
				Prefetch:    prefetch,
				IsDuplicate: func(err error) bool { return errors.Is(err, repo.ErrAlreadyExists) },
				Logger:      logger,
			}
			if env.HasDatabase() {
				pool, err := env.Pool(ctx)
				if err != nil {
					return err
				}
				cfg.Store = repo.NewExecutionRepo(pool)
			} else {
				logger.Warn("database not configured, executions are not recorded")
			}
			cfg.Runner = newWorkerRunner(mq.NewPublisher(conn, logger), cfg.Store, logger)

			w := worker.New(cfg)
			w.Start(ctx)

			// /healthz + /metrics
			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			go func() {
				logger.Info("listening", "addr", metricsAddr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
				}
			}()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
			w.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":8082", "Address for /metrics and /healthz")
	cmd.Flags().IntVar(&prefetch, "prefetch", 4, "Pipeline requests processed without ack")
	return cmd
}

// newWorkerRunner создаёт executor воркера. Кэш результатов общий для
// всех запросов. pipeline.executed публикуется только при наличии
// журнала: без читателя executions.recorded копит сообщения.
func newWorkerRunner(publisher executor.Publisher, journal worker.ExecutionStore, logger *slog.Logger) *executor.Executor {
	cfg := executor.Config{
		Cache:  executor.NewMemoryCache(),
		Logger: logger,
	}
	if journal != nil {
		cfg.Publisher = publisher
	}
	return executor.New(cfg)
}
