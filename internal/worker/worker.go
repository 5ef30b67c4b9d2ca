package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/mq"
)

const defaultPrefetch = 4

// Runner выполняет pipeline. Реализуется executor.Executor.
type Runner interface {
	Execute(ctx context.Context, spec *domain.PipelineSpec) (*domain.Execution, error)
}

// ExecutionStore — журнал выполнений. Реализуется repo.ExecutionRepo.
type ExecutionStore interface {
	Create(ctx context.Context, exec *domain.Execution) error
}

// Worker — потребитель очередей pipeline.
type Worker struct {
	runner Runner
	store  ExecutionStore
	conn   *mq.Connection

	// duplicate сообщает, что выполнение уже в журнале.
	duplicate func(error) bool

	prefetch int
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Runner Runner

	// Store — журнал выполнений. nil — очередь executions.recorded не читается.
	Store ExecutionStore

	// IsDuplicate распознаёт ошибку Store о повторной записи (default: никогда).
	IsDuplicate func(error) bool

	Conn *mq.Connection

	// Prefetch — сообщений pipelines.requested без ack (default: 4).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	duplicate := cfg.IsDuplicate
	if duplicate == nil {
		duplicate = func(error) bool { return false }
	}

	return &Worker{
		runner:    cfg.Runner,
		store:     cfg.Store,
		conn:      cfg.Conn,
		duplicate: duplicate,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает потребителей в фоне.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.consume(ctx, mq.ConsumerConfig{
		Queue:    mq.QueuePipelinesRequested,
		Handler:  w.handlePipelineRequested,
		Prefetch: w.prefetch,
	})
	if w.store != nil {
		w.consume(ctx, mq.ConsumerConfig{
			Queue:   mq.QueueExecutionsRecorded,
			Handler: w.handlePipelineExecuted,
		})
	}

	w.logger.Info("worker started", "prefetch", w.prefetch, "journal", w.store != nil)
}

func (w *Worker) consume(ctx context.Context, cfg mq.ConsumerConfig) {
	consumer := mq.NewConsumer(w.conn, w.logger, cfg)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("consumer stopped", "queue", cfg.Queue, "error", err)
		}
	}()
}

// Stop останавливает потребителей и ждёт текущие сообщения.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}
