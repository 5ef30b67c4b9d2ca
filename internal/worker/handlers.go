package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Pipeflow/internal/mq"
)

// handlePipelineRequested выполняет pipeline из pipelines.requested.
//
// Ошибки модулей — часть результата, а не ошибка обработки.
// Без Execution executor возвращает только ошибки валидации и
// компиляции: повтор их не исправит.
func (w *Worker) handlePipelineRequested(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.PipelineRequestedPayload](msg)
	if err != nil {
		return mq.Permanent(err)
	}

	logger := w.logger.With("request_id", payload.RequestID, "pipeline", payload.Spec.Name)
	logger.Info("pipeline requested", "modules", len(payload.Spec.Modules))

	exec, err := w.runner.Execute(ctx, &payload.Spec)
	if err != nil {
		if exec == nil {
			return mq.Permanent(fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		}
		return err
	}

	logger.Info("pipeline executed",
		"execution_id", exec.ID,
		"status", exec.Status,
		"failed", exec.Failed(),
	)
	return nil
}

// handlePipelineExecuted сохраняет выполнение из executions.recorded.
func (w *Worker) handlePipelineExecuted(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.PipelineExecutedPayload](msg)
	if err != nil {
		return mq.Permanent(err)
	}
	if payload.Execution == nil {
		return mq.Permanent(ErrNoExecution)
	}

	if err := w.store.Create(ctx, payload.Execution); err != nil {
		if w.duplicate(err) {
			w.logger.Debug("execution already recorded", "execution_id", payload.Execution.ID)
			return nil
		}
		return fmt.Errorf("record execution: %w", err)
	}

	w.logger.Debug("execution recorded",
		"execution_id", payload.Execution.ID,
		"status", payload.Execution.Status,
	)
	return nil
}
