package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/executor"
	"github.com/shaiso/Pipeflow/internal/mq"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var errDuplicate = errors.New("duplicate")

type memoryJournal struct {
	execs map[uuid.UUID]*domain.Execution
	err   error
}

func (j *memoryJournal) Create(_ context.Context, exec *domain.Execution) error {
	if j.err != nil {
		return j.err
	}
	if _, ok := j.execs[exec.ID]; ok {
		return errDuplicate
	}
	j.execs[exec.ID] = exec
	return nil
}

func newWorker(runner Runner, store ExecutionStore) *Worker {
	return New(Config{
		Runner:      runner,
		Store:       store,
		IsDuplicate: func(err error) bool { return errors.Is(err, errDuplicate) },
		Logger:      discard,
	})
}

func message(t *testing.T, typ mq.MessageType, payload any) *mq.Message {
	t.Helper()
	msg, err := mq.NewMessage(typ, payload)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	return msg
}

func sumSpec() domain.PipelineSpec {
	return domain.PipelineSpec{
		Name: "sum",
		Modules: []domain.ModuleDef{
			{ID: "x", Type: "Integer", Params: map[string]any{"value": 2}},
			{ID: "y", Type: "Integer", Params: map[string]any{"value": 3}},
			{ID: "sum", Type: "Calc"},
		},
		Connections: []domain.ConnectionDef{
			{From: "x", FromPort: "value", To: "sum", ToPort: "a"},
			{From: "y", FromPort: "value", To: "sum", ToPort: "b"},
		},
	}
}

// capturingPublisher запоминает опубликованные выполнения.
type capturingPublisher struct {
	execs []*domain.Execution
}

func (p *capturingPublisher) PublishPipelineExecuted(_ context.Context, exec *domain.Execution) error {
	p.execs = append(p.execs, exec)
	return nil
}

func TestHandlePipelineRequested_Executes(t *testing.T) {
	pub := &capturingPublisher{}
	w := newWorker(executor.New(executor.Config{Publisher: pub, Logger: discard}), nil)

	msg := message(t, mq.MessageTypePipelineRequested, mq.PipelineRequestedPayload{
		RequestID: uuid.New(),
		Spec:      sumSpec(),
	})
	if err := w.handlePipelineRequested(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.execs) != 1 {
		t.Fatalf("expected 1 published execution, got %d", len(pub.execs))
	}
	exec := pub.execs[0]
	if exec.Status != domain.ExecutionStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", exec.Status)
	}
	if got := exec.Modules["sum"].Outputs["value"]; got != 5.0 {
		t.Errorf("expected sum 5, got %v", got)
	}
}

func TestHandlePipelineRequested_InvalidSpecIsPermanent(t *testing.T) {
	w := newWorker(executor.New(executor.Config{Logger: discard}), nil)

	spec := sumSpec()
	spec.Modules[2].Type = "NoSuchType"
	msg := message(t, mq.MessageTypePipelineRequested, mq.PipelineRequestedPayload{Spec: spec})

	err := w.handlePipelineRequested(context.Background(), msg)
	if !errors.Is(err, mq.ErrPermanent) || !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected permanent invalid request, got %v", err)
	}
}

type cancelledRunner struct{}

func (cancelledRunner) Execute(ctx context.Context, spec *domain.PipelineSpec) (*domain.Execution, error) {
	return &domain.Execution{Pipeline: spec.Name, Status: domain.ExecutionStatusFailed}, context.Canceled
}

func TestHandlePipelineRequested_InterruptedIsRetried(t *testing.T) {
	w := newWorker(cancelledRunner{}, nil)
	msg := message(t, mq.MessageTypePipelineRequested, mq.PipelineRequestedPayload{Spec: sumSpec()})

	err := w.handlePipelineRequested(context.Background(), msg)
	if err == nil || errors.Is(err, mq.ErrPermanent) {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestHandlePipelineRequested_Garbage(t *testing.T) {
	w := newWorker(cancelledRunner{}, nil)
	msg := &mq.Message{Type: mq.MessageTypePipelineRequested, Payload: []byte(`[1, 2]`)}

	if err := w.handlePipelineRequested(context.Background(), msg); !errors.Is(err, mq.ErrPermanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestHandlePipelineExecuted(t *testing.T) {
	exec := &domain.Execution{ID: uuid.New(), Pipeline: "sum", Status: domain.ExecutionStatusSucceeded}

	tests := []struct {
		name          string
		payload       mq.PipelineExecutedPayload
		storeErr      error
		preload       bool
		wantErr       bool
		wantPermanent bool
	}{
		{name: "records", payload: mq.PipelineExecutedPayload{Execution: exec}},
		{name: "duplicate is fine", payload: mq.PipelineExecutedPayload{Execution: exec}, preload: true},
		{name: "store failure is retried", payload: mq.PipelineExecutedPayload{Execution: exec}, storeErr: errors.New("db down"), wantErr: true},
		{name: "missing execution", payload: mq.PipelineExecutedPayload{}, wantErr: true, wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := &memoryJournal{execs: make(map[uuid.UUID]*domain.Execution), err: tt.storeErr}
			if tt.preload {
				journal.execs[exec.ID] = exec
			}
			w := newWorker(cancelledRunner{}, journal)

			err := w.handlePipelineExecuted(context.Background(), message(t, mq.MessageTypePipelineExecuted, tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, mq.ErrPermanent) != tt.wantPermanent {
				t.Errorf("permanent = %v, want %v", errors.Is(err, mq.ErrPermanent), tt.wantPermanent)
			}
			if !tt.wantErr {
				if _, ok := journal.execs[exec.ID]; !ok {
					t.Error("execution must be in the journal")
				}
			}
		})
	}
}
