package mq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Pipeflow/internal/collection"
	"github.com/shaiso/Pipeflow/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// acknowledger запоминает решение по сообщению.
type acknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *acknowledger) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *acknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *acknowledger) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func TestMessage_PayloadRoundTrip(t *testing.T) {
	spec := domain.PipelineSpec{
		Name:    "demo",
		Modules: []domain.ModuleDef{{ID: "a", Type: "Integer"}},
	}
	msg, err := NewMessage(MessageTypePipelineRequested, PipelineRequestedPayload{Spec: spec})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if msg.ID == "" {
		t.Error("message id must be set")
	}

	got, err := ParsePayload[PipelineRequestedPayload](msg)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if diff := cmp.Diff(spec, got.Spec); diff != "" {
		t.Errorf("spec mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	msg := &Message{Type: MessageTypeIndexUpdated, Payload: []byte(`"nope"`)}
	if _, err := ParsePayload[IndexUpdatedPayload](msg); err == nil {
		t.Error("expected error")
	}
}

func TestConsumer_Handle(t *testing.T) {
	body := []byte(`{"id": "m1", "type": "index.updated", "payload": {"entities": 3}}`)

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handlerErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success", body: body, wantAck: true},
		{name: "transient error requeues", body: body, handlerErr: errors.New("db down"), wantRequeue: true},
		{name: "redelivered goes to dlq", body: body, redelivered: true, handlerErr: errors.New("db down")},
		{name: "permanent goes to dlq", body: body, handlerErr: Permanent(errors.New("bad spec"))},
		{name: "garbage goes to dlq", body: []byte("{")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Message
			c := &Consumer{
				logger: discard,
				handler: func(_ context.Context, msg *Message) error {
					seen = msg
					return tt.handlerErr
				},
			}
			ack := &acknowledger{}
			c.handle(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				Body:         tt.body,
				Redelivered:  tt.redelivered,
			})

			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && !ack.nacked {
				t.Error("expected nack")
			}
			if ack.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", ack.requeue, tt.wantRequeue)
			}
			if tt.wantAck && seen.ID != "m1" {
				t.Errorf("expected message m1, got %q", seen.ID)
			}
		})
	}
}

type recordingPublisher struct {
	payloads []IndexUpdatedPayload
	err      error
}

func (p *recordingPublisher) PublishIndexUpdated(_ context.Context, payload IndexUpdatedPayload) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestIndexNotifier(t *testing.T) {
	ctx := context.Background()
	coll, err := collection.New(ctx, collection.Config{Logger: discard})
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	NewIndexNotifier(coll, pub, discard)

	coll.AddEntity(domain.NewEntity(domain.EntityTypeVistrail, "v", ""))
	if err := coll.Commit(ctx); err != nil {
		t.Fatalf("commit must succeed even if publishing fails: %v", err)
	}

	want := []IndexUpdatedPayload{{Entities: 1, Workspaces: []string{domain.DefaultWorkspace}}}
	if diff := cmp.Diff(want, pub.payloads); diff != "" {
		t.Errorf("payloads mismatch (-want +got):\n%s", diff)
	}
}
