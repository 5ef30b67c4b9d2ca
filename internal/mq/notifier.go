package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/Pipeflow/internal/collection"
)

// indexPublisher — часть Publisher, нужная IndexNotifier.
type indexPublisher interface {
	PublishIndexUpdated(ctx context.Context, payload IndexUpdatedPayload) error
}

// IndexNotifier публикует index.updated после каждого Commit коллекции.
// Ошибка публикации только пишется в лог: индекс уже сохранён.
type IndexNotifier struct {
	coll      *collection.Collection
	publisher indexPublisher
	logger    *slog.Logger
}

// NewIndexNotifier создаёт IndexNotifier и подписывает его на коллекцию.
func NewIndexNotifier(coll *collection.Collection, publisher indexPublisher, logger *slog.Logger) *IndexNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &IndexNotifier{coll: coll, publisher: publisher, logger: logger}
	coll.AddListener(n)
	return n
}

// Updated реализует collection.Listener.
func (n *IndexNotifier) Updated(ctx context.Context) {
	payload := IndexUpdatedPayload{
		Entities:   n.coll.Len(),
		Workspaces: n.coll.Workspaces(),
	}
	if err := n.publisher.PublishIndexUpdated(ctx, payload); err != nil {
		n.logger.Warn("failed to publish index update", "error", err)
	}
}
