package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"ragstor/internal/middleware"
)

// IndexConsumer drives index rebuilds from the index.run topic.
type IndexConsumer struct {
	indexer IndexRunner
}

func NewIndexConsumer(indexer IndexRunner) *IndexConsumer {
	return &IndexConsumer{indexer: indexer}
}

func (h *IndexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload TaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.UserID == "" {
		slog.Error("poison pill: missing user_id")
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	if err := h.indexer.Run(ctx, payload.UserID); err != nil {
		slog.ErrorContext(ctx, "index rebuild failed", "error", err, "user_id", payload.UserID)
		return err // Retry
	}

	slog.InfoContext(ctx, "index rebuild finished", "user_id", payload.UserID)
	return nil
}
