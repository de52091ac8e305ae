package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"ragstor/internal/ingest"
	"ragstor/internal/middleware"
)

// IngestConsumer drives ingestion runs from the ingest.run topic.
type IngestConsumer struct {
	ingestor IngestRunner
}

func NewIngestConsumer(ingestor IngestRunner) *IngestConsumer {
	return &IngestConsumer{ingestor: ingestor}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
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
	if payload.Mode != "" && payload.Mode != ingest.ModeLayout && payload.Mode != ingest.ModeText {
		slog.Error("poison pill: unknown mode", "mode", payload.Mode, "user_id", payload.UserID)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	// Per-document failures are absorbed inside the run; an error here means
	// the whole run failed (layout server down, artifact not written).
	chunks, err := h.ingestor.RunMode(ctx, payload.UserID, payload.Mode)
	if err != nil {
		slog.ErrorContext(ctx, "ingestion run failed", "error", err, "user_id", payload.UserID)
		return err // Retry
	}

	slog.InfoContext(ctx, "ingestion run finished", "user_id", payload.UserID, "chunks", len(chunks))
	return nil
}
