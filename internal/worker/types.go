package worker

import (
	"context"

	"ragstor/internal/blocks"
)

// TaskPayload is the message body on the ingest.run and index.run topics.
// Mode is honored by ingestion only; the indexer ignores it.
type TaskPayload struct {
	UserID        string `json:"user_id"`
	Mode          string `json:"mode,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

type IngestRunner interface {
	RunMode(ctx context.Context, userID, mode string) ([]blocks.Chunk, error)
}

type IndexRunner interface {
	Run(ctx context.Context, userID string) error
}
