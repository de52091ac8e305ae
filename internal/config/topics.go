package config

const (
	// TopicIngestRun is the NSQ topic that triggers a full ingestion run for a user.
	TopicIngestRun = "ingest.run"

	// TopicIndexRun is the NSQ topic that triggers an indexing run for a user.
	TopicIndexRun = "index.run"
)
