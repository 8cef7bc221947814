package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types
const (
	TaskTypeIngest = "shipments:ingest"
)

// Queue names, matching config.QueueConfig.Queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// IngestPayload identifies a stored upload awaiting ingest.
// Reingest counts how often a failed batch was queued again.
type IngestPayload struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Path     string    `json:"path"`
	Reingest int       `json:"reingest,omitempty"`
}

// TaskID is unique per ingest attempt of a batch. Archived tasks keep their id,
// so a re-ingested batch needs a fresh one.
func (p IngestPayload) TaskID() string {
	if p.Reingest == 0 {
		return p.BatchID.String()
	}
	return fmt.Sprintf("%s-reingest-%d", p.BatchID, p.Reingest)
}

// NewIngestTask builds a shipments:ingest task
func NewIngestTask(p IngestPayload) (*asynq.Task, error) {
	if p.BatchID == uuid.Nil {
		return nil, fmt.Errorf("ingest task requires a batch id")
	}
	if p.Path == "" {
		return nil, fmt.Errorf("ingest task requires a file path")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ingest payload: %w", err)
	}
	return asynq.NewTask(TaskTypeIngest, data), nil
}

// ParseIngestPayload decodes the payload of a shipments:ingest task.
// Malformed payloads are wrapped with asynq.SkipRetry since retrying cannot fix them.
func ParseIngestPayload(t *asynq.Task) (IngestPayload, error) {
	var p IngestPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid ingest payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.BatchID == uuid.Nil || p.Path == "" {
		return p, fmt.Errorf("incomplete ingest payload: %w", asynq.SkipRetry)
	}
	return p, nil
}
