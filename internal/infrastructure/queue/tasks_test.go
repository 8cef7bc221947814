package queue

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIngestTask(t *testing.T) {
	p := IngestPayload{BatchID: uuid.New(), Path: "/data/uploads/x/shipments.csv"}

	task, err := NewIngestTask(p)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeIngest, task.Type())

	got, err := ParseIngestPayload(task)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestNewIngestTask_Validation(t *testing.T) {
	_, err := NewIngestTask(IngestPayload{Path: "a.csv"})
	assert.Error(t, err)

	_, err = NewIngestTask(IngestPayload{BatchID: uuid.New()})
	assert.Error(t, err)
}

func TestParseIngestPayload_SkipsRetryOnBadPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{"},
		{"missing path", `{"batch_id":"` + uuid.NewString() + `"}`},
		{"missing batch", `{"path":"a.csv"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIngestPayload(asynq.NewTask(TaskTypeIngest, []byte(tt.payload)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestIngestPayload_TaskID(t *testing.T) {
	id := uuid.New()

	assert.Equal(t, id.String(), IngestPayload{BatchID: id}.TaskID())
	assert.Equal(t, id.String()+"-reingest-2", IngestPayload{BatchID: id, Reingest: 2}.TaskID())

	task, err := NewIngestTask(IngestPayload{BatchID: id, Path: "a.csv", Reingest: 1})
	require.NoError(t, err)
	got, err := ParseIngestPayload(task)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Reingest)
}
