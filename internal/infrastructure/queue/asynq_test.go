package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestQueue(t *testing.T) config.QueueConfig {
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return config.QueueConfig{
		RedisAddr:   endpoint,
		Concurrency: 1,
		MaxRetries:  0,
		Timeout:     time.Minute,
		Queues:      map[string]int{QueueDefault: 1},
	}
}

func TestAsynqServer_ProcessesIngestAndShutsDown(t *testing.T) {
	cfg := setupTestQueue(t)
	ctx := context.Background()

	received := make(chan IngestPayload, 2)
	srv := NewAsynqServer(cfg, nil)
	srv.HandleFunc(TaskTypeIngest, func(ctx context.Context, task *asynq.Task) error {
		p, err := ParseIngestPayload(task)
		if err != nil {
			return err
		}
		received <- p
		return nil
	})
	require.NoError(t, srv.Start())

	client := NewAsynqClient(cfg, nil)
	t.Cleanup(func() { _ = client.Close() })

	id := uuid.New()
	info, err := client.EnqueueIngest(ctx, IngestPayload{BatchID: id, Path: "/data/a.csv"})
	require.NoError(t, err)
	assert.Equal(t, id.String(), info.ID)

	reinfo, err := client.EnqueueIngest(ctx, IngestPayload{BatchID: id, Path: "/data/a.csv", Reingest: 1})
	require.NoError(t, err)
	assert.NotEqual(t, info.ID, reinfo.ID)

	for range 2 {
		select {
		case p := <-received:
			assert.Equal(t, id, p.BatchID)
		case <-time.After(30 * time.Second):
			t.Fatal("ingest task was not processed")
		}
	}

	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Minute):
		t.Fatal("server did not shut down")
	}
}
