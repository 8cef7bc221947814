package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	"github.com/hibiken/asynq"
)

func redisOpt(cfg config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         cfg.RedisAddr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// AsynqClient wraps the Asynq client for enqueuing tasks
type AsynqClient struct {
	client *asynq.Client
	cfg    config.QueueConfig
	logger *slog.Logger
}

// NewAsynqClient creates a new Asynq client
func NewAsynqClient(cfg config.QueueConfig, logger *slog.Logger) *AsynqClient {
	if logger == nil {
		logger = slog.Default()
	}

	client := asynq.NewClient(redisOpt(cfg))

	logger.Info("asynq client created",
		slog.String("redis_addr", cfg.RedisAddr),
		slog.Int("redis_db", cfg.DB),
	)

	return &AsynqClient{client: client, cfg: cfg, logger: logger}
}

// Close closes the Asynq client
func (a *AsynqClient) Close() error {
	a.logger.Info("closing asynq client")
	return a.client.Close()
}

// EnqueueContext enqueues a task with the configured retry and timeout defaults.
// Options passed by the caller take precedence.
func (a *AsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	defaults := []asynq.Option{asynq.MaxRetry(a.cfg.MaxRetries)}
	if a.cfg.Timeout > 0 {
		defaults = append(defaults, asynq.Timeout(a.cfg.Timeout))
	}

	info, err := a.client.EnqueueContext(ctx, task, append(defaults, opts...)...)
	if err != nil {
		a.logger.Error("failed to enqueue task",
			slog.String("task_type", task.Type()),
			slog.Any("error", err),
		)
		return nil, err
	}

	a.logger.Debug("task enqueued",
		slog.String("task_id", info.ID),
		slog.String("task_type", task.Type()),
		slog.String("queue", info.Queue),
	)

	return info, nil
}

// EnqueueIngest schedules the ingest of a stored upload
func (a *AsynqClient) EnqueueIngest(ctx context.Context, payload IngestPayload) (*asynq.TaskInfo, error) {
	task, err := NewIngestTask(payload)
	if err != nil {
		return nil, err
	}
	return a.EnqueueContext(ctx, task, asynq.TaskID(payload.TaskID()), asynq.Queue(QueueDefault))
}

// AsynqServer wraps the Asynq server for processing tasks
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewAsynqServer creates a new Asynq server
func NewAsynqServer(cfg config.QueueConfig, logger *slog.Logger) *AsynqServer {
	if logger == nil {
		logger = slog.Default()
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,

			// Exponential backoff: 2s, 4s, 8s, 16s, ...
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				return time.Duration(1<<uint(n)) * time.Second
			},

			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					slog.String("task_type", task.Type()),
					slog.String("payload", string(task.Payload())),
					slog.Any("error", err),
				)
			}),

			HealthCheckFunc: func(e error) {
				if e != nil {
					logger.Error("health check failed", slog.Any("error", e))
				}
			},
			HealthCheckInterval: 20 * time.Second,

			ShutdownTimeout: 25 * time.Second,
		},
	)

	logger.Info("asynq server created",
		slog.String("redis_addr", cfg.RedisAddr),
		slog.Int("concurrency", cfg.Concurrency),
	)

	return &AsynqServer{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: logger,
	}
}

// HandleFunc registers a handler function for a task type
func (a *AsynqServer) HandleFunc(pattern string, handler func(context.Context, *asynq.Task) error) {
	a.mux.HandleFunc(pattern, handler)
	a.logger.Debug("handler registered", slog.String("pattern", pattern))
}

// Start begins processing in the background; call Shutdown to stop
func (a *AsynqServer) Start() error {
	a.logger.Info("starting asynq server")
	if err := a.server.Start(a.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (a *AsynqServer) Shutdown() {
	a.logger.Info("shutting down asynq server")
	a.server.Shutdown()
}
