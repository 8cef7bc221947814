package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/goodsparser"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// DescriptionParser parses goods descriptions
type DescriptionParser interface {
	ParseDescriptions(ctx context.Context, inputs []goodsparser.Input) ([]goodsparser.ParsedRecord, error)
	ParserVersion() string
	SupportsFile(path string) bool
}

// UploadStore keeps uploaded files and their exports
type UploadStore interface {
	SaveUpload(ctx context.Context, batchID uuid.UUID, filename string, r io.Reader, maxBytes int64) (*storage.FileMetadata, error)
	OpenExport(ctx context.Context, batchID uuid.UUID, filename string) (*os.File, error)
	DeleteBatch(ctx context.Context, batchID uuid.UUID) error
}

// BatchRepository reads and creates batches
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	FindByFileHash(ctx context.Context, hash string) (*domain.Batch, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	Requeue(ctx context.Context, batch *domain.Batch, filePath string) error
}

// ShipmentReader pages through stored shipments
type ShipmentReader interface {
	ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]domain.Shipment, error)
	CountByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
}

// IngestQueue schedules background ingest runs
type IngestQueue interface {
	EnqueueIngest(ctx context.Context, payload queue.IngestPayload) (*asynq.TaskInfo, error)
}

// HealthReporter reports the state of a backing service
type HealthReporter interface {
	Health(ctx context.Context) map[string]any
}

// Dependencies wires the handler to the rest of the service
type Dependencies struct {
	Parser     DescriptionParser
	Uploads    UploadStore
	Batches    BatchRepository
	Shipments  ShipmentReader
	Queue      IngestQueue
	Components map[string]HealthReporter
	ExportName string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	deps   Dependencies
	cfg    config.ServerConfig
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg config.ServerConfig, deps Dependencies, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{deps: deps, cfg: cfg, logger: logger}
}

// HealthCheck reports the service and each backing component; 503 when any is down
func (h *Handler) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	components := make(map[string]any, len(h.deps.Components))

	for name, reporter := range h.deps.Components {
		report := reporter.Health(c.Request.Context())
		if report["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		components[name] = report
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"service":        "shipment-enrichment-service",
		"parser_version": h.deps.Parser.ParserVersion(),
		"components":     components,
	})
}

// ParseRequest is one description to parse
type ParseRequest struct {
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ParseBatchRequest is an ordered list of descriptions to parse
type ParseBatchRequest struct {
	Items []ParseRequest `json:"items" binding:"required,min=1"`
}

// ParseBatchResponse holds one record per request item, in request order
type ParseBatchResponse struct {
	ParserVersion string                     `json:"parser_version"`
	Records       []goodsparser.ParsedRecord `json:"records"`
}

// ParseDescription parses a single description
func (h *Handler) ParseDescription(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.BadRequest("invalid request body").WithDetails("reason", err.Error()))
		return
	}

	records, err := h.deps.Parser.ParseDescriptions(c.Request.Context(), []goodsparser.Input{
		{Description: req.Description, Category: req.Category},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, records[0])
}

// ParseDescriptionBatch parses many descriptions in one call
func (h *Handler) ParseDescriptionBatch(c *gin.Context) {
	var req ParseBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.BadRequest("invalid request body").WithDetails("reason", err.Error()))
		return
	}
	if h.cfg.MaxBatchItems > 0 && len(req.Items) > h.cfg.MaxBatchItems {
		h.respondError(c, apperrors.BadRequest("too many items").
			WithDetails("max_items", h.cfg.MaxBatchItems).
			WithDetails("items", len(req.Items)))
		return
	}

	inputs := make([]goodsparser.Input, len(req.Items))
	for i, item := range req.Items {
		inputs[i] = goodsparser.Input{Description: item.Description, Category: item.Category}
	}

	records, err := h.deps.Parser.ParseDescriptions(c.Request.Context(), inputs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ParseBatchResponse{
		ParserVersion: h.deps.Parser.ParserVersion(),
		Records:       records,
	})
}

// IngestResponse acknowledges an upload
type IngestResponse struct {
	BatchID   uuid.UUID `json:"batch_id"`
	Status    string    `json:"status"`
	TaskID    string    `json:"task_id,omitempty"`
	Duplicate bool      `json:"duplicate"`
}

// IngestUpload stores a shipment export, records its batch and queues the ingest.
// Re-uploading identical bytes returns the existing batch instead of a new one;
// when that batch failed it is queued again.
func (h *Handler) IngestUpload(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, apperrors.InvalidFile("multipart field \"file\" is required"))
		return
	}
	if !h.deps.Parser.SupportsFile(fileHeader.Filename) {
		h.respondError(c, apperrors.UnsupportedFormat(filepath.Ext(fileHeader.Filename)))
		return
	}

	maxBytes := h.cfg.MaxUploadMB * 1024 * 1024
	if maxBytes > 0 && fileHeader.Size > maxBytes {
		h.respondError(c, apperrors.FileTooLarge(h.cfg.MaxUploadMB))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, apperrors.InvalidFile("failed to read upload"))
		return
	}
	defer file.Close()

	batchID := uuid.New()
	meta, err := h.deps.Uploads.SaveUpload(ctx, batchID, fileHeader.Filename, file, maxBytes)
	if errors.Is(err, storage.ErrFileTooLarge) {
		h.respondError(c, apperrors.FileTooLarge(h.cfg.MaxUploadMB))
		return
	}
	if err != nil {
		h.respondError(c, apperrors.InternalWrap(err, "failed to store upload"))
		return
	}

	existing, err := h.deps.Batches.FindByFileHash(ctx, meta.Hash)
	switch {
	case err == nil:
		if delErr := h.deps.Uploads.DeleteBatch(ctx, batchID); delErr != nil {
			h.logger.Warn("failed to remove duplicate upload",
				slog.String("batch_id", batchID.String()),
				slog.Any("error", delErr))
		}
		if existing.Status == domain.BatchStatusFailed {
			h.reingest(c, existing, fileHeader)
			return
		}
		c.JSON(http.StatusOK, IngestResponse{BatchID: existing.ID, Status: existing.Status, Duplicate: true})
		return
	case !errors.Is(err, domain.ErrBatchNotFound):
		h.respondError(c, apperrors.DatabaseError(err))
		return
	}

	batch := &domain.Batch{
		ID:               batchID,
		OriginalFilename: fileHeader.Filename,
		FilePath:         meta.StoredPath,
		FileHash:         meta.Hash,
		Status:           domain.BatchStatusUploaded,
		Metadata: domain.JSONB{
			"size":         meta.Size,
			"content_type": meta.ContentType,
		},
	}
	if err := h.deps.Batches.Create(ctx, batch); err != nil {
		h.respondError(c, apperrors.DatabaseError(err))
		return
	}

	info, err := h.deps.Queue.EnqueueIngest(ctx, queue.IngestPayload{BatchID: batchID, Path: meta.StoredPath})
	if err != nil {
		if markErr := h.deps.Batches.MarkFailed(ctx, batchID, err); markErr != nil {
			h.logger.Error("failed to mark batch as failed",
				slog.String("batch_id", batchID.String()),
				slog.Any("error", markErr))
		}
		h.respondError(c, apperrors.QueueError(err))
		return
	}

	h.logger.Info("ingest queued",
		slog.String("batch_id", batchID.String()),
		slog.String("task_id", info.ID),
		slog.String("filename", fileHeader.Filename))

	c.JSON(http.StatusAccepted, IngestResponse{BatchID: batchID, Status: batch.Status, TaskID: info.ID})
}

// reingest stores the upload again under the failed batch and queues a fresh attempt
func (h *Handler) reingest(c *gin.Context, batch *domain.Batch, fileHeader *multipart.FileHeader) {
	ctx := c.Request.Context()

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, apperrors.InvalidFile("failed to read upload"))
		return
	}
	defer file.Close()

	meta, err := h.deps.Uploads.SaveUpload(ctx, batch.ID, fileHeader.Filename, file, h.cfg.MaxUploadMB*1024*1024)
	if err != nil {
		h.respondError(c, apperrors.InternalWrap(err, "failed to store upload"))
		return
	}

	if err := h.deps.Batches.Requeue(ctx, batch, meta.StoredPath); err != nil {
		if errors.Is(err, domain.ErrBatchNotFailed) {
			h.respondError(c, apperrors.Conflict("batch is already being ingested"))
			return
		}
		h.respondError(c, apperrors.DatabaseError(err))
		return
	}

	info, err := h.deps.Queue.EnqueueIngest(ctx, queue.IngestPayload{
		BatchID:  batch.ID,
		Path:     meta.StoredPath,
		Reingest: batch.Reingests,
	})
	if err != nil {
		if markErr := h.deps.Batches.MarkFailed(ctx, batch.ID, err); markErr != nil {
			h.logger.Error("failed to mark batch as failed",
				slog.String("batch_id", batch.ID.String()),
				slog.Any("error", markErr))
		}
		h.respondError(c, apperrors.QueueError(err))
		return
	}

	h.logger.Info("failed batch queued again",
		slog.String("batch_id", batch.ID.String()),
		slog.String("task_id", info.ID),
		slog.Int("reingests", batch.Reingests))

	c.JSON(http.StatusAccepted, IngestResponse{BatchID: batch.ID, Status: batch.Status, TaskID: info.ID, Duplicate: true})
}

// GetBatch returns a batch with its counters
func (h *Handler) GetBatch(c *gin.Context) {
	batch, ok := h.loadBatch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, batch)
}

type pageQuery struct {
	Limit  int `form:"limit,default=100" binding:"min=1,max=1000"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

// ListShipments pages through the stored rows of a batch in source order
func (h *Handler) ListShipments(c *gin.Context) {
	batch, ok := h.loadBatch(c)
	if !ok {
		return
	}

	var page pageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		h.respondError(c, apperrors.BadRequest("invalid paging parameters").WithDetails("reason", err.Error()))
		return
	}

	ctx := c.Request.Context()
	items, err := h.deps.Shipments.ListByBatch(ctx, batch.ID, page.Limit, page.Offset)
	if err != nil {
		h.respondError(c, apperrors.DatabaseError(err))
		return
	}
	total, err := h.deps.Shipments.CountByBatch(ctx, batch.ID)
	if err != nil {
		h.respondError(c, apperrors.DatabaseError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// DownloadExport streams the enriched file of a completed batch
func (h *Handler) DownloadExport(c *gin.Context) {
	batch, ok := h.loadBatch(c)
	if !ok {
		return
	}
	if batch.Status != domain.BatchStatusCompleted {
		h.respondError(c, apperrors.Conflict("export is not ready").
			WithDetails("status", batch.Status))
		return
	}

	f, err := h.deps.Uploads.OpenExport(c.Request.Context(), batch.ID, h.deps.ExportName)
	if errors.Is(err, storage.ErrNotFound) {
		h.respondError(c, apperrors.NotFound("export not found"))
		return
	}
	if err != nil {
		h.respondError(c, apperrors.InternalWrap(err, "failed to open export"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.respondError(c, apperrors.InternalWrap(err, "failed to stat export"))
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), storage.ContentType(h.deps.ExportName), f, map[string]string{
		"Content-Disposition": `attachment; filename="` + batch.ID.String() + "-" + h.deps.ExportName + `"`,
	})
}

func (h *Handler) loadBatch(c *gin.Context) (*domain.Batch, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, apperrors.BadRequest("invalid batch id"))
		return nil, false
	}

	batch, err := h.deps.Batches.GetByID(c.Request.Context(), id)
	if errors.Is(err, domain.ErrBatchNotFound) {
		h.respondError(c, apperrors.NotFound("batch not found"))
		return nil, false
	}
	if err != nil {
		h.respondError(c, apperrors.DatabaseError(err))
		return nil, false
	}
	return batch, true
}

// respondError writes err as {"error": {...}} with the status its AppError carries
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		appErr = apperrors.InternalWrap(err, "internal server error")
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("code", string(appErr.Code)),
			slog.Any("error", err))
	}

	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{"error": appErr})
}
