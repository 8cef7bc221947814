package shipments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/deduplication"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/goodsparser"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/parsers"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/errors"
	"github.com/google/uuid"
)

// DefaultExportName is the file written for every ingested batch
const DefaultExportName = "enriched.csv"

// Config tunes the ingest pipeline
type Config struct {
	DescriptionColumn string
	NormalizeText     bool
	Workers           int
	SaveBatchSize     int
	MaxFileSizeMB     int64
	ExportName        string
}

// NewConfig assembles the pipeline settings from the application config
func NewConfig(cfg *config.Config) Config {
	return Config{
		DescriptionColumn: cfg.Ingest.DescriptionColumn,
		NormalizeText:     cfg.Ingest.NormalizeText,
		Workers:           cfg.Parser.Workers,
		SaveBatchSize:     cfg.Ingest.SaveBatchSize,
		MaxFileSizeMB:     cfg.Server.MaxUploadMB,
		ExportName:        DefaultExportName,
	}
}

// BatchStore tracks the status of ingest runs
type BatchStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Complete(ctx context.Context, batch *domain.Batch) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

// ShipmentStore persists enriched rows
type ShipmentStore interface {
	SaveShipments(ctx context.Context, batchID uuid.UUID, shipments []domain.Shipment, batchSize int) error
}

// Exporter writes the enriched file of a batch
type Exporter interface {
	WriteExport(ctx context.Context, batchID uuid.UUID, filename string, write func(io.Writer) error) (string, error)
}

// Dependencies are the optional collaborators of the pipeline. A nil field disables its stage.
type Dependencies struct {
	Deduplicator deduplication.Deduplicator
	Batches      BatchStore
	Shipments    ShipmentStore
	Exporter     Exporter
	Cache        ParseCache
}

// Row is one kept source row with its enrichment
type Row struct {
	Line     int
	Values   map[string]string
	Shipment domain.Shipment
}

// Enrichment is the outcome of running the pipeline over one file
type Enrichment struct {
	Format            string
	Columns           []string
	DescriptionColumn string
	Rows              []Row
	TotalRows         int
	SkippedRows       int
	DuplicateRows     int
	ParserVersion     string
}

// Shipments returns the enriched rows in source order
func (e *Enrichment) Shipments() []domain.Shipment {
	out := make([]domain.Shipment, len(e.Rows))
	for i, r := range e.Rows {
		out[i] = r.Shipment
	}
	return out
}

// IngestResult summarises a completed ingest run
type IngestResult struct {
	BatchID    uuid.UUID
	Enrichment *Enrichment
	OutputPath string
	Duration   time.Duration
}

// Service cleans, parses and enriches shipment exports
type Service struct {
	cfg    Config
	parser *goodsparser.Parser
	files  *parsers.ParserFactory
	deps   Dependencies
	logger *slog.Logger
}

// NewService creates the pipeline. A nil parser selects the default pattern library.
func NewService(cfg Config, parser *goodsparser.Parser, deps Dependencies, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = goodsparser.NewParser(nil)
	}
	if cfg.DescriptionColumn == "" {
		cfg.DescriptionColumn = ColumnDescription
	}
	if cfg.ExportName == "" {
		cfg.ExportName = DefaultExportName
	}

	fileCfg := parsers.DefaultParserConfig()
	if cfg.MaxFileSizeMB > 0 {
		fileCfg.MaxFileSize = cfg.MaxFileSizeMB * 1024 * 1024
	}

	return &Service{
		cfg:    cfg,
		parser: parser,
		files:  parsers.NewParserFactory(fileCfg),
		deps:   deps,
		logger: logger,
	}
}

// ParserVersion identifies the pattern library in use
func (s *Service) ParserVersion() string {
	return s.parser.Library().Version()
}

// ExportName is the file name enriched exports are written under
func (s *Service) ExportName() string {
	return s.cfg.ExportName
}

// SupportsFile reports whether the file's extension has a reader
func (s *Service) SupportsFile(path string) bool {
	return s.files.IsSupported(filepath.Ext(path))
}

// ParseDescriptions parses descriptions in order, normalising them first when enabled
func (s *Service) ParseDescriptions(ctx context.Context, inputs []goodsparser.Input) ([]goodsparser.ParsedRecord, error) {
	if s.cfg.NormalizeText {
		normalized := make([]goodsparser.Input, len(inputs))
		for i, in := range inputs {
			normalized[i] = goodsparser.Input{
				Description: NormalizeDescription(in.Description),
				Category:    in.Category,
			}
		}
		inputs = normalized
	}
	return s.parse(ctx, inputs)
}

func (s *Service) parse(ctx context.Context, inputs []goodsparser.Input) ([]goodsparser.ParsedRecord, error) {
	if s.deps.Cache != nil {
		return s.parseCached(ctx, inputs)
	}
	return s.parser.ParseBatch(ctx, inputs, s.cfg.Workers)
}

// Enrich runs the pipeline over a file without persisting or exporting anything.
// batchID scopes across-run deduplication.
func (s *Service) Enrich(ctx context.Context, batchID uuid.UUID, path string) (*Enrichment, error) {
	return s.enrich(ctx, batchID, path, func(string) error { return nil })
}

// IngestFile enriches a file, stores its rows and writes the enriched export,
// moving the batch through its statuses. A failed run marks the batch failed.
func (s *Service) IngestFile(ctx context.Context, batchID uuid.UUID, path string) (*IngestResult, error) {
	start := time.Now()
	logger := s.logger.With(slog.String("batch_id", batchID.String()))
	logger.Info("ingest started", slog.String("path", path))

	result, err := s.ingest(ctx, batchID, path)
	if err != nil {
		s.fail(ctx, batchID, err)
		logger.Error("ingest failed", slog.Any("error", err))
		return nil, err
	}

	result.Duration = time.Since(start)
	logger.Info("ingest completed",
		slog.Int("total_rows", result.Enrichment.TotalRows),
		slog.Int("kept_rows", len(result.Enrichment.Rows)),
		slog.Int("skipped_rows", result.Enrichment.SkippedRows),
		slog.Int("duplicate_rows", result.Enrichment.DuplicateRows),
		slog.String("output", result.OutputPath),
		slog.Duration("duration", result.Duration))

	return result, nil
}

func (s *Service) ingest(ctx context.Context, batchID uuid.UUID, path string) (*IngestResult, error) {
	enr, err := s.enrich(ctx, batchID, path, func(status string) error {
		return s.setStatus(ctx, batchID, status)
	})
	if err != nil {
		return nil, err
	}

	result := &IngestResult{BatchID: batchID, Enrichment: enr}

	if s.deps.Shipments != nil {
		if err := s.setStatus(ctx, batchID, domain.BatchStatusPersisting); err != nil {
			return nil, err
		}
		if err := s.deps.Shipments.SaveShipments(ctx, batchID, enr.Shipments(), s.cfg.SaveBatchSize); err != nil {
			return nil, apperrors.DatabaseError(err)
		}
	}

	if s.deps.Exporter != nil {
		format := ExportFormatFor(s.cfg.ExportName)
		out, err := s.deps.Exporter.WriteExport(ctx, batchID, s.cfg.ExportName, func(w io.Writer) error {
			return WriteExport(w, format, enr)
		})
		if err != nil {
			return nil, apperrors.InternalWrap(err, "failed to write enriched export")
		}
		result.OutputPath = out
	}

	if s.deps.Batches != nil {
		batch := &domain.Batch{
			ID:               batchID,
			TotalRecords:     enr.TotalRows,
			ProcessedRecords: len(enr.Rows),
			SkippedRecords:   enr.SkippedRows,
			DuplicateRecords: enr.DuplicateRows,
			ParserVersion:    enr.ParserVersion,
			OutputPath:       result.OutputPath,
			Metadata: domain.JSONB{
				"format":             enr.Format,
				"columns":            enr.Columns,
				"description_column": s.cfg.DescriptionColumn,
				"normalized_text":    s.cfg.NormalizeText,
			},
		}
		if err := s.deps.Batches.Complete(ctx, batch); err != nil {
			return nil, apperrors.DatabaseError(err)
		}
	}

	return result, nil
}

func (s *Service) enrich(ctx context.Context, batchID uuid.UUID, path string, stage func(string) error) (*Enrichment, error) {
	if err := stage(domain.BatchStatusCleaning); err != nil {
		return nil, err
	}

	table, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}

	enr := &Enrichment{
		Format:            table.Format,
		Columns:           table.Columns,
		DescriptionColumn: s.cfg.DescriptionColumn,
		TotalRows:         table.TotalRows,
		SkippedRows:       table.SkippedRows,
		ParserVersion:     s.ParserVersion(),
	}

	rows := make([]cleanRow, 0, len(table.Records))
	for _, rec := range table.Records {
		row, ok := s.clean(rec)
		if !ok {
			enr.SkippedRows++
			continue
		}
		rows = append(rows, row)
	}

	if s.deps.Deduplicator != nil {
		rows, enr.DuplicateRows, err = s.deduplicate(ctx, batchID, rows)
		if err != nil {
			return nil, err
		}
	}

	if err := stage(domain.BatchStatusParsing); err != nil {
		return nil, err
	}

	inputs := make([]goodsparser.Input, len(rows))
	for i := range rows {
		if s.cfg.NormalizeText {
			rows[i].description = NormalizeDescription(rows[i].description)
		}
		rows[i].category = AssignCategory(rows[i].description)
		inputs[i] = goodsparser.Input{Description: rows[i].description}
		if rows[i].category != nil {
			inputs[i].Category = *rows[i].category
		}
	}

	parsed, err := s.parse(ctx, inputs)
	if err != nil {
		return nil, err
	}

	enr.Rows = make([]Row, len(rows))
	for i, row := range rows {
		enr.Rows[i] = Row{
			Line:     row.line,
			Values:   row.values,
			Shipment: s.buildShipment(batchID, row, parsed[i]),
		}
	}

	return enr, nil
}

func (s *Service) load(ctx context.Context, path string) (*parsers.ParseResult, error) {
	table, err := s.files.ParseFile(ctx, path)
	switch {
	case errors.Is(err, parsers.ErrUnsupportedFormat):
		return nil, apperrors.UnsupportedFormat(filepath.Ext(path))
	case errors.Is(err, parsers.ErrFileTooLarge):
		return nil, apperrors.FileTooLarge(s.cfg.MaxFileSizeMB)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case err != nil:
		return nil, apperrors.FileParseError(err, path)
	}

	required := append([]string{s.cfg.DescriptionColumn}, RequiredNumericColumns...)
	for _, column := range required {
		if !table.HasColumn(column) {
			return nil, apperrors.MissingColumn(column)
		}
	}
	return table, nil
}

type cleanRow struct {
	line        int
	values      map[string]string
	description string
	category    *string
	date        *time.Time
	quantity    float64
	totalValue  float64
	dutyPaid    float64
}

func (s *Service) clean(rec parsers.Record) (cleanRow, bool) {
	nums, ok := RequireNumeric(rec.Values, RequiredNumericColumns)
	if !ok {
		return cleanRow{}, false
	}
	return cleanRow{
		line:        rec.Line,
		values:      rec.Values,
		description: rec.Get(s.cfg.DescriptionColumn),
		date:        ParseDate(rec.Get(ColumnDate)),
		quantity:    nums[ColumnQuantity],
		totalValue:  nums[ColumnTotalValue],
		dutyPaid:    nums[ColumnDutyPaid],
	}, true
}

func (s *Service) deduplicate(ctx context.Context, batchID uuid.UUID, rows []cleanRow) ([]cleanRow, int, error) {
	records := make([]deduplication.Record, len(rows))
	for i, row := range rows {
		records[i] = deduplication.Record{RowIndex: row.line, Data: row.values}
	}

	result, err := s.deps.Deduplicator.Deduplicate(ctx, batchID, records)
	if err != nil {
		return nil, 0, fmt.Errorf("deduplication failed: %w", err)
	}

	keep := make(map[int]struct{}, len(result.Records))
	for _, r := range result.Records {
		keep[r.RowIndex] = struct{}{}
	}

	kept := rows[:0]
	for _, row := range rows {
		if _, ok := keep[row.line]; ok {
			kept = append(kept, row)
		}
	}
	return kept, result.RemovedCount, nil
}

var mappedColumns = map[string]struct{}{
	ColumnDate:        {},
	ColumnDescription: {},
	ColumnUnit:        {},
	ColumnQuantity:    {},
	ColumnTotalValue:  {},
	ColumnDutyPaid:    {},
}

func (s *Service) buildShipment(batchID uuid.UUID, row cleanRow, rec goodsparser.ParsedRecord) domain.Shipment {
	year, month, quarter := DeriveCalendar(row.date)
	grand := GrandTotal(row.totalValue, row.dutyPaid)

	sh := domain.Shipment{
		BatchID:          batchID,
		RowIndex:         row.line,
		Date:             row.date,
		Year:             year,
		Month:            month,
		Quarter:          quarter,
		GoodsDescription: row.description,
		Unit:             row.values[ColumnUnit],
		UnitStandardized: StandardizeUnit(row.values[ColumnUnit]),
		DeclaredQuantity: row.quantity,
		TotalValueINR:    row.totalValue,
		DutyPaidINR:      row.dutyPaid,

		Material:      rec.Material,
		ModelNumber:   rec.ModelNumber,
		Capacity:      rec.Capacity,
		UnitOfMeasure: rec.UnitOfMeasure,
		Qty:           rec.Quantity,
		ModelName:     rec.ModelName,

		Category:          row.category,
		SubCategory:       AssignSubCategory(row.description, row.category),
		GrandTotalINR:     grand,
		LandedCostPerUnit: LandedCostPerUnit(grand, rec.Quantity),
	}

	if rec.Price != nil {
		currency, amount := rec.Price.Currency, rec.Price.Amount
		sh.PriceCurrency = &currency
		sh.PriceAmount = &amount
	}

	for k, v := range row.values {
		if _, mapped := mappedColumns[k]; mapped || k == s.cfg.DescriptionColumn {
			continue
		}
		if sh.Extra == nil {
			sh.Extra = domain.JSONB{}
		}
		sh.Extra[k] = v
	}

	return sh
}

func (s *Service) setStatus(ctx context.Context, batchID uuid.UUID, status string) error {
	if s.deps.Batches == nil {
		return nil
	}
	if err := s.deps.Batches.UpdateStatus(ctx, batchID, status); err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// fail records the failure even when ctx has been cancelled
func (s *Service) fail(ctx context.Context, batchID uuid.UUID, cause error) {
	if s.deps.Batches == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.deps.Batches.MarkFailed(ctx, batchID, cause); err != nil {
		s.logger.Error("failed to mark batch as failed",
			slog.String("batch_id", batchID.String()),
			slog.Any("error", err))
	}
}
