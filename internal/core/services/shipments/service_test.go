package shipments

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/deduplication"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/goodsparser"
	apperrors "github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shipmentsCSV = `DATE,GOODS DESCRIPTION,UNIT,QUANTITY,TOTAL VALUE_INR,DUTY PAID_INR,HS CODE
2024-01-15,MILD STEEL BASKET (MS-101) QTY: 500 PCS USD/2.50,pcs,500,104000,20800,7323
15-02-2024,AB-22 WOODEN SPOON SET 12 SET QTY:100,NOS,100,"5,000",1000,4419
2024-03-01,COPPER MUG 6 NOS,kgs,6,bad,100,7418
not-a-date,COPPER MUG 6 NOS,UNITS,6,600,0,7418
`

type mockBatchStore struct {
	mu        sync.Mutex
	statuses  []string
	completed *domain.Batch
	failed    error
	updateErr error
}

func (m *mockBatchStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *mockBatchStore) Complete(ctx context.Context, batch *domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = batch
	m.statuses = append(m.statuses, domain.BatchStatusCompleted)
	return nil
}

func (m *mockBatchStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = cause
	m.statuses = append(m.statuses, domain.BatchStatusFailed)
	return nil
}

type mockShipmentStore struct {
	saved     []domain.Shipment
	batchSize int
	err       error
}

func (m *mockShipmentStore) SaveShipments(ctx context.Context, batchID uuid.UUID, shipments []domain.Shipment, batchSize int) error {
	if m.err != nil {
		return m.err
	}
	m.saved = shipments
	m.batchSize = batchSize
	return nil
}

type memoryExporter struct {
	buf  bytes.Buffer
	name string
}

func (m *memoryExporter) WriteExport(ctx context.Context, batchID uuid.UUID, filename string, write func(io.Writer) error) (string, error) {
	m.name = filename
	if err := write(&m.buf); err != nil {
		return "", err
	}
	return "/exports/" + batchID.String() + "/" + filename, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig() Config {
	return Config{
		DescriptionColumn: ColumnDescription,
		NormalizeText:     true,
		Workers:           2,
		SaveBatchSize:     100,
	}
}

func TestService_Enrich(t *testing.T) {
	svc := NewService(testConfig(), nil, Dependencies{}, nil)
	batchID := uuid.New()

	enr, err := svc.Enrich(context.Background(), batchID, writeFile(t, "shipments.csv", shipmentsCSV))
	require.NoError(t, err)

	assert.Equal(t, "csv", enr.Format)
	assert.Equal(t, 4, enr.TotalRows)
	assert.Equal(t, 1, enr.SkippedRows, "row with a non-numeric value is dropped")
	assert.Equal(t, 0, enr.DuplicateRows)
	assert.Equal(t, goodsparser.DefaultLibrary().Version(), enr.ParserVersion)
	require.Len(t, enr.Rows, 3)
	assert.Equal(t, []int{1, 2, 4}, []int{enr.Rows[0].Line, enr.Rows[1].Line, enr.Rows[2].Line})

	basket := enr.Rows[0].Shipment
	assert.Equal(t, batchID, basket.BatchID)
	assert.Equal(t, 1, basket.RowIndex)
	require.NotNil(t, basket.Date)
	assert.True(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Equal(*basket.Date))
	assert.Equal(t, intPtr(2024), basket.Year)
	assert.Equal(t, intPtr(1), basket.Month)
	assert.Equal(t, intPtr(1), basket.Quarter)
	assert.Equal(t, strPtr("PCS"), basket.UnitStandardized)
	assert.Equal(t, 500.0, basket.DeclaredQuantity)
	assert.Equal(t, strPtr("MILD STEEL"), basket.Material)
	assert.Equal(t, strPtr("MS-101"), basket.ModelNumber)
	assert.Equal(t, strPtr("USD"), basket.PriceCurrency)
	assert.Equal(t, floatPtr(2.5), basket.PriceAmount)
	assert.Equal(t, "PCS", basket.UnitOfMeasure)
	assert.Equal(t, floatPtr(500), basket.Qty)
	assert.Equal(t, strPtr("Steel"), basket.Category)
	assert.Equal(t, strPtr("Mild Steel"), basket.SubCategory)
	assert.Equal(t, 124800.0, basket.GrandTotalINR)
	assert.Equal(t, floatPtr(249.6), basket.LandedCostPerUnit)
	assert.Equal(t, domain.JSONB{"HS CODE": "7323"}, basket.Extra)

	spoon := enr.Rows[1].Shipment
	assert.Equal(t, intPtr(2), spoon.Month)
	assert.Equal(t, 5000.0, spoon.TotalValueINR)
	assert.Equal(t, strPtr("Wooden"), spoon.Category)
	assert.Equal(t, strPtr("Spoon"), spoon.SubCategory)
	assert.Equal(t, floatPtr(100), spoon.Qty)
	assert.Equal(t, floatPtr(60), spoon.LandedCostPerUnit)

	mug := enr.Rows[2].Shipment
	assert.Nil(t, mug.Date)
	assert.Nil(t, mug.Year)
	assert.Equal(t, strPtr("Others"), mug.Category)
	assert.Equal(t, strPtr("Misc"), mug.SubCategory)
	assert.Equal(t, floatPtr(6), mug.Qty)
	assert.Equal(t, floatPtr(100), mug.LandedCostPerUnit)
}

func TestService_EnrichNormalizesDescriptions(t *testing.T) {
	csvData := "GOODS DESCRIPTION,QUANTITY,TOTAL VALUE_INR,DUTY PAID_INR\n" +
		"SS LADLE ＱＴＹ： ５０ PCS,50,1000,0\n"
	path := writeFile(t, "wide.csv", csvData)

	enr, err := NewService(testConfig(), nil, Dependencies{}, nil).Enrich(context.Background(), uuid.New(), path)
	require.NoError(t, err)
	require.Len(t, enr.Rows, 1)
	assert.Equal(t, "SS LADLE QTY: 50 PCS", enr.Rows[0].Shipment.GoodsDescription)
	assert.Equal(t, floatPtr(50), enr.Rows[0].Shipment.Qty)

	cfg := testConfig()
	cfg.NormalizeText = false
	enr, err = NewService(cfg, nil, Dependencies{}, nil).Enrich(context.Background(), uuid.New(), path)
	require.NoError(t, err)
	assert.Equal(t, floatPtr(1), enr.Rows[0].Shipment.Qty, "full-width QTY is not recognised without normalisation")
}

func TestService_EnrichCustomDescriptionColumn(t *testing.T) {
	csvData := "ITEM,QUANTITY,TOTAL VALUE_INR,DUTY PAID_INR\nCOPPER MUG 6 NOS,6,600,0\n"
	cfg := testConfig()
	cfg.DescriptionColumn = "ITEM"

	enr, err := NewService(cfg, nil, Dependencies{}, nil).Enrich(context.Background(), uuid.New(), writeFile(t, "items.csv", csvData))
	require.NoError(t, err)
	require.Len(t, enr.Rows, 1)
	assert.Equal(t, "COPPER MUG 6 NOS", enr.Rows[0].Shipment.GoodsDescription)
	assert.Empty(t, enr.Rows[0].Shipment.Extra)
}

func TestService_EnrichErrors(t *testing.T) {
	svc := NewService(testConfig(), nil, Dependencies{}, nil)
	ctx := context.Background()

	_, err := svc.Enrich(ctx, uuid.New(), writeFile(t, "legacy.xls", "whatever"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnsupportedFormat))

	_, err = svc.Enrich(ctx, uuid.New(), writeFile(t, "nodesc.csv", "QUANTITY,TOTAL VALUE_INR,DUTY PAID_INR\n1,2,3\n"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingColumn))

	_, err = svc.Enrich(ctx, uuid.New(), writeFile(t, "noduty.csv", "GOODS DESCRIPTION,QUANTITY,TOTAL VALUE_INR\nX,1,2\n"))
	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingColumn))
	appErr, _ := apperrors.GetAppError(err)
	assert.Equal(t, ColumnDutyPaid, appErr.Details["column"])

	_, err = svc.Enrich(ctx, uuid.New(), writeFile(t, "empty.csv", ""))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFileParseError))
}

func TestService_EnrichDeduplicates(t *testing.T) {
	csvData := "DATE,GOODS DESCRIPTION,QUANTITY,TOTAL VALUE_INR,DUTY PAID_INR\n" +
		"2024-01-15,SS LADLE,10,1000,100\n" +
		"2024-01-15,SS LADLE,10,1000,100\n" +
		"2024-01-15,SS LADLE,12,1000,100\n"

	dcfg := deduplication.DefaultConfig()
	dcfg.EnableLevel2 = false
	dcfg.StoreHashes = false

	svc := NewService(testConfig(), nil, Dependencies{
		Deduplicator: deduplication.NewService(dcfg, nil, nil),
	}, nil)

	enr, err := svc.Enrich(context.Background(), uuid.New(), writeFile(t, "dupes.csv", csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, enr.DuplicateRows)
	require.Len(t, enr.Rows, 2)
	assert.Equal(t, 1, enr.Rows[0].Line)
	assert.Equal(t, 3, enr.Rows[1].Line)
}

func TestService_IngestFile(t *testing.T) {
	batches := &mockBatchStore{}
	store := &mockShipmentStore{}
	exporter := &memoryExporter{}

	svc := NewService(testConfig(), nil, Dependencies{
		Batches:   batches,
		Shipments: store,
		Exporter:  exporter,
	}, nil)
	batchID := uuid.New()

	result, err := svc.IngestFile(context.Background(), batchID, writeFile(t, "shipments.csv", shipmentsCSV))
	require.NoError(t, err)

	assert.Equal(t, batchID, result.BatchID)
	assert.Equal(t, "/exports/"+batchID.String()+"/enriched.csv", result.OutputPath)
	assert.Equal(t, []string{
		domain.BatchStatusCleaning,
		domain.BatchStatusParsing,
		domain.BatchStatusPersisting,
		domain.BatchStatusCompleted,
	}, batches.statuses)

	require.NotNil(t, batches.completed)
	assert.Equal(t, 4, batches.completed.TotalRecords)
	assert.Equal(t, 3, batches.completed.ProcessedRecords)
	assert.Equal(t, 1, batches.completed.SkippedRecords)
	assert.Equal(t, result.OutputPath, batches.completed.OutputPath)
	assert.Equal(t, "csv", batches.completed.Metadata["format"])

	require.Len(t, store.saved, 3)
	assert.Equal(t, 100, store.batchSize)
	assert.Equal(t, 1, store.saved[0].RowIndex)
	assert.Equal(t, 4, store.saved[2].RowIndex)

	assert.Equal(t, DefaultExportName, exporter.name)
	rows, err := csv.NewReader(&exporter.buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "landed_cost_per_unit", rows[0][len(rows[0])-1])
	assert.Equal(t, "249.6", rows[1][len(rows[1])-1])
}

func TestService_IngestFileMarksFailure(t *testing.T) {
	batches := &mockBatchStore{}
	store := &mockShipmentStore{err: errors.New("connection reset")}

	svc := NewService(testConfig(), nil, Dependencies{Batches: batches, Shipments: store}, nil)

	_, err := svc.IngestFile(context.Background(), uuid.New(), writeFile(t, "shipments.csv", shipmentsCSV))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseError))
	assert.Equal(t, domain.BatchStatusFailed, batches.statuses[len(batches.statuses)-1])
	assert.ErrorContains(t, batches.failed, "connection reset")
}

func TestService_IngestFileCancelledStillMarksFailure(t *testing.T) {
	batches := &mockBatchStore{}
	svc := NewService(testConfig(), nil, Dependencies{Batches: batches}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.IngestFile(ctx, uuid.New(), writeFile(t, "shipments.csv", shipmentsCSV))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batches.failed)
}

func TestService_ParseDescriptions(t *testing.T) {
	svc := NewService(testConfig(), nil, Dependencies{}, nil)

	records, err := svc.ParseDescriptions(context.Background(), []goodsparser.Input{
		{Description: "COPPER MUG 6 NOS"},
		{Description: "SS LADLE ＱＴＹ 40", Category: "Steel"},
		{Description: ""},
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, floatPtr(6), records[0].Quantity)
	assert.Equal(t, floatPtr(40), records[1].Quantity)
	assert.Equal(t, strPtr("Steel"), records[1].Category)
	assert.Equal(t, goodsparser.DefaultRecord(), records[2])
}
