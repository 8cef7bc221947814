package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	"github.com/google/uuid"
)

// ErrFileTooLarge is returned when an upload exceeds the size limit
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ErrNotFound is returned when a stored file does not exist
var ErrNotFound = errors.New("file not found")

const (
	uploadsDir = "uploads"
	exportsDir = "exports"
)

// LocalStorage keeps uploads and enriched exports on the local filesystem:
//
//	<base>/uploads/<batch id>/<original name>
//	<base>/exports/<batch id>/<export name>
type LocalStorage struct {
	basePath string
	logger   *slog.Logger
}

// FileMetadata contains information about stored files
type FileMetadata struct {
	BatchID      uuid.UUID
	OriginalName string
	StoredPath   string
	Size         int64
	Hash         string
	ContentType  string
	CreatedAt    time.Time
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(cfg config.StorageConfig, logger *slog.Logger) (*LocalStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{basePath: cfg.BasePath, logger: logger}, nil
}

// SaveUpload stores an uploaded file and hashes it on the way through.
// maxBytes <= 0 disables the size check. An oversized upload is removed and ErrFileTooLarge returned.
func (s *LocalStorage) SaveUpload(ctx context.Context, batchID uuid.UUID, filename string, reader io.Reader, maxBytes int64) (*FileMetadata, error) {
	uploadDir := filepath.Join(s.basePath, uploadsDir, batchID.String())
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	safeName := sanitizeName(filename)
	destPath := filepath.Join(uploadDir, safeName)

	destFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}

	src := reader
	if maxBytes > 0 {
		src = io.LimitReader(reader, maxBytes+1)
	}

	hash := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(destFile, hash), src)
	closeErr := destFile.Close()

	switch {
	case copyErr != nil:
		_ = os.RemoveAll(uploadDir)
		return nil, fmt.Errorf("failed to copy file: %w", copyErr)
	case closeErr != nil:
		_ = os.RemoveAll(uploadDir)
		return nil, fmt.Errorf("failed to close file: %w", closeErr)
	case maxBytes > 0 && size > maxBytes:
		_ = os.RemoveAll(uploadDir)
		return nil, ErrFileTooLarge
	}

	metadata := &FileMetadata{
		BatchID:      batchID,
		OriginalName: filename,
		StoredPath:   destPath,
		Size:         size,
		Hash:         hex.EncodeToString(hash.Sum(nil)),
		ContentType:  ContentType(filename),
		CreatedAt:    time.Now().UTC(),
	}

	s.logger.Info("file uploaded successfully",
		slog.String("batch_id", batchID.String()),
		slog.String("filename", safeName),
		slog.Int64("size", size),
		slog.String("hash", metadata.Hash))

	return metadata, nil
}

// WriteExport writes an export for a batch through write and returns its path.
// The file is written under a temporary name and renamed, so readers never see a partial export.
func (s *LocalStorage) WriteExport(ctx context.Context, batchID uuid.UUID, filename string, write func(io.Writer) error) (string, error) {
	return s.writeAtomic(filepath.Join(s.basePath, exportsDir, batchID.String()), sanitizeName(filename), write)
}

// WriteFile writes to an explicit path with the same atomic rename as WriteExport
func (s *LocalStorage) WriteFile(ctx context.Context, path string, write func(io.Writer) error) (string, error) {
	return s.writeAtomic(filepath.Dir(path), filepath.Base(path), write)
}

func (s *LocalStorage) writeAtomic(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to close export: %w", err)
	}

	finalPath := filepath.Join(dir, name)
	if err := os.Rename(tmpName, finalPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}

	s.logger.Info("export written", slog.String("path", finalPath))
	return finalPath, nil
}

// OpenExport opens a previously written export of a batch
func (s *LocalStorage) OpenExport(ctx context.Context, batchID uuid.UUID, filename string) (*os.File, error) {
	path := filepath.Join(s.basePath, exportsDir, batchID.String(), sanitizeName(filename))

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	return f, nil
}

// DeleteBatch removes the upload and exports of a batch
func (s *LocalStorage) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	for _, dir := range []string{uploadsDir, exportsDir} {
		path := filepath.Join(s.basePath, dir, batchID.String())
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s directory: %w", dir, err)
		}
	}

	s.logger.Info("batch files deleted", slog.String("batch_id", batchID.String()))
	return nil
}

// CleanupOldFiles removes batch directories older than the given duration
func (s *LocalStorage) CleanupOldFiles(ctx context.Context, olderThan time.Duration) error {
	cutoffTime := time.Now().Add(-olderThan)

	for _, dir := range []string{uploadsDir, exportsDir} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.cleanupDirectory(filepath.Join(s.basePath, dir), cutoffTime); err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", dir, err)
		}
	}

	s.logger.Info("cleanup completed", slog.Duration("older_than", olderThan))
	return nil
}

func (s *LocalStorage) cleanupDirectory(dir string, cutoffTime time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to get file info",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}

		if !info.ModTime().Before(cutoffTime) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			s.logger.Warn("failed to remove directory",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}
		s.logger.Debug("removed old directory",
			slog.String("path", dirPath),
			slog.Time("mod_time", info.ModTime()))
	}

	return nil
}

// ExportPath returns where WriteExport places filename for a batch
func (s *LocalStorage) ExportPath(batchID uuid.UUID, filename string) string {
	return filepath.Join(s.basePath, exportsDir, batchID.String(), sanitizeName(filename))
}

func sanitizeName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}

// ContentType returns the content type based on file extension
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".json":
		return "application/json"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}
