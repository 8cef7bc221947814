package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Batch statuses, in pipeline order
const (
	BatchStatusUploaded   = "uploaded"
	BatchStatusCleaning   = "cleaning"
	BatchStatusParsing    = "parsing"
	BatchStatusPersisting = "persisting"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// Batch is one uploaded shipment export and the state of its ingest run
type Batch struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OriginalFilename string     `gorm:"type:varchar(500);not null" json:"original_filename"`
	FilePath         string     `gorm:"type:text" json:"file_path"`
	FileHash         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"file_hash"` // For idempotency
	Status           string     `gorm:"type:varchar(50);not null;default:'uploaded'" json:"status"`
	TotalRecords     int        `gorm:"default:0" json:"total_records"`
	ProcessedRecords int        `gorm:"default:0" json:"processed_records"`
	SkippedRecords   int        `gorm:"default:0" json:"skipped_records"`
	DuplicateRecords int        `gorm:"default:0" json:"duplicate_records"`
	Reingests        int        `gorm:"not null;default:0" json:"reingests"`
	ParserVersion    string     `gorm:"type:varchar(32)" json:"parser_version,omitempty"`
	OutputPath       string     `gorm:"type:text" json:"output_path,omitempty"`
	Error            string     `gorm:"type:text" json:"error,omitempty"`
	Metadata         JSONB      `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`

	// Relations
	Shipments   []Shipment  `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"shipments,omitempty"`
	DedupHashes []DedupHash `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"dedup_hashes,omitempty"`
}

// TableName specifies the table name for GORM
func (Batch) TableName() string {
	return "batches"
}

// BeforeCreate GORM hook - called before creating a record
func (b *Batch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// ValidStatuses returns list of valid batch statuses
func ValidStatuses() []string {
	return []string{
		BatchStatusUploaded,
		BatchStatusCleaning,
		BatchStatusParsing,
		BatchStatusPersisting,
		BatchStatusCompleted,
		BatchStatusFailed,
	}
}

// IsValidStatus checks if a status is valid
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the batch will not change status again
func (b *Batch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}
