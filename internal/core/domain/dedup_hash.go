package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dedup levels recorded on each hash row
const (
	DedupLevelUnique    = 0
	DedupLevelWithinRun = 1
	DedupLevelAcrossRun = 2
)

// DedupHash is the fingerprint of one source row of a batch
type DedupHash struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BatchID  uuid.UUID `gorm:"type:uuid;not null;index:idx_dedup_batch_hash" json:"batch_id"`
	Hash     string    `gorm:"type:varchar(64);not null;index:idx_dedup_batch_hash;index:idx_dedup_hash_kept" json:"hash"`
	RowIndex int       `gorm:"not null" json:"row_index"`
	Kept     bool      `gorm:"not null;index:idx_dedup_hash_kept" json:"kept"`

	// Level says why a row was dropped; DuplicateOf is the first row with the same hash in this batch
	Level       int  `gorm:"not null;default:0" json:"level"`
	DuplicateOf *int `json:"duplicate_of,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Batch *Batch `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
}

// TableName specifies the table name for GORM
func (DedupHash) TableName() string {
	return "dedup_hashes"
}

// BeforeCreate GORM hook
func (d *DedupHash) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Models lists every table owned by the service, in migration order
func Models() []any {
	return []any{&Batch{}, &Shipment{}, &DedupHash{}}
}
