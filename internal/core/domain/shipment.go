package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shipment is one cleaned, parsed and enriched row of a shipment export
type Shipment struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BatchID  uuid.UUID `gorm:"type:uuid;not null;index:idx_shipments_batch_row,priority:1" json:"batch_id"`
	RowIndex int       `gorm:"not null;index:idx_shipments_batch_row,priority:2" json:"row_index"`

	// Source columns after cleaning
	Date             *time.Time `gorm:"type:date" json:"date,omitempty"`
	Year             *int       `json:"year,omitempty"`
	Month            *int       `json:"month,omitempty"`
	Quarter          *int       `json:"quarter,omitempty"`
	GoodsDescription string     `gorm:"type:text" json:"goods_description"`
	Unit             string     `gorm:"type:text" json:"unit,omitempty"`
	UnitStandardized *string    `gorm:"type:varchar(8)" json:"unit_standardized,omitempty"`
	DeclaredQuantity float64    `json:"declared_quantity"`
	TotalValueINR    float64    `gorm:"column:total_value_inr" json:"total_value_inr"`
	DutyPaidINR      float64    `gorm:"column:duty_paid_inr" json:"duty_paid_inr"`

	// Parsed from the goods description
	Material      *string  `gorm:"type:text;index" json:"material,omitempty"`
	ModelNumber   *string  `gorm:"type:text" json:"model_number,omitempty"`
	PriceCurrency *string  `gorm:"type:text" json:"price_currency,omitempty"`
	PriceAmount   *float64 `json:"price_amount,omitempty"`
	Capacity      string   `gorm:"type:text" json:"capacity"`
	UnitOfMeasure string   `gorm:"type:text" json:"unit_of_measure"`
	Qty           *float64 `json:"qty,omitempty"`
	ModelName     string   `gorm:"type:text" json:"model_name"`

	// Derived features
	Category          *string  `gorm:"type:varchar(32);index" json:"category,omitempty"`
	SubCategory       *string  `gorm:"type:varchar(64)" json:"sub_category,omitempty"`
	GrandTotalINR     float64  `gorm:"column:grand_total_inr" json:"grand_total_inr"`
	LandedCostPerUnit *float64 `json:"landed_cost_per_unit,omitempty"`

	// Columns not mapped above, keyed by header
	Extra JSONB `gorm:"type:jsonb" json:"extra,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Batch *Batch `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
}

// TableName specifies the table name for GORM
func (Shipment) TableName() string {
	return "shipments"
}

// BeforeCreate GORM hook
func (s *Shipment) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
