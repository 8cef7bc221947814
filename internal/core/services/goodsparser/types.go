package goodsparser

// DefaultUnit is used when no unit token can be resolved
const DefaultUnit = "PCS"

// Price is a currency code paired with the declared amount
type Price struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// ParsedRecord holds the attributes extracted from one goods description
type ParsedRecord struct {
	Material      *string  `json:"material"`
	ModelNumber   *string  `json:"model_number"`
	Price         *Price   `json:"price"`
	Capacity      string   `json:"capacity"`
	UnitOfMeasure string   `json:"unit_of_measure"`
	Quantity      *float64 `json:"quantity"`
	ModelName     string   `json:"model_name"`

	// Category is carried through untouched; no extraction stage reads it
	Category *string `json:"category,omitempty"`
}

// Input is one description with its optional category hint
type Input struct {
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// DefaultRecord is the record returned for a missing description
func DefaultRecord() ParsedRecord {
	return ParsedRecord{
		Capacity:      FinalizeCapacity(nil, DefaultUnit),
		UnitOfMeasure: DefaultUnit,
	}
}

func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
