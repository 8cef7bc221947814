package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB is a custom type for JSONB columns
type JSONB map[string]any

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (j *JSONB) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan jsonb: unsupported type %T", src)
	}

	out := JSONB{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan jsonb: %w", err)
	}
	*j = out
	return nil
}
