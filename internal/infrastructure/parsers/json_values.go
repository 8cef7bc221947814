package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// decodeObject reads one JSON object from dec, keeping its key order.
// Scalar values are rendered as strings, nested values as their verbatim JSON.
func decodeObject(dec *json.Decoder) ([]string, map[string]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var keys []string
	values := make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		value, err := scalarString(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}

		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

func scalarString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	switch raw[0] {
	case '{', '[':
		return string(raw), nil
	case 'n':
		return "", nil
	case '"', 't', 'f':
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", err
		}
		return cast.ToStringE(v)
	default:
		// Numbers keep their literal so 30 stays "30"
		return string(raw), nil
	}
}

// columnSet collects column names in first-seen order
type columnSet struct {
	names []string
	seen  map[string]struct{}
}

func newColumnSet() *columnSet {
	return &columnSet{seen: make(map[string]struct{})}
}

func (c *columnSet) add(keys []string) {
	for _, k := range keys {
		if _, ok := c.seen[k]; !ok {
			c.seen[k] = struct{}{}
			c.names = append(c.names, k)
		}
	}
}

// fill gives every record every column so rows stay rectangular
func fill(records []Record, columns []string) {
	for _, rec := range records {
		for _, col := range columns {
			if _, ok := rec.Values[col]; !ok {
				rec.Values[col] = ""
			}
		}
	}
}

func objectRecord(line int, values map[string]string, trim bool) Record {
	if trim {
		for k, v := range values {
			values[k] = strings.TrimSpace(v)
		}
	}
	return Record{Line: line, Values: values}
}

func allBlank(values map[string]string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func columnsOrEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
