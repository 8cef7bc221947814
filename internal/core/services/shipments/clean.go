package shipments

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Source columns of a shipment export
const (
	ColumnDate        = "DATE"
	ColumnDescription = "GOODS DESCRIPTION"
	ColumnUnit        = "UNIT"
	ColumnQuantity    = "QUANTITY"
	ColumnTotalValue  = "TOTAL VALUE_INR"
	ColumnDutyPaid    = "DUTY PAID_INR"
)

// RequiredNumericColumns must hold a number for a row to be kept
var RequiredNumericColumns = []string{ColumnTotalValue, ColumnDutyPaid, ColumnQuantity}

// Tried after cast's own layouts. Exports use day-first numeric dates;
// "01-02-06" is the default date format excelize renders.
var dayFirstLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"02-Jan-2006",
	"02-Jan-06",
	"01-02-06",
}

// ParseDate parses a loosely formatted date. Unparseable values give nil.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if t, err := cast.ToTimeE(value); err == nil {
		t = t.UTC()
		return &t
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// DeriveCalendar returns the year, month and quarter of t, all nil when t is nil
func DeriveCalendar(t *time.Time) (year, month, quarter *int) {
	if t == nil {
		return nil, nil, nil
	}
	y, m := t.Year(), int(t.Month())
	q := (m-1)/3 + 1
	return &y, &m, &q
}

// ParseNumber parses a declared amount. Thousands separators are accepted;
// NaN and infinities are not numbers here.
func ParseNumber(value string) (float64, bool) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return 0, false
	}

	f, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// RequireNumeric parses columns of values. ok is false if any is missing or not a number.
func RequireNumeric(values map[string]string, columns []string) (map[string]float64, bool) {
	out := make(map[string]float64, len(columns))
	for _, c := range columns {
		f, ok := ParseNumber(values[c])
		if !ok {
			return nil, false
		}
		out[c] = f
	}
	return out, true
}

var unitMap = map[string]string{
	"nos":    "PCS",
	"pcs":    "PCS",
	"pieces": "PCS",
	"piece":  "PCS",
	"units":  "PCS",
	"kg":     "KG",
	"kgs":    "KG",
	"gm":     "GM",
	"gms":    "GM",
}

// StandardizeUnit maps a declared unit to PCS, KG or GM; unknown units give nil
func StandardizeUnit(unit string) *string {
	std, ok := unitMap[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return nil
	}
	return &std
}
