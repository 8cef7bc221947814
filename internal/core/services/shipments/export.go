package shipments

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Export formats
const (
	ExportCSV  = "csv"
	ExportXLSX = "xlsx"
)

// Columns appended after the source columns of an enriched export
var DerivedColumns = []string{
	"YEAR",
	"MONTH",
	"QUARTER",
	"unit_standardized",
	"Master category",
	"Model Number",
	"Price Currency",
	"Price",
	"Capacity",
	"Unit of measure",
	"Qty",
	"Model Name",
	"Category",
	"Sub-Category",
	"Grand Total (INR)",
	"landed_cost_per_unit",
}

// ExportFormatFor picks the export format from a file name; anything but .xlsx is CSV
func ExportFormatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ExportXLSX
	}
	return ExportCSV
}

// WriteExport writes e to w as CSV or XLSX
func WriteExport(w io.Writer, format string, e *Enrichment) error {
	switch format {
	case ExportCSV:
		return WriteCSV(w, e)
	case ExportXLSX:
		return WriteXLSX(w, e)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteCSV writes the source columns followed by DerivedColumns, one line per kept row
func WriteCSV(w io.Writer, e *Enrichment) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportHeader(e)); err != nil {
		return err
	}
	for _, row := range e.Rows {
		if err := cw.Write(exportRow(e, row)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same table as WriteCSV into a single-sheet workbook
func WriteXLSX(w io.Writer, e *Enrichment) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	writeRow := func(n int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = v
		}
		return sw.SetRow(cell, cells)
	}

	if err := writeRow(1, exportHeader(e)); err != nil {
		return err
	}
	for i, row := range e.Rows {
		if err := writeRow(i+2, exportRow(e, row)); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func exportHeader(e *Enrichment) []string {
	header := make([]string, 0, len(e.Columns)+len(DerivedColumns))
	header = append(header, e.Columns...)
	return append(header, DerivedColumns...)
}

func exportRow(e *Enrichment, row Row) []string {
	sh := row.Shipment
	out := make([]string, 0, len(e.Columns)+len(DerivedColumns))

	for _, c := range e.Columns {
		v := row.Values[c]
		switch c {
		case ColumnDate:
			// Unparseable dates are blanked like the calendar columns
			v = ""
			if sh.Date != nil {
				v = sh.Date.Format("2006-01-02")
			}
		case e.DescriptionColumn:
			v = sh.GoodsDescription
		}
		out = append(out, v)
	}

	return append(out,
		formatInt(sh.Year),
		formatInt(sh.Month),
		formatInt(sh.Quarter),
		formatString(sh.UnitStandardized),
		formatString(sh.Material),
		formatString(sh.ModelNumber),
		formatString(sh.PriceCurrency),
		formatFloat(sh.PriceAmount),
		sh.Capacity,
		sh.UnitOfMeasure,
		formatFloat(sh.Qty),
		sh.ModelName,
		formatString(sh.Category),
		formatString(sh.SubCategory),
		strconv.FormatFloat(sh.GrandTotalINR, 'f', -1, 64),
		formatFloat(sh.LandedCostPerUnit),
	)
}

func formatString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
