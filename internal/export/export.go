// Package export writes lead records as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Leads"

// ParseFormat accepts "csv" or "xlsx", case-insensitively. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns a download name stamped with at.
func (f Format) Filename(at time.Time) string {
	return fmt.Sprintf("leads-%s.%s", at.UTC().Format("20060102-150405"), f)
}

// Header is the column order of both formats.
var Header = []string{
	"id", "company", "industry", "size", "location", "address", "phone", "email",
	"website", "need", "score", "grade", "rating", "review_count", "place_id",
	"source", "sector", "city", "status", "created_at",
}

// Row renders one lead in Header order.
func Row(l model.LeadRecord) []string {
	return []string{
		l.ID,
		l.Company,
		l.Industry,
		string(l.Size),
		l.Location,
		l.Address,
		l.Phone,
		l.Email,
		l.Website,
		string(l.Need),
		fmt.Sprintf("%.1f", l.Score),
		string(l.Grade),
		fmt.Sprintf("%.1f", l.Rating),
		fmt.Sprintf("%d", l.ReviewCount),
		l.PlaceID,
		l.Source,
		l.Sector,
		l.City,
		string(l.Status),
		l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Write renders leads to w in the given format.
func Write(w io.Writer, f Format, leads []model.LeadRecord) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, leads)
	case FormatXLSX:
		return WriteXLSX(w, leads)
	default:
		return eris.Errorf("export: unsupported format %q", f)
	}
}

// WriteCSV writes a header row followed by one row per lead.
func WriteCSV(w io.Writer, leads []model.LeadRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, l := range leads {
		if err := cw.Write(Row(l)); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush CSV")
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook. Score, rating and review count
// are numeric cells.
func WriteXLSX(w io.Writer, leads []model.LeadRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	for _, l := range leads {
		row := sheet.AddRow()
		for i, v := range Row(l) {
			cell := row.AddCell()
			switch Header[i] {
			case "score":
				cell.SetFloat(l.Score)
			case "rating":
				cell.SetFloat(l.Rating)
			case "review_count":
				cell.SetInt(l.ReviewCount)
			default:
				cell.SetString(v)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write XLSX")
	}
	return nil
}
