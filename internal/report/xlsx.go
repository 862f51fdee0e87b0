package report

import (
	"fmt"
	"io"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Wind Analysis"

// XLSXPrefix is the file name prefix of tabular exports.
const XLSXPrefix = "wind_analysis"

// WriteXLSX writes rows as a single flat sheet: a metadata block followed by
// Section, Metric, Value columns. It returns ErrNoData without writing when
// rows is empty.
func WriteXLSX(w io.Writer, rows []Row, meta Meta) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	line := 1
	set := func(col int, v any, style int) error {
		cell, err := excelize.CoordinatesToCellName(col, line)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
		if style != 0 {
			return f.SetCellStyle(sheetName, cell, cell, style)
		}
		return nil
	}

	for _, kv := range metaLines(meta) {
		if err := set(1, kv[0], bold); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		if err := set(2, kv[1], 0); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		line++
	}
	line++

	for col, h := range []string{"Section", "Metric", "Value"} {
		if err := set(col+1, h, bold); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	line++

	for _, r := range rows {
		if r.Header {
			if err := set(1, r.Section, bold); err != nil {
				return fmt.Errorf("write row %d: %w", line, err)
			}
			line++
			continue
		}
		for col, v := range []string{r.Section, r.Label, r.Value} {
			if err := set(col+1, v, 0); err != nil {
				return fmt.Errorf("write row %d: %w", line, err)
			}
		}
		line++
	}

	for col, width := range []float64{22, 36, 48} {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, name, name, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func metaLines(meta Meta) [][2]string {
	title := meta.Title
	if title == "" {
		title = "Wind Resource Analysis"
	}
	lines := [][2]string{{"Report", title}}
	if meta.Region != (domain.Region{}) {
		lines = append(lines, [2]string{"Region", meta.Region.String()})
	}
	if meta.StartDate != "" || meta.EndDate != "" {
		lines = append(lines, [2]string{"Period", meta.StartDate + " to " + meta.EndDate})
	}
	lines = append(lines, [2]string{"Speed unit", meta.Unit.Label()})
	if !meta.Generated.IsZero() {
		lines = append(lines, [2]string{"Generated", meta.Generated.Format("2006-01-02 15:04 MST")})
	}
	return lines
}
