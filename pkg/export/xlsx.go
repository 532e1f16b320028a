package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxMinWidth = 10.0
	xlsxMaxWidth = 48.0
)

// XLSXRenderer writes a single-sheet workbook with a bold, filterable header.
type XLSXRenderer struct{}

// NewXLSXRenderer constructs an XLSX renderer.
func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

// ContentType implements Renderer.
func (r *XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (r *XLSXRenderer) Extension() string { return "xlsx" }

// Render implements Renderer.
func (r *XLSXRenderer) Render(data Dataset) ([]byte, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if data.Title != "" {
		name := sheetName(data.Title)
		if err := f.SetSheetName(sheet, name); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		sheet = name
	}

	widths := make([]float64, len(data.Headers))
	for col, header := range data.Headers {
		if err := setCell(f, sheet, col, 1, header); err != nil {
			return nil, err
		}
		widths[col] = float64(len([]rune(header))) + 2
	}
	for r, row := range data.Rows {
		for col, value := range row {
			if err := setCell(f, sheet, col, r+2, value); err != nil {
				return nil, err
			}
			if w := float64(len([]rune(value))) * 1.1; w > widths[col] {
				widths[col] = w
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, fmt.Errorf("resolve column name: %w", err)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", last+"1", bold)
	}
	_ = f.AutoFilter(sheet, "A1:"+last+"1", nil)

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, clampWidth(w))
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return fmt.Errorf("resolve cell: %w", err)
	}
	if err := f.SetCellStr(sheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func clampWidth(w float64) float64 {
	if w < xlsxMinWidth {
		return xlsxMinWidth
	}
	if w > xlsxMaxWidth {
		return xlsxMaxWidth
	}
	return w
}

// sheetName trims title to Excel's 31 character limit and strips reserved runes.
func sheetName(title string) string {
	out := make([]rune, 0, 31)
	for _, r := range title {
		switch r {
		case '\\', '/', '?', '*', '[', ']', ':':
			r = '_'
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	return string(out)
}
