package report

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/featuregen/pkg/types"
)

const (
	headerFill = "366092"
	passFill   = "90EE90"
	failFill   = "FFB6C1"

	summaryRow     = 7
	resultsRow     = 13
	tableHeaderRow = 14
)

type styles struct {
	title, section, header, passed, failed int
}

func newStyles(f *excelize.File) (*styles, error) {
	var s styles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}}); err != nil {
		return nil, err
	}
	if s.section, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return nil, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	}); err != nil {
		return nil, err
	}
	if s.passed, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{passFill}, Pattern: 1},
	}); err != nil {
		return nil, err
	}
	if s.failed, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{failFill}, Pattern: 1},
	}); err != nil {
		return nil, err
	}
	return &s, nil
}

// widths tracks the longest value written to each column.
type widths map[int]int

func (w widths) observe(col int, v any) {
	if n := utf8.RuneCountInString(fmt.Sprint(v)); n > w[col] {
		w[col] = n
	}
}

func renderXLSX(l *layout) (data []byte, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("create styles: %w", err)
	}

	w := widths{}
	set := func(col, row int, v any, style int) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
		if style != 0 {
			if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
				return fmt.Errorf("style %s: %w", cell, err)
			}
		}
		w.observe(col, v)
		return nil
	}

	for i, line := range l.header {
		style := 0
		if i == 0 {
			style = st.title
		}
		if err := set(1, 1+i, line, style); err != nil {
			return nil, err
		}
	}
	for i, line := range l.summary {
		style := 0
		if i == 0 {
			style = st.section
		}
		if err := set(1, summaryRow+i, line, style); err != nil {
			return nil, err
		}
	}

	if len(l.rows) > 0 {
		if err := set(1, resultsRow, "Test Results", st.section); err != nil {
			return nil, err
		}
		for i, h := range tableHeader {
			if err := set(i+1, tableHeaderRow, h, st.header); err != nil {
				return nil, err
			}
		}
		for i, row := range l.rows {
			r := tableHeaderRow + 1 + i
			for c, v := range row {
				style := 0
				if c == 1 {
					switch l.status[i] {
					case types.StatusPassed:
						style = st.passed
					case types.StatusFailed:
						style = st.failed
					}
				}
				if err := set(c+1, r, v, style); err != nil {
					return nil, err
				}
			}
		}
	}

	for col, n := range w {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, float64(min(n+2, maxColWidth))); err != nil {
			return nil, fmt.Errorf("set width %s: %w", name, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
