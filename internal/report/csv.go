package report

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

func renderCSV(l *layout) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	var records [][]string
	for _, line := range l.header {
		records = append(records, []string{line})
	}
	records = append(records, []string{""})
	for _, line := range l.summary {
		records = append(records, []string{line})
	}
	records = append(records, []string{""}, tableHeader)
	for _, row := range l.rows {
		rec := make([]string, len(row))
		for i, v := range row {
			switch t := v.(type) {
			case string:
				rec[i] = t
			case int:
				rec[i] = strconv.Itoa(t)
			}
		}
		records = append(records, rec)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
