package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"wjjfit/domain/event"
	"wjjfit/domain/sample"
	"wjjfit/internal/errors"

	"github.com/xuri/excelize/v2"
)

// WriteRecords stores records as the record set recordSet at path, in the
// layout Scan reads back. Array fields are spread over indexed columns.
func WriteRecords(path, recordSet string, records []event.Record) error {
	headers := columns(records)
	rows := make([][]any, 0, len(records)+1)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	rows = append(rows, header)

	for _, rec := range records {
		row := make([]any, len(headers))
		for name, v := range rec {
			switch x := v.(type) {
			case []float64:
				for i, f := range x {
					row[index(headers, fmt.Sprintf("%s[%d]", name, i))] = f
				}
			default:
				row[index(headers, name)] = x
			}
		}
		rows = append(rows, row)
	}

	if fileType(path) == "csv" {
		return writeCSV(path, rows)
	}
	return writeExcel(path, recordSet, rows)
}

// WriteSample stores an unbinned sample as a single-column record set
func WriteSample(path, recordSet string, s *sample.Sample) error {
	records := make([]event.Record, len(s.Values))
	for i, v := range s.Values {
		records[i] = event.Record{s.Observable: v}
	}
	return WriteRecords(path, recordSet, records)
}

func columns(records []event.Record) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for name, v := range rec {
			if arr, ok := v.([]float64); ok {
				for i := range arr {
					seen[fmt.Sprintf("%s[%d]", name, i)] = true
				}
				continue
			}
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func index(headers []string, name string) int {
	return sort.SearchStrings(headers, name)
}

func writeExcel(path, sheet string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return errors.Wrapf(errors.WithCode(errors.CodeInvalidInput, err), "create sheet %s", sheet)
	}
	f.SetActiveSheet(idx)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return errors.SourceError(path, err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.SourceError(path, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.SourceError(path, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.SourceError(path, err)
	}
	return nil
}

func writeCSV(path string, rows [][]any) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.SourceError(path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := w.Write(record); err != nil {
			return errors.SourceError(path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.SourceError(path, err)
	}
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
