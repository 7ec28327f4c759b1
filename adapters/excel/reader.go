// Package excel serves event records from spreadsheet files: one xlsx sheet
// or one csv file per record set, one event per row, with a header row of
// branch names. Array branches are spread over indexed columns such as
// "JetPFCor_Pt[0]" ... "JetPFCor_Pt[5]".
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wjjfit/domain/event"
	"wjjfit/internal/errors"
	"wjjfit/internal/logging"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// DataReader reads event records from xlsx and csv files
type DataReader struct {
	logger *zap.Logger
}

// NewDataReader creates a reader
func NewDataReader() *DataReader {
	return &DataReader{logger: logging.Component("excel")}
}

func fileType(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return "csv"
	}
	return "xlsx"
}

// Scan implements ports.EventSource. For xlsx files the record set names a
// sheet. A csv file holds the single record set named after the file's base
// name; when locator is a directory, the record set is read from
// <locator>/<recordSet>.csv.
func (r *DataReader) Scan(ctx context.Context, locator, recordSet string, fn func(event.Record) error) error {
	info, err := os.Stat(locator)
	if os.IsNotExist(err) {
		return errors.NotFound(fmt.Sprintf("record set %s in %s", recordSet, locator))
	}
	if err != nil {
		return errors.SourceError(locator, err)
	}
	if info.IsDir() {
		locator = filepath.Join(locator, recordSet+".csv")
		if _, err := os.Stat(locator); os.IsNotExist(err) {
			return errors.NotFound(fmt.Sprintf("record set %s in %s", recordSet, filepath.Dir(locator)))
		}
	}

	start := time.Now()
	var n int
	count := func(rec event.Record) error {
		n++
		return fn(rec)
	}
	switch fileType(locator) {
	case "csv":
		err = r.scanCSV(ctx, locator, recordSet, count)
	default:
		err = r.scanExcel(ctx, locator, recordSet, count)
	}
	if err != nil {
		return err
	}
	r.logger.Debug("scanned record set",
		zap.String("locator", locator),
		zap.String("record_set", recordSet),
		zap.Int("records", n),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (r *DataReader) scanExcel(ctx context.Context, path, sheet string, fn func(event.Record) error) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return errors.SourceError(path, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return errors.NotFound(fmt.Sprintf("record set %s in %s", sheet, path))
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return errors.SourceError(path, err)
	}
	defer rows.Close()
	return r.scanRows(ctx, path, rows, fn)
}

// rowStream is the part of *excelize.Rows a sheet scan reads
type rowStream interface {
	Next() bool
	Columns(opts ...excelize.Options) ([]string, error)
	Error() error
}

func (r *DataReader) scanRows(ctx context.Context, path string, rows rowStream, fn func(event.Record) error) error {
	var headers []string
	line := 0
	for rows.Next() {
		line++
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return errors.SourceError(path, err)
		}
		if headers == nil {
			headers = trimAll(cells)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processRow(headers, cells, path, line, fn); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return errors.SourceError(path, err)
	}
	return nil
}

func (r *DataReader) scanCSV(ctx context.Context, path, recordSet string, fn func(event.Record) error) error {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if stem != recordSet {
		return errors.NotFound(fmt.Sprintf("record set %s in %s", recordSet, path))
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.SourceError(path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	headerRow, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.SourceError(path, err)
	}
	headers := trimAll(headerRow)

	for line := 2; ; line++ {
		cells, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.SourceError(path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processRow(headers, cells, path, line, fn); err != nil {
			return err
		}
	}
}

// processRow converts one raw string row into a record
func (r *DataReader) processRow(headers, cells []string, path string, line int, fn func(event.Record) error) error {
	cols := make(map[string]any, len(headers))
	for j, cell := range cells {
		if j < len(headers) && headers[j] != "" {
			cols[headers[j]] = cell
		}
	}
	rec, err := event.FromColumns(cols)
	if err != nil {
		return errors.Wrapf(err, "%s row %d", path, line)
	}
	return fn(rec)
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
