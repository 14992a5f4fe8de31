package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/logger"
)

// ExcelSource reads invoice lines from one sheet of an .xlsx workbook,
// either on disk or already held in memory.
type ExcelSource struct {
	name  string
	data  []byte
	sheet string
}

// NewExcelSource reads the named sheet of the workbook at path. An empty
// sheet selects the first one.
func NewExcelSource(path, sheet string) *ExcelSource {
	return &ExcelSource{name: path, sheet: sheet}
}

// NewExcelSourceFromBytes reads a workbook already loaded into memory.
func NewExcelSourceFromBytes(name string, data []byte, sheet string) *ExcelSource {
	return &ExcelSource{name: name, data: data, sheet: sheet}
}

func (s *ExcelSource) open() (*excelize.File, error) {
	if s.data != nil {
		return excelize.OpenReader(bytes.NewReader(s.data))
	}
	return excelize.OpenFile(s.name)
}

// Load implements Source.
func (s *ExcelSource) Load(ctx context.Context) ([]domain.Row, error) {
	log := logger.FromContext(ctx)

	f, err := s.open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ExcelSource.Load: %s: %w", s.name, domain.ErrInputNotFound)
		}
		return nil, fmt.Errorf("ExcelSource.Load: opening %s: %w", s.name, err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("ExcelSource.Load: sheet %q in %s: %w", sheet, s.name, domain.ErrInputNotFound)
	}

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("ExcelSource.Load: reading rows: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ExcelSource.Load: sheet %q is empty: %w", sheet, domain.ErrSchemaMismatch)
	}

	log.Debug().Str("file", s.name).Str("sheet", sheet).Int("records", len(records)-1).Msg("Read workbook sheet")

	// Serial dates count from 1904 in workbooks saved with that setting.
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, fmt.Errorf("ExcelSource.Load: reading workbook properties: %w", err)
	}
	date1904 := props.Date1904 != nil && *props.Date1904

	rows, err := parseRecords(records[0], records[1:], func(v string) (civil.DateTime, error) {
		return excelDate(v, date1904)
	})
	if err != nil {
		return nil, fmt.Errorf("ExcelSource.Load: sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// excelDate accepts raw serial date numbers and falls back to text.
func excelDate(v string, date1904 bool) (civil.DateTime, error) {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return parseTextDate(v)
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return civil.DateTime{}, fmt.Errorf("invoice date %q: %w", v, domain.ErrSchemaMismatch)
	}
	return civil.DateTimeOf(t.Round(time.Second)), nil
}
