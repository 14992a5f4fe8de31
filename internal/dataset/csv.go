package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

// CSVSource reads invoice lines from a comma-separated export with a
// header row.
type CSVSource struct {
	name string
	data []byte
}

// NewCSVSource reads the CSV file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{name: path}
}

// NewCSVSourceFromBytes reads CSV content already loaded into memory.
func NewCSVSourceFromBytes(name string, data []byte) *CSVSource {
	return &CSVSource{name: name, data: data}
}

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context) ([]domain.Row, error) {
	var r io.Reader
	if s.data != nil {
		r = bytes.NewReader(s.data)
	} else {
		f, err := os.Open(s.name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("CSVSource.Load: %s: %w", s.name, domain.ErrInputNotFound)
			}
			return nil, fmt.Errorf("CSVSource.Load: opening %s: %w", s.name, err)
		}
		defer f.Close()
		r = f
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSVSource.Load: parsing %s: %w: %w", s.name, domain.ErrSchemaMismatch, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSVSource.Load: %s has no header: %w", s.name, domain.ErrSchemaMismatch)
	}

	rows, err := parseRecords(records[0], records[1:], parseTextDate)
	if err != nil {
		return nil, fmt.Errorf("CSVSource.Load: %s: %w", s.name, err)
	}
	return rows, nil
}
