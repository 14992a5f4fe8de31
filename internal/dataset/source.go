// Package dataset loads invoice line items from spreadsheets, CSV
// exports, Cloud Storage objects and BigQuery tables.
package dataset

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/gcs"
	"github.com/dvloznov/customer-segmentation/internal/gcsuploader"
	infraBQ "github.com/dvloznov/customer-segmentation/internal/infra/bigquery"
)

// DefaultSheet is the sheet of the Online Retail II workbook covering
// December 2009 to December 2010.
const DefaultSheet = "Year 2009-2010"

// Source yields raw invoice rows. Nothing beyond the column set is validated.
type Source interface {
	Load(ctx context.Context) ([]domain.Row, error)
}

// OpenOptions configures Open.
type OpenOptions struct {
	// Sheet selects the workbook sheet for spreadsheet inputs.
	Sheet string

	// Storage fetches gs:// inputs. Nil uses Cloud Storage directly.
	Storage gcs.StorageService
}

// Open picks a Source for uri:
//
//	bq://project/dataset/table  BigQuery table
//	gs://bucket/object.xlsx     workbook or CSV in Cloud Storage
//	path/to/file.xlsx           local workbook
//	path/to/file.csv            local CSV export
func Open(uri string, opts OpenOptions) (Source, error) {
	switch {
	case infraBQ.IsTableURI(uri):
		table, err := infraBQ.ParseTableURI(uri)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		return &bigQuerySource{table: table}, nil

	case gcsuploader.IsGCSURI(uri):
		if _, err := formatOf(gcsuploader.ExtractFilenameFromGCSURI(uri)); err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		storage := opts.Storage
		if storage == nil {
			storage = gcsuploader.NewGCSStorageService()
		}
		return &gcsSource{uri: uri, sheet: opts.Sheet, storage: storage}, nil
	}

	format, err := formatOf(uri)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if format == formatExcel {
		return NewExcelSource(uri, opts.Sheet), nil
	}
	return NewCSVSource(uri), nil
}

type format int

const (
	formatExcel format = iota
	formatCSV
)

func formatOf(name string) (format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return formatExcel, nil
	case ".csv":
		return formatCSV, nil
	}
	return 0, fmt.Errorf("unsupported input format %q: %w", name, domain.ErrSchemaMismatch)
}

// gcsSource downloads an object and parses it according to its extension.
type gcsSource struct {
	uri     string
	sheet   string
	storage gcs.StorageService
}

func (s *gcsSource) Load(ctx context.Context) ([]domain.Row, error) {
	data, err := s.storage.FetchFromGCS(ctx, s.uri)
	if err != nil {
		return nil, err
	}

	name := gcsuploader.ExtractFilenameFromGCSURI(s.uri)
	format, err := formatOf(name)
	if err != nil {
		return nil, err
	}
	if format == formatExcel {
		return NewExcelSourceFromBytes(name, data, s.sheet).Load(ctx)
	}
	return NewCSVSourceFromBytes(name, data).Load(ctx)
}

// bigQuerySource opens a client for the duration of one Load.
type bigQuerySource struct {
	table infraBQ.TableRef
}

func (s *bigQuerySource) Load(ctx context.Context) ([]domain.Row, error) {
	src, err := infraBQ.NewTransactionTable(ctx, s.table)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return src.Load(ctx)
}
