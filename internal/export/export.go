// Package export writes the customer ids of one segment as CSV, locally
// or to Cloud Storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/gcs"
	"github.com/dvloznov/customer-segmentation/internal/gcsuploader"
	"github.com/dvloznov/customer-segmentation/internal/logger"
	"github.com/dvloznov/customer-segmentation/internal/rfm"
)

const csvContentType = "text/csv"

// DefaultPath names the export file of seg when no destination is given.
func DefaultPath(seg domain.Segment) string {
	return string(seg) + ".csv"
}

// WriteSegment writes the ids of the customers in seg to w. The first
// column is the row index, the header names the segment:
//
//	,Need_Attention
//	0,12346
//	1,12347
func WriteSegment(w io.Writer, seg domain.Segment, customers []domain.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"", string(seg)}); err != nil {
		return fmt.Errorf("WriteSegment: %w: %w", domain.ErrOutputWrite, err)
	}
	for i, c := range rfm.Members(customers, seg) {
		if err := cw.Write([]string{strconv.Itoa(i), c.CustomerID}); err != nil {
			return fmt.Errorf("WriteSegment: %w: %w", domain.ErrOutputWrite, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteSegment: %w: %w", domain.ErrOutputWrite, err)
	}
	return nil
}

// ReadSegment parses a file written by WriteSegment, returning the segment
// named in its header and the ids in row order.
func ReadSegment(r io.Reader) (domain.Segment, []string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return "", nil, fmt.Errorf("ReadSegment: %w", err)
	}
	if len(records) == 0 || len(records[0]) != 2 {
		return "", nil, fmt.Errorf("ReadSegment: missing header: %w", domain.ErrSchemaMismatch)
	}

	seg, err := domain.ParseSegment(records[0][1])
	if err != nil {
		return "", nil, fmt.Errorf("ReadSegment: %w", err)
	}

	ids := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		ids = append(ids, rec[1])
	}
	return seg, ids, nil
}

// Saver writes segment exports. Storage handles gs:// destinations; nil
// uses Cloud Storage directly.
type Saver struct {
	Storage gcs.StorageService
}

// SaveSegment writes the segment export to dest, a local path or a gs://
// URI. Parent directories of local paths are created.
func (s *Saver) SaveSegment(ctx context.Context, dest string, seg domain.Segment, customers []domain.Customer) error {
	log := logger.FromContext(ctx)

	var buf bytes.Buffer
	if err := WriteSegment(&buf, seg, customers); err != nil {
		return err
	}

	if gcsuploader.IsGCSURI(dest) {
		storage := s.Storage
		if storage == nil {
			storage = gcsuploader.NewGCSStorageService()
		}
		if err := storage.UploadBytes(ctx, dest, buf.Bytes(), csvContentType); err != nil {
			return fmt.Errorf("SaveSegment: uploading %s: %w: %w", dest, domain.ErrOutputWrite, err)
		}
	} else if err := writeFile(dest, buf.Bytes()); err != nil {
		return fmt.Errorf("SaveSegment: %w: %w", domain.ErrOutputWrite, err)
	}

	log.Info().
		Str("segment", string(seg)).
		Str("path", dest).
		Int("customers", len(rfm.Members(customers, seg))).
		Msg("Exported segment")
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
