package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dvloznov/customer-segmentation/internal/domain"
)

func customer(id string, seg domain.Segment) domain.Customer {
	return domain.Customer{
		Scored:  domain.Scored{Metrics: domain.Metrics{CustomerID: id}},
		Segment: seg,
	}
}

func sample() []domain.Customer {
	return []domain.Customer{
		customer("12346", domain.SegmentNeedAttention),
		customer("12347", domain.SegmentChampions),
		customer("12349", domain.SegmentNeedAttention),
		customer("12352", domain.SegmentAtRisk),
	}
}

func TestWriteSegment(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSegment(&buf, domain.SegmentNeedAttention, sample()); err != nil {
		t.Fatalf("WriteSegment() error: %v", err)
	}

	want := ",Need_Attention\n0,12346\n1,12349\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteSegment() =\n%q\nwant\n%q", got, want)
	}
}

func TestWriteSegment_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSegment(&buf, domain.SegmentNewCustomers, sample()); err != nil {
		t.Fatalf("WriteSegment() error: %v", err)
	}
	if got := buf.String(); got != ",New_Customers\n" {
		t.Errorf("WriteSegment() = %q, want header only", got)
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSegment(&buf, domain.SegmentNeedAttention, sample()); err != nil {
		t.Fatalf("WriteSegment() error: %v", err)
	}

	seg, ids, err := ReadSegment(&buf)
	if err != nil {
		t.Fatalf("ReadSegment() error: %v", err)
	}
	if seg != domain.SegmentNeedAttention {
		t.Errorf("segment = %q, want %q", seg, domain.SegmentNeedAttention)
	}
	if want := []string{"12346", "12349"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestReadSegment_UnknownSegment(t *testing.T) {
	_, _, err := ReadSegment(bytes.NewBufferString(",Big_Spenders\n0,12346\n"))
	if !errors.Is(err, domain.ErrUnknownSegment) {
		t.Errorf("ReadSegment() error = %v, want ErrUnknownSegment", err)
	}
}

// MockStorageService is a mock implementation of gcs.StorageService.
type MockStorageService struct {
	UploadBytesFunc func(ctx context.Context, gcsURI string, data []byte, contentType string) error
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return nil, nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, gcsURI string, data []byte, contentType string) error {
	return m.UploadBytesFunc(ctx, gcsURI, data, contentType)
}

func (m *MockStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return nil
}

func TestSaver_SaveSegment(t *testing.T) {
	ctx := context.Background()

	t.Run("local file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "exports", "Need_Attention.csv")
		s := &Saver{}
		if err := s.SaveSegment(ctx, dest, domain.SegmentNeedAttention, sample()); err != nil {
			t.Fatalf("SaveSegment() error: %v", err)
		}

		f, err := os.Open(dest)
		if err != nil {
			t.Fatalf("export not written: %v", err)
		}
		defer f.Close()

		_, ids, err := ReadSegment(f)
		if err != nil {
			t.Fatalf("ReadSegment() error: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("got %d ids, want 2", len(ids))
		}
	})

	t.Run("gcs object", func(t *testing.T) {
		var uploaded []byte
		var uri, contentType string
		s := &Saver{Storage: &MockStorageService{
			UploadBytesFunc: func(ctx context.Context, gcsURI string, data []byte, ct string) error {
				uri, uploaded, contentType = gcsURI, data, ct
				return nil
			},
		}}

		if err := s.SaveSegment(ctx, "gs://exports/Need_Attention.csv", domain.SegmentNeedAttention, sample()); err != nil {
			t.Fatalf("SaveSegment() error: %v", err)
		}
		if uri != "gs://exports/Need_Attention.csv" || contentType != "text/csv" {
			t.Errorf("uploaded to %q as %q", uri, contentType)
		}
		if string(uploaded) != ",Need_Attention\n0,12346\n1,12349\n" {
			t.Errorf("uploaded %q", uploaded)
		}
	})

	t.Run("upload failure", func(t *testing.T) {
		s := &Saver{Storage: &MockStorageService{
			UploadBytesFunc: func(ctx context.Context, gcsURI string, data []byte, ct string) error {
				return errors.New("permission denied")
			},
		}}
		err := s.SaveSegment(ctx, "gs://exports/Need_Attention.csv", domain.SegmentNeedAttention, sample())
		if !errors.Is(err, domain.ErrOutputWrite) {
			t.Errorf("SaveSegment() error = %v, want ErrOutputWrite", err)
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		err := (&Saver{}).SaveSegment(ctx, filepath.Join(blocker, "out.csv"), domain.SegmentNeedAttention, sample())
		if !errors.Is(err, domain.ErrOutputWrite) {
			t.Errorf("SaveSegment() error = %v, want ErrOutputWrite", err)
		}
	})
}
