// Package bigquery reads invoice lines from, and writes segment
// assignments to, BigQuery tables.
package bigquery

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/api/googleapi"
)

// TableRef names a BigQuery table.
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func (t TableRef) String() string {
	return fmt.Sprintf("%s.%s.%s", t.ProjectID, t.DatasetID, t.TableID)
}

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseTableURI parses "bq://project/dataset/table".
func ParseTableURI(uri string) (TableRef, error) {
	if !IsTableURI(uri) {
		return TableRef{}, fmt.Errorf("ParseTableURI: %q is not a bq:// URI", uri)
	}
	parts := strings.Split(strings.TrimPrefix(uri, "bq://"), "/")
	if len(parts) != 3 {
		return TableRef{}, fmt.Errorf("ParseTableURI: %q: want bq://project/dataset/table", uri)
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return TableRef{}, fmt.Errorf("ParseTableURI: %q: invalid identifier %q", uri, p)
		}
	}
	return TableRef{ProjectID: parts[0], DatasetID: parts[1], TableID: parts[2]}, nil
}

// IsTableURI reports whether s uses the bq:// scheme.
func IsTableURI(s string) bool {
	return strings.HasPrefix(s, "bq://")
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
