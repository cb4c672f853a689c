// Package bulk creates several problems from archive rows, one after another.
package bulk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// DefaultMaxArchiveBytes caps a row archive at 50MB.
const DefaultMaxArchiveBytes int64 = 50 << 20

// ErrTitleRequired is reported for a row without a title.
var ErrTitleRequired = errors.New("title is required")

// Row is one problem to create.
type Row struct {
	Title           string
	Archive         *upload.File
	DescriptionFile *upload.File
}

// RowError is a validation failure of one row.
type RowError struct {
	Index int    `json:"index"`
	Field string `json:"field"`
	Err   error  `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d %s: %v", e.Index+1, e.Field, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ValidationError collects every invalid row of a batch.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		msgs = append(msgs, r.Error())
	}
	return "invalid rows: " + strings.Join(msgs, "; ")
}

// Fields maps "rows[i].field" to a message, for API responses.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Rows))
	for _, r := range e.Rows {
		out[fmt.Sprintf("rows[%d].%s", r.Index, r.Field)] = r.Err.Error()
	}
	return out
}

// ValidateRows checks every row independently and reports all failures.
// maxArchiveBytes <= 0 uses DefaultMaxArchiveBytes.
func ValidateRows(rows []Row, maxArchiveBytes int64) error {
	if maxArchiveBytes <= 0 {
		maxArchiveBytes = DefaultMaxArchiveBytes
	}

	var errs []RowError
	fail := func(i int, field string, err error) {
		errs = append(errs, RowError{Index: i, Field: field, Err: err})
	}

	for i, row := range rows {
		if strings.TrimSpace(row.Title) == "" {
			fail(i, "title", ErrTitleRequired)
		}

		switch a := row.Archive; {
		case a == nil:
			fail(i, "archive", upload.ErrFileRequired)
		case !upload.HasExt(a.Name, model.ExtArchive):
			fail(i, "archive", fmt.Errorf("%w: %s (want %s)", upload.ErrUnsupportedFileType, a.Name, model.ExtArchive))
		case a.Size > maxArchiveBytes:
			fail(i, "archive", fmt.Errorf("%w: %s is %d bytes (max: %d)", upload.ErrFileTooLarge, a.Name, a.Size, maxArchiveBytes))
		}

		if d := row.DescriptionFile; d != nil && !upload.HasExt(d.Name, model.DescriptionExtensions...) {
			fail(i, "description", fmt.Errorf("%w: %s (want one of %s)",
				upload.ErrUnsupportedFileType, d.Name, strings.Join(model.DescriptionExtensions, ", ")))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Rows: errs}
	}
	return nil
}
