package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cerrors "github.com/cellcount/cellcount/internal/errors"
)

// CSVSource reads records from a comma-separated export with a header row.
// Column order is free and unknown columns are ignored.
type CSVSource struct {
	reader *csv.Reader
	closer io.Closer
	index  map[string]int
	line   int
}

// Open opens the export at path. A missing file is reported as
// VALIDATION:INPUT_NOT_FOUND.
func Open(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cerrors.NewValidationError(cerrors.CodeInputNotFound,
				fmt.Sprintf("could not find %s", path))
		}
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	src, err := NewCSVSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewCSVSource reads the header from r and prepares to stream records.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, cerrors.NewValidationError(cerrors.CodeMissingColumn, "input has no header row")
		}
		return nil, cerrors.Wrap(cerrors.ErrCategoryValidation, cerrors.CodeMalformedRow, "read header", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[name] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, cerrors.NewValidationError(cerrors.CodeMissingColumn,
			fmt.Sprintf("input is missing required columns: %s", strings.Join(missing, ", "))).
			WithDetails(map[string]interface{}{"missing": missing})
	}

	return &CSVSource{reader: reader, index: index, line: 1}, nil
}

// Next returns the next data row or io.EOF.
func (s *CSVSource) Next() (Record, error) {
	fields, err := s.reader.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	s.line++
	if err != nil {
		return Record{}, cerrors.Wrap(cerrors.ErrCategoryValidation, cerrors.CodeMalformedRow,
			fmt.Sprintf("line %d", s.line), err)
	}

	rec := Record{Line: s.line}
	for _, col := range RequiredColumns {
		idx := s.index[col]
		if idx >= len(fields) {
			return Record{}, cerrors.NewValidationError(cerrors.CodeMalformedRow,
				fmt.Sprintf("line %d: expected at least %d fields, got %d", s.line, idx+1, len(fields)))
		}
		rec.set(col, fields[idx])
	}
	return rec, nil
}

// Close releases the underlying file, if any.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
