package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RowReader yields raw rows from an input file, one at a time. Next returns
// io.EOF after the last row.
type RowReader interface {
	Next() ([]string, error)
}

// OpenRows picks a reader implementation from the file extension. Anything
// that is not .xlsx is treated as delimited text.
func OpenRows(path string) (RowReader, func() error, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		r, err := NewXLSXReader(path)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}
	return NewCSVReader(f), f.Close, nil
}

type csvRowReader struct {
	r *csv.Reader
}

// NewCSVReader reads delimited text. Ragged rows and stray quotes are
// tolerated; unusable rows are dropped later by the normalizer.
func NewCSVReader(r io.Reader) RowReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return &csvRowReader{r: cr}
}

func (c *csvRowReader) Next() ([]string, error) {
	return c.r.Read()
}
