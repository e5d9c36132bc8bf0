package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader streams rows from the first sheet of a spreadsheet.
type XLSXReader struct {
	f    *excelize.File
	rows *excelize.Rows
}

func NewXLSXReader(path string) (*XLSXReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}

	sheet := f.GetSheetName(0)
	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	return &XLSXReader{f: f, rows: rows}, nil
}

func (x *XLSXReader) Next() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		return nil, io.EOF
	}
	cols, err := x.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read row: %w", err)
	}
	return cols, nil
}

func (x *XLSXReader) Close() error {
	_ = x.rows.Close()
	return x.f.Close()
}
