package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

type column int

const (
	colSKU column = iota
	colName
	colDescription
)

// headerSpellings maps recognized header cells (case-insensitive) to record
// fields. Kept as an explicit table so the matching rules are testable.
var headerSpellings = map[string]column{
	"sku":         colSKU,
	"name":        colName,
	"description": colDescription,
}

// Normalize parses raw rows into records in a single pass. The first row is
// sniffed for a header; without one, columns are positional (sku, name,
// description). Cells are trimmed, rows with an empty or header-looking key
// are skipped, and an input producing zero records yields ErrEmptyInput.
func Normalize(rows RowReader) ([]Record, error) {
	cols := map[column]int{colSKU: 0, colName: 1, colDescription: 2}

	var out []Record
	first := true
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if first {
			first = false
			if mapped, ok := headerColumns(row); ok {
				cols = mapped
				continue
			}
		}

		rec := Record{
			SKU:         cell(row, cols[colSKU]),
			Name:        cell(row, cols[colName]),
			Description: cell(row, cols[colDescription]),
		}
		// A literal "sku" key means a stray header row mid-file.
		if rec.SKU == "" || strings.EqualFold(rec.SKU, "sku") {
			continue
		}
		out = append(out, rec)
	}

	if len(out) == 0 {
		return nil, ErrEmptyInput
	}
	return out, nil
}

// headerColumns reports whether row is a header and, if so, where each
// recognized field lives. A row only counts as a header when it names the key
// column; name and description fall back to "absent" and read as empty.
func headerColumns(row []string) (map[column]int, bool) {
	mapped := make(map[column]int)
	for i, c := range row {
		col, ok := headerSpellings[strings.ToLower(strings.TrimSpace(c))]
		if !ok {
			continue
		}
		if _, dup := mapped[col]; !dup {
			mapped[col] = i
		}
	}
	if _, ok := mapped[colSKU]; !ok {
		return nil, false
	}
	for _, col := range []column{colName, colDescription} {
		if _, ok := mapped[col]; !ok {
			mapped[col] = -1
		}
	}
	return mapped, true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
