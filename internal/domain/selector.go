package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoFilenameColumn is returned when a Table has no filename column.
var ErrNoFilenameColumn = errors.New("table has no filename column")

// SelectorKind tells which shape a Selector resolved to.
type SelectorKind int

const (
	SelectorInvalid SelectorKind = iota
	SelectorFiles
	SelectorLocation
	SelectorDevice
	SelectorTable
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorFiles:
		return "files"
	case SelectorLocation:
		return "location"
	case SelectorDevice:
		return "device"
	case SelectorTable:
		return "table"
	default:
		return "invalid"
	}
}

// Selector describes which files a batch downloads. Exactly one shape is
// used, picked by Kind in this order: an explicit file list, a location and
// device category filter, a device filter, then a table.
type Selector struct {
	Files   []DownloadRequest `json:"files,omitempty"`
	Filters Filters           `json:"filters,omitempty"`
	Table   *Table            `json:"table,omitempty"`
}

// Kind resolves the selector shape.
func (s Selector) Kind() SelectorKind {
	switch {
	case s.Files != nil:
		return SelectorFiles
	case s.Filters.Has("locationCode", "deviceCategoryCode"):
		return SelectorLocation
	case s.Filters.Has("deviceCode"):
		return SelectorDevice
	case s.Table != nil:
		return SelectorTable
	default:
		return SelectorInvalid
	}
}

// Table is tabular input with a filename column and an optional outPath
// column. Other columns are ignored.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Requests converts every row into a DownloadRequest. Short rows produce a
// request with an empty field rather than an error, so a single bad row does
// not invalidate the whole table.
func (t *Table) Requests() ([]DownloadRequest, error) {
	nameCol, pathCol := -1, -1
	for i, c := range t.Columns {
		switch strings.TrimSpace(c) {
		case "filename":
			nameCol = i
		case "outPath":
			pathCol = i
		}
	}
	if nameCol < 0 {
		return nil, ErrNoFilenameColumn
	}

	reqs := make([]DownloadRequest, 0, len(t.Rows))
	for _, row := range t.Rows {
		var req DownloadRequest
		if nameCol < len(row) {
			req.Filename = strings.TrimSpace(row[nameCol])
		}
		if pathCol >= 0 && pathCol < len(row) {
			req.OutPath = strings.TrimSpace(row[pathCol])
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// ParseTableCSV reads a CSV document whose first record is the header.
func ParseTableCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoFilenameColumn
	}

	return &Table{Columns: records[0], Rows: records[1:]}, nil
}
