package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Batch is one download batch submitted through the gateway.
type Batch struct {
	ID          uuid.UUID    `json:"id"`
	Status      BatchStatus  `json:"status"`
	Selector    Selector     `json:"selector"`
	Overwrite   bool         `json:"overwrite"`
	AllPages    bool         `json:"all_pages"`
	Concurrency int          `json:"concurrency,omitempty"`
	Report      *BatchReport `json:"report,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Clone returns a deep copy of b that shares no slices, maps or pointers with it.
func (b *Batch) Clone() *Batch {
	out := *b
	out.Selector.Files = slices.Clone(b.Selector.Files)
	if b.Selector.Filters != nil {
		out.Selector.Filters = b.Selector.Filters.Clone()
	}
	if b.Selector.Table != nil {
		table := Table{
			Columns: slices.Clone(b.Selector.Table.Columns),
			Rows:    make([][]string, len(b.Selector.Table.Rows)),
		}
		for i, row := range b.Selector.Table.Rows {
			table.Rows[i] = slices.Clone(row)
		}
		out.Selector.Table = &table
	}
	if b.Report != nil {
		report := *b.Report
		report.Outcomes = slices.Clone(b.Report.Outcomes)
		out.Report = &report
	}
	return &out
}
