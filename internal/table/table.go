package table

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"d3fend-graphx/internal/resultset"
)

// Placeholder is rendered for a column a row does not carry or leaves empty.
const Placeholder = "—"

// Table is the tabular view of a result: column names and one cell slice per row.
type Table struct {
	Columns []string   `json:"columns"`
	Cells   [][]string `json:"cells"`
}

// ToTable lays rows out under the columns of the first row.
func ToTable(rows []resultset.Row) Table {
	t := Table{Columns: []string{}, Cells: [][]string{}}
	if len(rows) == 0 {
		return t
	}

	t.Columns = rows[0].Keys()
	for _, r := range rows {
		line := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			v := r.Get(col)
			if v == "" {
				v = Placeholder
			}
			line[i] = v
		}
		t.Cells = append(t.Cells, line)
	}
	return t
}

// Write renders t as aligned text columns.
func (t Table) Write(w io.Writer) error {
	if len(t.Columns) == 0 {
		_, err := fmt.Fprintln(w, "(no results)")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, line := range t.Cells {
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	return tw.Flush()
}
