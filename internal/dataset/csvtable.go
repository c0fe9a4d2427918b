package dataset

import (
	"encoding/csv"
	"fmt"

	"github.com/banshee-data/egopose/internal/storage"
)

// csvTable is a header-indexed CSV file held in memory. The capture-time
// timesync table and both trajectory tables are small enough that random
// access beats streaming.
type csvTable struct {
	path    string
	columns map[string]int
	rows    [][]string
}

func readCSVTable(fs storage.FileSystem, path string) (*csvTable, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s has no data rows", path)
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[name] = i
	}
	return &csvTable{path: path, columns: columns, rows: records[1:]}, nil
}

func (t *csvTable) numRows() int { return len(t.rows) }

func (t *csvTable) hasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// value returns the cell at (row, column). An unknown column is a
// synchronization gap: the capture is missing a stream the run asked for.
func (t *csvTable) value(row int, column string) (string, error) {
	idx, ok := t.columns[column]
	if !ok {
		return "", &SynchronizationGapError{Source: t.path, Detail: fmt.Sprintf("missing column %q", column)}
	}
	if row < 0 || row >= len(t.rows) {
		return "", &SynchronizationGapError{
			Source: t.path,
			Detail: fmt.Sprintf("row %d out of range (table has %d rows)", row, len(t.rows)),
		}
	}
	return t.rows[row][idx], nil
}

// rowMap returns one row as a column-name map.
func (t *csvTable) rowMap(row int) map[string]string {
	out := make(map[string]string, len(t.columns))
	for name, idx := range t.columns {
		if idx < len(t.rows[row]) {
			out[name] = t.rows[row][idx]
		}
	}
	return out
}
