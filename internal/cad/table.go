package cad

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Table is a numeric lookup table with named columns.
type Table struct {
	cols map[string]int
	rows [][]float64
}

// ParseTable reads CSV text whose first row holds the column names.
func ParseTable(text string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comment = '#'
	r.TrimLeadingSpace = true
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	if len(recs) == 0 {
		return nil, errors.New("table has no header row")
	}
	t := &Table{cols: map[string]int{}}
	for i, name := range recs[0] {
		t.cols[strings.TrimSpace(name)] = i
	}
	for n, rec := range recs[1:] {
		row := make([]float64, len(rec))
		for i, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("table row %d column %d: %w", n+2, i+1, err)
			}
			row[i] = v
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// Lookup returns valueCol of the row whose keyCol equals key. With nearest
// set the row with the closest key is used instead.
func (t *Table) Lookup(keyCol string, key float64, valueCol string, nearest bool) (float64, error) {
	kc, ok := t.cols[keyCol]
	if !ok {
		return 0, fmt.Errorf("table has no column %q", keyCol)
	}
	vc, ok := t.cols[valueCol]
	if !ok {
		return 0, fmt.Errorf("table has no column %q", valueCol)
	}
	best, bestDist := -1, math.Inf(1)
	for i, row := range t.rows {
		if kc >= len(row) || vc >= len(row) {
			continue
		}
		d := math.Abs(row[kc] - key)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || (!nearest && !nearlyEqual(t.rows[best][kc], key)) {
		return 0, fmt.Errorf("no row with %s = %g", keyCol, key)
	}
	return t.rows[best][vc], nil
}

// TableSource resolves table names.
type TableSource interface {
	Table(name string) (*Table, error)
}

// DirTables loads `<name>.csv` from the first directory containing it.
// Parsed tables are kept for the lifetime of the value.
type DirTables struct {
	Dirs []string

	mu     sync.Mutex
	loaded map[string]*Table
}

func (d *DirTables) Table(name string) (*Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.loaded[name]; ok {
		return t, nil
	}
	for _, dir := range d.Dirs {
		data, err := os.ReadFile(filepath.Join(dir, name+".csv"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", name, err)
		}
		t, err := ParseTable(string(data))
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		if d.loaded == nil {
			d.loaded = map[string]*Table{}
		}
		d.loaded[name] = t
		return t, nil
	}
	return nil, fmt.Errorf("table %s not found in %v: %w", name, d.Dirs, ErrNotFound)
}

// TableLookup is a scalar read from a table.
func TableLookup(src TableSource, table, keyCol string, key Scalar, valueCol string, nearest bool) Scalar {
	return ScalarFunc(func() (float64, error) {
		t, err := src.Table(table)
		if err != nil {
			return 0, err
		}
		k, err := key.Value()
		if err != nil {
			return 0, err
		}
		return t.Lookup(keyCol, k, valueCol, nearest)
	})
}
