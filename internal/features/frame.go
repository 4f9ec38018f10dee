package features

import (
	"fmt"
	"math"

	"github.com/wonny/leadscore/pkg/database"
)

// Key columns shared by every lead query
const (
	UserIDColumn = "userId"
	LeadIDColumn = "leadCreateEventId"
)

// Key identifies a lead
type Key struct {
	UserID            string
	LeadCreateEventID string
}

// Frame is the per-lead feature table, one row per lead, assembled by joining
// query results on (userId, leadCreateEventId)
type Frame struct {
	keys    []Key
	index   map[Key]int
	columns map[string][]any
	order   []string
}

// FromTable builds a frame whose rows are the leads of t. Duplicate leads are an error.
func FromTable(t *database.Table) (*Frame, error) {
	keys, err := tableKeys(t)
	if err != nil {
		return nil, err
	}

	f := &Frame{
		keys:    keys,
		index:   make(map[Key]int, len(keys)),
		columns: make(map[string][]any),
	}
	for i, k := range keys {
		if _, dup := f.index[k]; dup {
			return nil, fmt.Errorf("duplicate lead %s/%s", k.UserID, k.LeadCreateEventID)
		}
		f.index[k] = i
	}

	if err := f.addColumns(t, keys); err != nil {
		return nil, err
	}
	return f, nil
}

// Join left-joins the columns of t onto the frame. Leads missing from t get NULL;
// rows of t for unknown leads are dropped.
func (f *Frame) Join(t *database.Table) error {
	keys, err := tableKeys(t)
	if err != nil {
		return err
	}
	seen := make(map[Key]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return fmt.Errorf("duplicate lead %s/%s", k.UserID, k.LeadCreateEventID)
		}
		seen[k] = true
	}
	return f.addColumns(t, keys)
}

func (f *Frame) addColumns(t *database.Table, keys []Key) error {
	for c, name := range t.Columns {
		if name == UserIDColumn || name == LeadIDColumn {
			continue
		}
		if _, exists := f.columns[name]; exists {
			return fmt.Errorf("column %q already in frame", name)
		}

		col := make([]any, len(f.keys))
		for r, k := range keys {
			if i, ok := f.index[k]; ok {
				col[i] = t.Rows[r][c]
			}
		}
		f.columns[name] = col
		f.order = append(f.order, name)
	}
	return nil
}

// Len returns the number of leads
func (f *Frame) Len() int {
	return len(f.keys)
}

// Keys returns the leads in row order
func (f *Frame) Keys() []Key {
	return f.keys
}

// Columns returns the non-key columns in join order
func (f *Frame) Columns() []string {
	return f.order
}

// Has reports whether a column was joined
func (f *Frame) Has(column string) bool {
	_, ok := f.columns[column]
	return ok
}

// Float returns a numeric column; NULL is NaN
func (f *Frame) Float(column string) ([]float64, error) {
	t, err := f.columnTable(column)
	if err != nil {
		return nil, err
	}

	out := make([]float64, t.Len())
	for i := range out {
		v, ok, err := t.Float(i, 0)
		if err != nil {
			return nil, err
		}
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

// Bool returns a boolean column; NULL is false
func (f *Frame) Bool(column string) ([]bool, error) {
	t, err := f.columnTable(column)
	if err != nil {
		return nil, err
	}

	out := make([]bool, t.Len())
	for i := range out {
		b, err := t.Bool(i, 0)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", column, i, err)
		}
		out[i] = b
	}
	return out, nil
}

// Filter returns a frame with the rows whose keep flag is set, in the same order
func (f *Frame) Filter(keep []bool) (*Frame, error) {
	if len(keep) != len(f.keys) {
		return nil, fmt.Errorf("filter has %d flags for %d leads", len(keep), len(f.keys))
	}

	out := &Frame{
		index:   make(map[Key]int),
		columns: make(map[string][]any, len(f.columns)),
		order:   append([]string(nil), f.order...),
	}
	for i, k := range f.keys {
		if !keep[i] {
			continue
		}
		out.index[k] = len(out.keys)
		out.keys = append(out.keys, k)
	}
	for name, col := range f.columns {
		kept := make([]any, 0, len(out.keys))
		for i, v := range col {
			if keep[i] {
				kept = append(kept, v)
			}
		}
		out.columns[name] = kept
	}
	return out, nil
}

// Text returns a column as strings; NULL is the empty string
func (f *Frame) Text(column string) ([]string, error) {
	t, err := f.columnTable(column)
	if err != nil {
		return nil, err
	}

	out := make([]string, t.Len())
	for i := range out {
		out[i] = t.String(i, 0)
	}
	return out, nil
}

// columnTable views a single column as a table so the cell conversions of the
// warehouse package apply
func (f *Frame) columnTable(column string) (*database.Table, error) {
	col, ok := f.columns[column]
	if !ok {
		return nil, fmt.Errorf("column %q not in frame (have %v)", column, f.order)
	}
	t := &database.Table{Columns: []string{column}, Rows: make([][]any, len(col))}
	for i, v := range col {
		t.Rows[i] = []any{v}
	}
	return t, nil
}

func tableKeys(t *database.Table) ([]Key, error) {
	u, err := t.MustIndex(UserIDColumn)
	if err != nil {
		return nil, err
	}
	l, err := t.MustIndex(LeadIDColumn)
	if err != nil {
		return nil, err
	}

	keys := make([]Key, t.Len())
	for r := range keys {
		keys[r] = Key{UserID: t.String(r, u), LeadCreateEventID: t.String(r, l)}
	}
	return keys, nil
}
