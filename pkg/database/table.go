package database

import (
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Table is a tabular query result: column names and ordered rows
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of a column or -1
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// MustIndex returns the position of a column or an error naming it
func (t *Table) MustIndex(column string) (int, error) {
	i := t.Index(column)
	if i < 0 {
		return -1, fmt.Errorf("column %q not in result (have %v)", column, t.Columns)
	}
	return i, nil
}

// Float reads a numeric cell. ok is false for NULL.
func (t *Table) Float(row, col int) (value float64, ok bool, err error) {
	switch v := t.Rows[row][col].(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case bool:
		if v {
			return 1, true, nil
		}
		return 0, true, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, true, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false, fmt.Errorf("column %q: %w", t.Columns[col], err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("column %q: unsupported numeric type %T", t.Columns[col], v)
	}
}

// String reads a cell as text. NULL is the empty string.
func (t *Table) String(row, col int) string {
	switch v := t.Rows[row][col].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads a boolean cell; numeric cells are true when non-zero
func (t *Table) Bool(row, col int) (bool, error) {
	switch v := t.Rows[row][col].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		f, _, err := t.Float(row, col)
		return f != 0, err
	}
}
