package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingParam is returned when a query references a parameter that was not supplied
var ErrMissingParam = errors.New("missing query parameter")

// Placeholder is the positional parameter style of a driver
type Placeholder int

const (
	// Dollar uses $1, $2, ... (postgres, duckdb). A name used twice maps to the same index.
	Dollar Placeholder = iota
	// Question uses ? (snowflake). A name used twice is passed twice.
	Question
)

// Bind rewrites :name placeholders into the driver's positional form and returns the
// ordered arguments. Casts (::type), quoted literals and path access such as
// params:booking_total (a colon right after a name, ')', ']' or '"') are left untouched.
func Bind(query string, params map[string]any, style Placeholder) (string, []any, error) {
	var (
		sb    strings.Builder
		args  []any
		index = make(map[string]int)
	)
	sb.Grow(len(query))

	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]

		if c == '\'' {
			inQuote = !inQuote
			sb.WriteByte(c)
			continue
		}
		if inQuote || c != ':' {
			sb.WriteByte(c)
			continue
		}

		// ::cast
		if i+1 < len(query) && query[i+1] == ':' {
			sb.WriteString("::")
			i++
			continue
		}

		// variant path (snowflake: col:field, "col":field, fn(x):field)
		if i > 0 && isPathOwner(query[i-1]) {
			sb.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(query) && isIdentByte(query[j], j == i+1) {
			j++
		}
		if j == i+1 {
			sb.WriteByte(c)
			continue
		}

		name := query[i+1 : j]
		value, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
		}

		switch style {
		case Question:
			args = append(args, value)
			sb.WriteByte('?')
		default:
			n, seen := index[name]
			if !seen {
				args = append(args, value)
				n = len(args)
				index[name] = n
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		}
		i = j - 1
	}

	return sb.String(), args, nil
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

func isPathOwner(c byte) bool {
	return isIdentByte(c, false) || c == ')' || c == ']' || c == '"'
}
