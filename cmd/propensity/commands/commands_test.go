package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"postgres url", "postgres://scorer:s3cret@db:5432/dwh?sslmode=disable", "postgres://scorer:xxx@db:5432/dwh?sslmode=disable"},
		{"snowflake", "scorer:s3cret@acme-xy123/DWH/PUBLIC?warehouse=WH", "scorer:***@acme-xy123/DWH/PUBLIC?warehouse=WH"},
		{"duckdb path", "./dev.duckdb", "./dev.duckdb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskPassword(tt.dsn))
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "params", "queries", "test-db"} {
		assert.True(t, names[want], want)
	}
}
