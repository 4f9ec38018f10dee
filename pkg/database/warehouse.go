package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/snowflakedb/gosnowflake" // snowflake driver

	"github.com/wonny/leadscore/pkg/config"
)

// DB wraps a single warehouse connection
// ⭐ SSOT: 웨어하우스 연결은 이 패키지에서만 생성
type DB struct {
	conn   *sql.DB
	driver string
	style  Placeholder
}

// New opens the warehouse configured in cfg and verifies it with a ping.
// The handle is limited to one connection; it is acquired for the run and released by Close.
func New(cfg *config.Config) (*DB, error) {
	w := cfg.Warehouse

	var (
		conn *sql.DB
		err  error
	)
	switch w.Driver {
	case "postgres":
		var connCfg *pgx.ConnConfig
		connCfg, err = pgx.ParseConfig(w.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to parse database URL: %w", err)
		}
		connCfg.ConnectTimeout = w.ConnectTimeout
		conn = stdlib.OpenDB(*connCfg)
	case "snowflake":
		conn, err = sql.Open("snowflake", w.DSN())
	case "duckdb":
		conn, err = sql.Open("duckdb", w.DSN())
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", w.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", w.Driver, err)
	}

	db := Wrap(conn, w.Driver)

	timeout := w.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	return db, nil
}

// Wrap adapts an already opened *sql.DB. Used by New and by tests.
func Wrap(conn *sql.DB, driver string) *DB {
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	style := Dollar
	if driver == "snowflake" {
		style = Question
	}
	return &DB{conn: conn, driver: driver, style: style}
}

// Driver returns the configured driver name
func (db *DB) Driver() string {
	return db.driver
}

// Close releases the warehouse connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Ping checks if the warehouse is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Query runs a templated query with named parameters and returns the whole result
func (db *DB) Query(ctx context.Context, query string, params map[string]any) (*Table, error) {
	stmt, args, err := Bind(query, params, db.style)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	table := &Table{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(table.Rows), err)
		}
		for i, v := range values {
			// drivers may reuse byte buffers between rows
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return table, nil
}

// Execute runs a templated command that returns no rows
func (db *DB) Execute(ctx context.Context, query string, params map[string]any) (int64, error) {
	stmt, args, err := Bind(query, params, db.style)
	if err != nil {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("execute: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		// not every driver reports affected rows for DDL
		return 0, nil
	}
	return n, nil
}

// ExecuteMany runs the command once per parameter set inside a single transaction.
// Either every row is written or none is.
func (db *DB) ExecuteMany(ctx context.Context, query string, batch []map[string]any) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for i, params := range batch {
		stmt, args, err := Bind(query, params, db.style)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// HealthCheck pings the warehouse and reports latency
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Driver:    db.driver,
		Timestamp: time.Now(),
	}

	start := time.Now()
	if err := db.conn.PingContext(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	stats := db.conn.Stats()
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Healthy = true
	return status, nil
}

// HealthStatus represents the health status of the warehouse connection
type HealthStatus struct {
	Healthy         bool          `json:"healthy"`
	Driver          string        `json:"driver"`
	Timestamp       time.Time     `json:"timestamp"`
	ResponseTime    time.Duration `json:"response_time"`
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Error           string        `json:"error,omitempty"`
}
