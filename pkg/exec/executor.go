// Package exec runs generated SQL against the analytics database.
package exec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/tably-ai/tably/pkg/models"
)

// QueryExecutor runs a SQL query and returns its rows.
type QueryExecutor interface {
	Run(ctx context.Context, query string) (models.Table, error)
}

// SQLiteExecutor executes read queries against a SQLite database.
type SQLiteExecutor struct {
	db      *sql.DB
	maxRows int
}

// NewSQLite opens the analytics database. maxRows bounds result size;
// zero means the default of 1000.
func NewSQLite(dbPath string, maxRows int) (*SQLiteExecutor, error) {
	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open data db: %w", err)
	}
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &SQLiteExecutor{db: db, maxRows: maxRows}, nil
}

// Run executes a single read query. Generated SQL is untrusted, so
// anything that is not a SELECT (or WITH ... SELECT) is rejected.
func (e *SQLiteExecutor) Run(ctx context.Context, query string) (models.Table, error) {
	head := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") {
		return models.Table{}, fmt.Errorf("only read queries are allowed")
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return models.Table{}, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return models.Table{}, fmt.Errorf("read columns: %w", err)
	}

	table := models.Table{Columns: cols}
	for rows.Next() {
		if len(table.Rows) >= e.maxRows {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return models.Table{}, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return models.Table{}, fmt.Errorf("iterate rows: %w", err)
	}
	return table, nil
}

// Close releases the database connection.
func (e *SQLiteExecutor) Close() error {
	return e.db.Close()
}
