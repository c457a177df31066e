// Package audit records completed turns in a dedicated SQLite
// database. It is a sink: the pipeline writes to it after a response
// is assembled and never reads it on the hot path.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tably-ai/tably/pkg/models"
)

// Logger writes and queries interaction entries.
type Logger struct {
	db            *sql.DB
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
}

// New opens the interaction log database and creates the schema. When
// retentionDays is positive a background loop prunes old rows hourly.
func New(dbPath string, retentionDays int) (*Logger, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:            db,
		retentionDays: retentionDays,
		done:          make(chan struct{}),
	}

	if retentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS interaction_log (
		id              TEXT PRIMARY KEY,
		prompt          TEXT NOT NULL,
		resolved_prompt TEXT NOT NULL,
		intent          TEXT,
		status          TEXT NOT NULL,
		response        TEXT,
		latency_ms      INTEGER,
		created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_interaction_created ON interaction_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_interaction_status ON interaction_log(status)`)
	return err
}

// Record inserts an interaction entry and returns its id. A nil Logger
// is a no-op so callers can run without an interaction log.
func (l *Logger) Record(ctx context.Context, entry models.Interaction) (string, error) {
	if l == nil || l.db == nil {
		return "", nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO interaction_log
		(id, prompt, resolved_prompt, intent, status, response, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Prompt, entry.ResolvedPrompt, string(entry.Intent),
		string(entry.Status), entry.Response, entry.LatencyMs, entry.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("record interaction: %w", err)
	}
	return entry.ID, nil
}

// Query returns interaction entries matching the given options, newest
// first.
func (l *Logger) Query(ctx context.Context, opts models.InteractionQueryOpts) ([]models.Interaction, error) {
	q := `SELECT id, prompt, resolved_prompt, intent, status, response, latency_ms, created_at
		FROM interaction_log WHERE 1=1`
	var args []any

	if opts.ID != "" {
		q += " AND id = ?"
		args = append(args, opts.ID)
	}
	if opts.Status != "" {
		q += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var entries []models.Interaction
	for rows.Next() {
		var e models.Interaction
		var intent, status, response sql.NullString
		if err := rows.Scan(&e.ID, &e.Prompt, &e.ResolvedPrompt,
			&intent, &status, &response, &e.LatencyMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		e.Intent = models.Intent(intent.String)
		e.Status = models.TurnStatus(status.String)
		e.Response = response.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate turn counts grouped by day and status.
func (l *Logger) Stats(ctx context.Context) ([]models.InteractionStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT date(created_at) as day, status, count(*) as cnt
		 FROM interaction_log GROUP BY day, status ORDER BY day DESC, status`)
	if err != nil {
		return nil, fmt.Errorf("interaction stats: %w", err)
	}
	defer rows.Close()

	var stats []models.InteractionStat
	for rows.Next() {
		var s models.InteractionStat
		var day sql.NullString
		if err := rows.Scan(&day, &s.Status, &s.Count); err != nil {
			return nil, fmt.Errorf("scan interaction stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.retentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM interaction_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("interaction cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
