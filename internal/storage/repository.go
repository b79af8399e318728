// Package storage keeps the change journal in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lunchtools/internal/core"
	"lunchtools/internal/log"

	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	version uint
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		version: version,
		logger:  logger.WithComponent(log.ComponentJournal),
	}, nil
}

// SchemaVersion reports the migration version the database is at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.version
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record implements tools.Journal
func (r *SQLiteRepository) Record(ctx context.Context, e core.ChangeEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	id, err := r.queries.InsertChange(ctx, InsertChangeParams{
		Tool:      e.Tool,
		Resources: strings.Join(e.Resources, ","),
		Arguments: e.Arguments,
		Result:    e.Result,
		Warning:   e.Warning,
		CreatedAt: created.UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}

	r.logger.DebugContext(ctx, "Change recorded",
		log.FieldOperation, log.OpRecord,
		log.FieldTool, e.Tool,
		"id", id)
	return nil
}

// Recent implements tools.Journal. Entries come newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]core.ChangeEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.queries.ListRecentChanges(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}

	entries := make([]core.ChangeEntry, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("change %d: parse created_at: %w", row.ID, err)
		}
		var resources []string
		if row.Resources != "" {
			resources = strings.Split(row.Resources, ",")
		}
		entries = append(entries, core.ChangeEntry{
			ID:        row.ID,
			Tool:      row.Tool,
			Resources: resources,
			Arguments: row.Arguments,
			Result:    row.Result,
			Warning:   row.Warning,
			CreatedAt: created,
		})
	}
	return entries, nil
}

// Count returns the number of recorded changes.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountChanges(ctx)
	if err != nil {
		return 0, fmt.Errorf("count changes: %w", err)
	}
	return n, nil
}

// Prune deletes entries recorded before cutoff.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.queries.PruneChangesBefore(ctx, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune changes: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Journal pruned",
			log.FieldOperation, log.OpDelete,
			log.FieldCount, n)
	}
	return n, nil
}
