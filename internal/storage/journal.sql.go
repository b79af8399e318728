package storage

import (
	"context"
)

type ToolJournal struct {
	ID        int64
	Tool      string
	Resources string
	Arguments string
	Result    string
	Warning   string
	CreatedAt string
}

const countChanges = `-- name: CountChanges :one
SELECT COUNT(*) FROM tool_journal
`

func (q *Queries) CountChanges(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countChanges)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertChange = `-- name: InsertChange :one
INSERT INTO tool_journal (tool, resources, arguments, result, warning, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`

type InsertChangeParams struct {
	Tool      string
	Resources string
	Arguments string
	Result    string
	Warning   string
	CreatedAt string
}

func (q *Queries) InsertChange(ctx context.Context, arg InsertChangeParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertChange,
		arg.Tool,
		arg.Resources,
		arg.Arguments,
		arg.Result,
		arg.Warning,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listRecentChanges = `-- name: ListRecentChanges :many
SELECT id, tool, resources, arguments, result, warning, created_at
FROM tool_journal
ORDER BY id DESC
LIMIT ?
`

func (q *Queries) ListRecentChanges(ctx context.Context, limit int64) ([]ToolJournal, error) {
	rows, err := q.db.QueryContext(ctx, listRecentChanges, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ToolJournal
	for rows.Next() {
		var i ToolJournal
		if err := rows.Scan(
			&i.ID,
			&i.Tool,
			&i.Resources,
			&i.Arguments,
			&i.Result,
			&i.Warning,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const pruneChangesBefore = `-- name: PruneChangesBefore :execrows
DELETE FROM tool_journal WHERE created_at < ?
`

func (q *Queries) PruneChangesBefore(ctx context.Context, createdAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, pruneChangesBefore, createdAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
