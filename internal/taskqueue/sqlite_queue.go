package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/prefix-dev/sdk-core/pkg/api"
)

// SQLiteQueue is a persistent Queue implementation backed by SQLite. Several
// SQLiteQueue instances may share one database; each serves a single task
// queue, selected by the task_queue column. FIFO semantics come from the
// auto-incrementing row id.
type SQLiteQueue struct {
	db           *sql.DB
	taskQueue    string
	pollInterval time.Duration
}

// NewSQLiteQueue initializes the tasks table in the given DB (idempotent)
// and returns a queue serving taskQueue.
func NewSQLiteQueue(db *sql.DB, taskQueue string) (*SQLiteQueue, error) {
	q := &SQLiteQueue{
		db:           db,
		taskQueue:    taskQueue,
		pollInterval: 20 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			type TEXT NOT NULL,
			task_queue TEXT NOT NULL,
			payload BLOB,
			enqueued_at INTEGER NOT NULL,
			attempt INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_queue ON tasks(task_queue, id);
	`)
	return err
}

// Ensure SQLiteQueue implements Queue.
var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Enqueue(ctx context.Context, t api.Task) error {
	payloadBytes, err := encodePayload(t.Payload)
	if err != nil {
		return err
	}

	enqueuedAt := t.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now()
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, type, task_queue, payload, enqueued_at, attempt)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID,
		string(t.Type),
		q.taskQueue,
		payloadBytes,
		enqueuedAt.UnixNano(),
		t.Attempt,
	)
	return err
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*api.Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}

		var (
			id          int64
			taskID      string
			typeStr     string
			payload     []byte
			enqueuedInt int64
			attempt     int
		)

		row := tx.QueryRowContext(ctx, `
			SELECT id, task_id, type, payload, enqueued_at, attempt
			FROM tasks
			WHERE task_queue = ?
			ORDER BY id
			LIMIT 1`, q.taskQueue)
		err = row.Scan(&id, &taskID, &typeStr, &payload, &enqueuedInt, &attempt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				_ = tx.Rollback()
				// Nothing available: sleep a bit and retry.
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(q.pollInterval):
					continue
				}
			}
			_ = tx.Rollback()
			return nil, err
		}

		// Delete the row we just claimed.
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			_ = tx.Rollback()
			return nil, err
		}

		if err := tx.Commit(); err != nil {
			return nil, err
		}

		decoded, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}

		return &api.Task{
			ID:         taskID,
			Type:       api.TaskType(typeStr),
			TaskQueue:  q.taskQueue,
			Payload:    decoded,
			EnqueuedAt: time.Unix(0, enqueuedInt),
			Attempt:    attempt,
		}, nil
	}
}

func (q *SQLiteQueue) Len() int {
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE task_queue = ?`, q.taskQueue).Scan(&n)
	if err != nil {
		return 0
	}
	return n
}
