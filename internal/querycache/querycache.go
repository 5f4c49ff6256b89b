// Package querycache maintains a derived, rebuildable SQLite secondary
// index over the task set for fast list/explain/graph queries on large
// repos. It is never authoritative: every rebuild starts from the JSON
// cache's task list and replaces the database wholesale.
package querycache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/taskctl/taskctl/internal/task"
)

// DefaultPath is the secondary index location under the cache directory.
const DefaultPath = "tasks/.cache/query_cache.db"

// DB wraps the embedded SQLite connection backing the secondary index.
type DB struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open creates or opens the query cache database at path, enabling WAL
// mode so concurrent readers never block a rebuild.
func Open(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[querycache] ", log.LstdFlags)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create query cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("open query cache: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping query cache: %w", err)
	}
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	return &DB{conn: conn, path: path, logger: logger}, nil
}

// Close checkpoints the WAL and closes the connection.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	if _, err := d.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		d.logger.Printf("warning: wal checkpoint failed: %v", err)
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	area TEXT NOT NULL,
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	unblocker INTEGER NOT NULL DEFAULT 0,
	task_order INTEGER,
	archived INTEGER NOT NULL DEFAULT 0,
	path TEXT NOT NULL,
	blocked_by TEXT,  -- JSON array
	depends_on TEXT   -- JSON array
);

CREATE TABLE IF NOT EXISTS blocking_edges (
	task_id TEXT NOT NULL,
	blocker_id TEXT NOT NULL,
	PRIMARY KEY (task_id, blocker_id)
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
CREATE INDEX IF NOT EXISTS idx_tasks_unblocker ON tasks(unblocker);
CREATE INDEX IF NOT EXISTS idx_tasks_ready
    ON tasks(status, unblocker, priority, task_order);
CREATE INDEX IF NOT EXISTS idx_edges_blocker ON blocking_edges(blocker_id);
`

// InitSchema creates the secondary index schema, idempotently.
func (d *DB) InitSchema(ctx context.Context) error {
	_, err := d.conn.ExecContext(ctx, schemaSQL)
	return err
}

// Rebuild replaces the entire secondary index with the given task list.
// It is always a wholesale rebuild: the cache is never incrementally
// patched, so a partially-synced index can never diverge from the JSON
// cache that authoritatively produced tasks.
func (d *DB) Rebuild(ctx context.Context, tasks []*task.Task) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM blocking_edges"); err != nil {
		return fmt.Errorf("clear blocking_edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	insertTask, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, title, area, status, priority, unblocker,
			task_order, archived, path, blocked_by, depends_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare task insert: %w", err)
	}
	defer insertTask.Close()

	insertEdge, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO blocking_edges (task_id, blocker_id) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer insertEdge.Close()

	for _, t := range tasks {
		blockedByJSON, err := json.Marshal(t.BlockedBy)
		if err != nil {
			return fmt.Errorf("marshal blocked_by for %s: %w", t.ID, err)
		}
		dependsOnJSON, err := json.Marshal(t.DependsOn)
		if err != nil {
			return fmt.Errorf("marshal depends_on for %s: %w", t.ID, err)
		}
		var order any
		if t.Order != nil {
			order = *t.Order
		}
		if _, err := insertTask.ExecContext(ctx,
			t.ID, t.Title, t.Area, string(t.Status), string(t.Priority),
			boolToInt(t.Unblocker), order, boolToInt(t.Archived), t.Path,
			string(blockedByJSON), string(dependsOnJSON),
		); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
		for _, blocker := range t.BlockedBy {
			if _, err := insertEdge.ExecContext(ctx, t.ID, blocker); err != nil {
				return fmt.Errorf("insert edge %s<-%s: %w", t.ID, blocker, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	d.logger.Printf("rebuilt query cache: %d tasks", len(tasks))
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ReadyRow is one row of the fast ready-work query.
type ReadyRow struct {
	ID        string
	Title     string
	Area      string
	Status    string
	Priority  string
	Unblocker bool
}

// ReadyTasks returns non-completed, non-archived tasks that have no
// outstanding blocking edge to a task whose status is not completed —
// a fast approximation of the picker's ready set for dashboards and
// large-repo `list` queries that don't need full picker semantics.
func (d *DB) ReadyTasks(ctx context.Context) ([]ReadyRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT t.id, t.title, t.area, t.status, t.priority, t.unblocker
		FROM tasks t
		WHERE t.status != 'completed' AND t.archived = 0
		  AND NOT EXISTS (
			SELECT 1 FROM blocking_edges e
			JOIN tasks b ON b.id = e.blocker_id
			WHERE e.task_id = t.id AND b.status != 'completed'
		  )
		ORDER BY t.unblocker DESC, t.priority ASC, t.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query ready tasks: %w", err)
	}
	defer rows.Close()

	var out []ReadyRow
	for rows.Next() {
		var r ReadyRow
		var unblocker int
		if err := rows.Scan(&r.ID, &r.Title, &r.Area, &r.Status, &r.Priority, &unblocker); err != nil {
			return nil, err
		}
		r.Unblocker = unblocker != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stale reports whether the secondary index's row count diverges from
// wantCount, the authoritative task count from the JSON cache — the
// signal the CLI uses to decide whether a query should trigger a
// Rebuild before answering. The index is a convenience path, not a
// source of truth, so divergence is resolved by rebuilding, never by
// trying to reconcile in place.
func (d *DB) Stale(ctx context.Context, wantCount int) (bool, error) {
	var n int
	if err := d.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n); err != nil {
		return true, fmt.Errorf("count query cache tasks: %w", err)
	}
	return n != wantCount, nil
}

// GeneratedAt returns a timestamp marker for diagnostics output.
func GeneratedAt() string {
	return time.Now().UTC().Format(time.RFC3339)
}
