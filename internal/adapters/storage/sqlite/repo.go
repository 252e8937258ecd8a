package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/therockpusher/taskweaver/internal/app"
	"github.com/therockpusher/taskweaver/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// schemaVersion is the layout version recorded in schema_version.
const schemaVersion = 1

// fileDSNParams enables foreign keys, WAL and immediate write locks on every connection.
const fileDSNParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// Repository stores tasks and dependency edges in SQLite.
type Repository struct {
	db *sql.DB
	graphStore
}

// Open opens the database at path, creating parent directories and schema as needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, "file:"+filepath.ToSlash(path)+"?"+fileDSNParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	name := "taskweaver-" + uuid.NewString()
	db, err := sql.Open(driverName, "file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// The database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db, graphStore: graphStore{q: db}}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL CHECK (length(title) > 0),
			description TEXT NOT NULL DEFAULT '',
			requirement TEXT NOT NULL DEFAULT '',
			duration_min INTEGER NOT NULL CHECK (duration_min >= 1),
			value REAL NOT NULL CHECK (value >= 0 AND value <= 100),
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'in_progress', 'completed', 'cancelled')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		// Edges cascade with either endpoint; completing or cancelling a task keeps them.
		`CREATE TABLE IF NOT EXISTS task_dependencies (
			task_id TEXT NOT NULL,
			blocker_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (task_id, blocker_id),
			CHECK (task_id <> blocker_id),
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY(blocker_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_dependencies_blocker ON task_dependencies(blocker_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_created_at ON tasks(status, created_at);`,
		`CREATE VIEW IF NOT EXISTS tasks_full AS
			SELECT
				t.id, t.title, t.description, t.requirement, t.duration_min, t.value, t.status, t.created_at, t.updated_at,
				(
					SELECT COUNT(*)
					FROM task_dependencies d
					JOIN tasks b ON b.id = d.blocker_id
					WHERE d.task_id = t.id AND b.status IN ('pending', 'in_progress')
				) AS active_blocker_count,
				(
					SELECT COUNT(*)
					FROM task_dependencies d
					WHERE d.blocker_id = t.id
				) AS tasks_blocked_count
			FROM tasks t;`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO schema_version(version)
		SELECT ? WHERE NOT EXISTS (SELECT 1 FROM schema_version)
	`, schemaVersion); err != nil {
		return fmt.Errorf("migrate sqlite schema_version: %w", err)
	}
	return nil
}

// SchemaVersion returns the recorded schema layout version.
func (r *Repository) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// WithinTx runs fn in one immediate write transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(app.GraphTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(graphStore{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit write tx: %w", err)
	}
	return nil
}

// ReadTx runs fn inside a deferred read transaction so every lookup sees one snapshot.
func (r *Repository) ReadTx(ctx context.Context, fn func(app.GraphReader) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	return fn(graphStore{q: tx})
}

// ReplaceAll swaps every task and edge in one transaction.
func (r *Repository) ReplaceAll(ctx context.Context, tasks []domain.Task, edges []domain.Dependency) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM task_dependencies`, `DELETE FROM tasks`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear store: %w", err)
		}
	}
	store := graphStore{q: tx}
	for _, task := range tasks {
		if err = store.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("insert task %q: %w", task.ID, err)
		}
	}
	for _, edge := range edges {
		if err = store.InsertEdge(ctx, edge); err != nil {
			return fmt.Errorf("insert dependency %s -> %s: %w", edge.TaskID, edge.BlockerID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// queryer represents the read/write contract shared by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// graphStore implements the graph ports over a database handle or an open transaction.
type graphStore struct {
	q queryer
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// isUniqueConstraintErr reports whether err is a UNIQUE or PRIMARY KEY violation.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
