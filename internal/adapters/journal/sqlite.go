package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foundry/pkgdemo/internal/core/models"
	"github.com/foundry/pkgdemo/internal/core/services"
	"github.com/foundry/pkgdemo/internal/util/ids"

	_ "modernc.org/sqlite"
)

// SQLiteJournal implements services.Journal backed by SQLite.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

var _ services.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens or creates journal.db in dataDir and runs migrations.
func NewSQLiteJournal(dataDir string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := filepath.Join(dataDir, "journal.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteJournal{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS package_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			package_id  TEXT NOT NULL,
			package_key TEXT NOT NULL,
			action      TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			occurred_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_package_events_key ON package_events(package_key);
	`)
	return err
}

func (j *SQLiteJournal) Record(ctx context.Context, e models.PackageEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = j.now()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO package_events (package_id, package_key, action, detail, occurred_at) VALUES (?, ?, ?, ?, ?)",
		e.PackageID, ids.Key(e.PackageID), e.Action, e.Detail, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("recording %s event for %s: %w", e.Action, e.PackageID, err)
	}
	return nil
}

func (j *SQLiteJournal) History(ctx context.Context, packageID string) ([]models.PackageEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, package_id, action, detail, occurred_at
		FROM package_events
		WHERE package_key = ?
		ORDER BY id
	`, ids.Key(packageID))
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var events []models.PackageEvent
	for rows.Next() {
		var e models.PackageEvent
		if err := rows.Scan(&e.ID, &e.PackageID, &e.Action, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Nop discards events. It is used when the journal is disabled.
type Nop struct{}

var _ services.Journal = Nop{}

func (Nop) Record(context.Context, models.PackageEvent) error { return nil }

func (Nop) History(context.Context, string) ([]models.PackageEvent, error) { return nil, nil }

func (Nop) Ping(context.Context) error { return nil }

func (Nop) Close() error { return nil }
