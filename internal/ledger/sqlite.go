package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bellwood/slotwatch/internal/appointment"
)

const defaultSQLiteTable = "seen_slots"

// SQLiteLedger persists seen keys to disk, which run-once/cron deployments
// need for dedup to hold across process invocations.
type SQLiteLedger struct {
	db         *sql.DB
	table      string
	tableIdent string
}

func NewSQLiteLedger(dsn string, table string) (*SQLiteLedger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if table == "" {
		table = defaultSQLiteTable
	}
	tableIdent, err := quoteSQLiteIdentifier(table)
	if err != nil {
		return nil, err
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteLedger{
		db:         db,
		table:      table,
		tableIdent: tableIdent,
	}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (l *SQLiteLedger) IsNew(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var lastSeen time.Time
	query := fmt.Sprintf("SELECT last_seen FROM %s WHERE key = ?", l.tableIdent)
	err := l.db.QueryRowContext(ctx, query, key).Scan(&lastSeen)
	if err != nil {
		if err == sql.ErrNoRows {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (l *SQLiteLedger) MarkNotified(ctx context.Context, key string, slotDate appointment.Date, at time.Time) error {
	if key == "" {
		return nil
	}
	_, err := l.db.ExecContext(
		ctx,
		fmt.Sprintf("INSERT INTO %s (key, slot_date, first_seen, last_seen) VALUES (?, ?, ?, ?) ON CONFLICT(key) DO UPDATE SET last_seen = excluded.last_seen", l.tableIdent),
		key,
		slotDate.String(),
		at.UTC(),
		at.UTC(),
	)
	return err
}

func (l *SQLiteLedger) ExpireOlderThan(ctx context.Context, cutoff appointment.Date) error {
	_, err := l.db.ExecContext(
		ctx,
		fmt.Sprintf("DELETE FROM %s WHERE slot_date < ?", l.tableIdent),
		cutoff.String(),
	)
	return err
}

func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *SQLiteLedger) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		slot_date TEXT NOT NULL,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL
	)`, l.tableIdent)
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sqlite table: %w", err)
	}
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_slot_date_idx ON %s (slot_date)", l.table, l.tableIdent)
	if _, err := l.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create sqlite index: %w", err)
	}
	return nil
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
		if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
			dsn = dsn[:idx]
		}
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var sqliteIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteSQLiteIdentifier(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("sqlite table name is required")
	}
	if !sqliteIdentifierPattern.MatchString(identifier) {
		return "", fmt.Errorf("sqlite table name %q must match %s", identifier, sqliteIdentifierPattern.String())
	}
	return `"` + identifier + `"`, nil
}
