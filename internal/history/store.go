// Package history persists probe runs in SQLite and derives per-destination
// hourly baselines from them.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrRunNotFound = errors.New("probe run not found")

// Store is the single writer for probe history. SQLite serializes writers,
// so the connection pool is pinned to one connection.
type Store struct {
	conn   *sql.DB
	cfg    *config.Config
	logger *slog.Logger
}

// Open opens (creating if needed) the history database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.DBPath())

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		conn:   conn,
		cfg:    cfg,
		logger: slog.Default().With("component", "history"),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			migrations = append(migrations, entry.Name())
		}
	}

	for _, filename := range migrations {
		var version int
		fmt.Sscanf(filename, "%d_", &version)

		var count int
		err := s.conn.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		statements := strings.Split(stripSQLComments(string(content)), ";")
		for _, stmt := range statements {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration: %w", err)
		}

		s.logger.Info("Applied migration", "version", version, "file", filename)
	}
	return nil
}

// stripSQLComments drops "--" comment lines so that splitting on ";" only
// sees executable SQL. A semicolon inside a comment must not end a
// statement.
func stripSQLComments(sql string) string {
	var sb strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Insert persists one probe run: a header row with the full JSON payload
// plus one queryable row per destination, in a single transaction. Old
// rows beyond the retention window are purged afterwards on a best-effort
// basis.
func (s *Store) Insert(ctx context.Context, run *models.ProbeRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO probe_runs (run_id, started_at, finished_at, mode, ok, total, succeeded, failed, failure_destination_number, failure_stage, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.StartedAt, run.FinishedAt, run.Mode, run.OK,
		run.Summary.Total, run.Summary.Succeeded, run.Summary.Failed,
		run.FailureDestinationNumber, stagePtr(run.FailureStage), string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	localHour := run.StartedAt.In(s.cfg.Location).Hour()
	for _, d := range run.Destinations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO probe_results (run_id, dest_key, number, started_at, local_hour, completed_call, no_issues, setup_latency_ms, sip_final_code, category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.RunID, string(d.Key), d.Number, run.StartedAt, localHour,
			d.CompletedCall, d.NoIssues, d.SetupLatencyMs, d.SIPFinalCode, catPtr(d.Category))
		if err != nil {
			return fmt.Errorf("failed to insert destination result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	if n, err := s.PurgeOlderThan(ctx, s.cfg.RetentionDays); err != nil {
		s.logger.Warn("History purge failed", "error", err)
	} else if n > 0 {
		s.logger.Info("Purged expired probe runs", "count", n)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*models.ProbeRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT payload FROM probe_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ProbeRun
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		run := &models.ProbeRun{}
		if err := json.Unmarshal([]byte(payload), run); err != nil {
			return nil, fmt.Errorf("failed to decode run payload: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Latest returns the most recent run, or ErrRunNotFound.
func (s *Store) Latest(ctx context.Context) (*models.ProbeRun, error) {
	runs, err := s.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return runs[0], nil
}

// PurgeOlderThan deletes runs whose finished_at predates the given number
// of days and returns how many were removed. Destination rows go with
// them via the foreign key cascade.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.conn.ExecContext(ctx, `DELETE FROM probe_runs WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	return res.RowsAffected()
}

func stagePtr(s *models.Stage) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func catPtr(c *models.Category) *string {
	if c == nil {
		return nil
	}
	v := string(*c)
	return &v
}
