package export

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"receivables/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSink replaces the gold_rows table of a SQLite database in one transaction.
type SQLiteSink struct {
	Path string

	// Now stamps export_runs; defaults to time.Now.
	Now func() time.Time
}

// Name implements Sink.
func (s *SQLiteSink) Name() string { return "sqlite:" + s.Path }

// Write implements Sink.
func (s *SQLiteSink) Write(ctx context.Context, rows []models.GoldRow) error {
	const op = "SQLiteSink.Write"

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("%s: create db directory: %w", op, err)
	}
	if err := RunMigrations(s.Path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("%s: open sqlite database: %w", op, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gold_rows`); err != nil {
		return fmt.Errorf("%s: clear gold_rows: %w", op, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO gold_rows
		(report_date, client, concept, amount, is_current_month, invoice_count, invoice_list, prior_amount, variance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%s: prepare insert: %w", op, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.ReportDateString(),
			r.Client,
			r.Concept.String(),
			r.Amount.String(),
			r.IsCurrentMonth,
			r.InvoiceCount,
			r.InvoiceList(),
			r.PriorAmount.String(),
			r.Variance.String(),
		)
		if err != nil {
			return fmt.Errorf("%s: insert %s/%s/%s: %w", op, r.ReportDateString(), r.Client, r.Concept, err)
		}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO export_runs (exported_at, row_count) VALUES (?, ?)`,
		now().UTC().Format(time.RFC3339), len(rows)); err != nil {
		return fmt.Errorf("%s: record export run: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// RunMigrations brings the database schema at dbPath up to date.
func RunMigrations(dbPath string) error {
	// separate connection so the migrator can close it
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
