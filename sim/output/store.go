package output

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/respond-sim/respond/sim"
	"github.com/respond-sim/respond/sim/accounting"
	"github.com/respond-sim/respond/sim/matrix"
)

// ErrRunExists is returned when a run id is saved twice.
var ErrRunExists = errors.New("run already stored")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
	   run_id     TEXT PRIMARY KEY,
	   input_dir  TEXT NOT NULL,
	   horizon    INTEGER NOT NULL,
	   created_at INTEGER NOT NULL
	 )`,
	`CREATE TABLE IF NOT EXISTS history (
	   run_id       TEXT NOT NULL REFERENCES runs(run_id),
	   series       TEXT NOT NULL,
	   period       INTEGER NOT NULL,
	   intervention TEXT NOT NULL,
	   behavior     TEXT NOT NULL,
	   demographic  TEXT NOT NULL,
	   value        REAL NOT NULL,
	   PRIMARY KEY (run_id, series, period, intervention, behavior, demographic)
	 )`,
	`CREATE TABLE IF NOT EXISTS totals (
	   run_id     TEXT NOT NULL REFERENCES runs(run_id),
	   measure    TEXT NOT NULL,
	   base       REAL NOT NULL,
	   discounted REAL NOT NULL,
	   PRIMARY KEY (run_id, measure)
	 )`,
}

// RunRecord is one completed run as stored in SQLite.
type RunRecord struct {
	RunID     uuid.UUID
	InputDir  string
	Labels    sim.Labels
	History   *sim.History
	Totals    *accounting.Totals // nil when cost analysis is disabled
	CreatedAt time.Time
}

// ResultStore persists run histories and totals in a SQLite database.
type ResultStore struct {
	sqlDB *sql.DB
}

// OpenResultStore opens (creating if needed) the database at path.
func OpenResultStore(path string) (*ResultStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &ResultStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *ResultStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type namedSeries struct {
	name string
	t    matrix.TimedMatrix3d
}

// historySeries names each ledger of a history for the series column.
func historySeries(h *sim.History) []namedSeries {
	return []namedSeries{
		{"state", h.State},
		{"entering", h.Entering},
		{"admissions", h.InterventionAdmissions},
		{"overdoses", h.Overdoses},
		{"fatal_overdoses", h.FatalOverdoses},
		{"deaths", h.Deaths},
	}
}

// SaveRun stores rec in one transaction. Saving the same run id twice
// returns ErrRunExists.
func (s *ResultStore) SaveRun(ctx context.Context, rec RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if rec.History == nil {
		return fmt.Errorf("run %s: history is required", rec.RunID)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, input_dir, horizon, created_at) VALUES (?, ?, ?, ?)`,
		rec.RunID.String(), rec.InputDir, rec.History.Horizon(), createdAt.UTC().UnixMilli(),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("run %s: %w", rec.RunID, ErrRunExists)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO history (run_id, series, period, intervention, behavior, demographic, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()
	for _, series := range historySeries(rec.History) {
		for n := range series.t.Len() {
			period, m := series.t.Index(n)
			shape := m.Shape()
			if err := checkLabels(rec.Labels, shape); err != nil {
				return fmt.Errorf("%s series: %w", series.name, err)
			}
			for i := range shape.Interventions {
				for b := range shape.Behaviors {
					for d := range shape.Demographics {
						if _, err := stmt.ExecContext(ctx, rec.RunID.String(), series.name, period,
							rec.Labels.Interventions[i], rec.Labels.Behaviors[b], rec.Labels.Demographics[d],
							m.At(i, b, d)); err != nil {
							return fmt.Errorf("insert %s period %d: %w", series.name, period, err)
						}
					}
				}
			}
		}
	}

	if rec.Totals != nil {
		for _, r := range TotalRows(*rec.Totals, rec.Labels.Demographics) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO totals (run_id, measure, base, discounted) VALUES (?, ?, ?, ?)`,
				rec.RunID.String(), r.Measure, r.Base, r.Discounted,
			); err != nil {
				return fmt.Errorf("insert total %s: %w", r.Measure, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", rec.RunID, err)
	}
	return nil
}

func checkLabels(l sim.Labels, shape matrix.Shape) error {
	if len(l.Interventions) != shape.Interventions || len(l.Behaviors) != shape.Behaviors || len(l.Demographics) != shape.Demographics {
		return fmt.Errorf("labels %dx%dx%d, matrix %s: %w",
			len(l.Interventions), len(l.Behaviors), len(l.Demographics), shape, sim.ErrDimensionMismatch)
	}
	return nil
}

// LoadTotals returns the stored totals of a run in measure order.
func (s *ResultStore) LoadTotals(ctx context.Context, runID uuid.UUID) ([]TotalRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT measure, base, discounted FROM totals WHERE run_id = ? ORDER BY measure`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()
	var out []TotalRow
	for rows.Next() {
		var r TotalRow
		if err := rows.Scan(&r.Measure, &r.Base, &r.Discounted); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeriesTotals returns the population-wide sum of one stored series per period.
func (s *ResultStore) SeriesTotals(ctx context.Context, runID uuid.UUID, series string) (map[int]float64, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT period, SUM(value) FROM history WHERE run_id = ? AND series = ? GROUP BY period`,
		runID.String(), series)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", series, err)
	}
	defer rows.Close()
	out := map[int]float64{}
	for rows.Next() {
		var (
			period int
			sum    float64
		)
		if err := rows.Scan(&period, &sum); err != nil {
			return nil, fmt.Errorf("scan %s: %w", series, err)
		}
		out[period] = sum
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
