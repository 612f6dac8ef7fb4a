// Package sqlite persists label-level cycle outcomes for accuracy reporting.
// Issue text is never written.
package sqlite

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ticketbot/internal/domain"
)

const (
	FailurePredict  = "predict"
	FailureFeedback = "feedback"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cycle_outcomes (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id        TEXT NOT NULL UNIQUE,
		predicted_label TEXT NOT NULL,
		outcome         TEXT NOT NULL,
		corrected_label TEXT DEFAULT '',
		source          TEXT NOT NULL DEFAULT '',
		recorded_at     DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_co_recorded_at ON cycle_outcomes(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_co_predicted ON cycle_outcomes(predicted_label);

	CREATE TABLE IF NOT EXISTS prediction_failures (
		day   TEXT NOT NULL,
		kind  TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, kind)
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InsertCycleOutcome records an acknowledged cycle. A cycle is recorded at
// most once; repeats are ignored.
func InsertCycleOutcome(db *sql.DB, o domain.CycleOutcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}
	_, err := db.Exec(
		`INSERT OR IGNORE INTO cycle_outcomes (cycle_id, predicted_label, outcome, corrected_label, source, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.CycleID, o.PredictedLabel, string(o.Kind), o.CorrectedLabel, o.Source, o.RecordedAt.UTC(),
	)
	return err
}

func GetRecentOutcomes(db *sql.DB, since time.Time, limit int) ([]domain.CycleOutcome, error) {
	rows, err := db.Query(
		`SELECT id, cycle_id, predicted_label, outcome, COALESCE(corrected_label, ''), source, recorded_at
		 FROM cycle_outcomes
		 WHERE recorded_at >= ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CycleOutcome
	for rows.Next() {
		var o domain.CycleOutcome
		var kind string
		if err := rows.Scan(&o.ID, &o.CycleID, &o.PredictedLabel, &kind, &o.CorrectedLabel, &o.Source, &o.RecordedAt); err != nil {
			return nil, err
		}
		o.Kind = domain.FeedbackKind(kind)
		out = append(out, o)
	}
	return out, rows.Err()
}

// IncrementFailure bumps the per-day failure counter for kind.
func IncrementFailure(db *sql.DB, kind string, at time.Time) error {
	_, err := db.Exec(
		`INSERT INTO prediction_failures (day, kind, count) VALUES (?, ?, 1)
		 ON CONFLICT(day, kind) DO UPDATE SET count = count + 1`,
		at.UTC().Format("2006-01-02"), kind,
	)
	return err
}

func GetOutcomeStats(db *sql.DB, since time.Time) (domain.OutcomeStats, error) {
	var s domain.OutcomeStats
	err := db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN outcome = 'confirmed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN outcome = 'corrected' THEN 1 ELSE 0 END), 0)
		 FROM cycle_outcomes WHERE recorded_at >= ?`,
		since.UTC(),
	).Scan(&s.TotalCycles, &s.TotalConfirmations, &s.TotalCorrections)
	if err != nil {
		return s, err
	}

	err = db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN kind = 'predict' THEN count ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'feedback' THEN count ELSE 0 END), 0)
		 FROM prediction_failures WHERE day >= ?`,
		since.UTC().Format("2006-01-02"),
	).Scan(&s.PredictFailures, &s.FeedbackFailures)
	return s, err
}

// GetMostCorrectedLabels lists predicted labels by how often users corrected
// them, most corrected first.
func GetMostCorrectedLabels(db *sql.DB, since time.Time, limit int) ([]domain.LabelCorrectionStat, error) {
	rows, err := db.Query(
		`SELECT predicted_label, COUNT(*) as cnt
		 FROM cycle_outcomes
		 WHERE outcome = 'corrected' AND recorded_at >= ?
		 GROUP BY predicted_label
		 ORDER BY cnt DESC, predicted_label
		 LIMIT ?`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LabelCorrectionStat
	for rows.Next() {
		var s domain.LabelCorrectionStat
		if err := rows.Scan(&s.PredictedLabel, &s.CorrectionCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func GetCorrectionPairs(db *sql.DB, since time.Time, limit int) ([]domain.CorrectionPair, error) {
	rows, err := db.Query(
		`SELECT predicted_label, corrected_label, COUNT(*) as cnt
		 FROM cycle_outcomes
		 WHERE outcome = 'corrected' AND recorded_at >= ?
		 GROUP BY predicted_label, corrected_label
		 ORDER BY cnt DESC, predicted_label, corrected_label
		 LIMIT ?`,
		since.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CorrectionPair
	for rows.Next() {
		var p domain.CorrectionPair
		if err := rows.Scan(&p.PredictedLabel, &p.CorrectedLabel, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetWeeklyTrend groups outcomes by the Monday of their week, newest first.
func GetWeeklyTrend(db *sql.DB, since time.Time) ([]domain.WeeklyTrend, error) {
	rows, err := db.Query(
		`SELECT
		    strftime('%Y-%m-%d', recorded_at, 'weekday 0', '-6 days') as week_start,
		    COUNT(*) as cycles,
		    COALESCE(SUM(CASE WHEN outcome = 'corrected' THEN 1 ELSE 0 END), 0) as corrections
		 FROM cycle_outcomes
		 WHERE recorded_at >= ?
		 GROUP BY week_start
		 ORDER BY week_start DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []domain.WeeklyTrend
	for rows.Next() {
		var t domain.WeeklyTrend
		if err := rows.Scan(&t.WeekStart, &t.Cycles, &t.Corrections); err != nil {
			return nil, err
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}
