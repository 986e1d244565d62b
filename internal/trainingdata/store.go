package trainingdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mohammad-safakhou/insight/internal/tools"
)

// Record is one stored training session row.
type Record struct {
	ID              int64
	ExerciseType    string
	StartTime       time.Time
	DurationSeconds int64
	Calories        float64
	DistanceMeters  float64
	AvgHeartRate    float64
	MaxHeartRate    float64
}

// TypeSummary aggregates all records of one exercise type.
type TypeSummary struct {
	ExerciseType   string  `json:"exercise_type"`
	Sessions       int64   `json:"sessions"`
	TotalDuration  int64   `json:"total_duration_seconds"`
	TotalDistance  float64 `json:"total_distance_meters"`
	TotalCalories  float64 `json:"total_calories"`
	AvgHeartRate   float64 `json:"avg_heart_rate"`
	FirstSession   string  `json:"first_session"`
	LatestSession  string  `json:"latest_session"`
}

// Store reads training records from Postgres. The database handle is
// injected so callers own pooling and lifecycle.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

const recordColumns = `id, exercise_type, start_time, duration_seconds, calories, distance_meters, avg_heart_rate, max_heart_rate`

// whereClause accumulates numbered conditions so optional filters compose
// without query duplication.
type whereClause struct {
	clauses []string
	args    []any
}

// add appends one condition; expr must contain a single %d for the
// placeholder number.
func (w *whereClause) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(expr, len(w.args)))
}

func (w *whereClause) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// next returns the placeholder number for one more trailing argument.
func (w *whereClause) next(arg any) int {
	w.args = append(w.args, arg)
	return len(w.args)
}

// SearchRecent returns the newest records whose start time falls within the
// trailing window of the given number of days, optionally filtered by
// exercise type ("" = all).
func (s *Store) SearchRecent(ctx context.Context, days int, exerciseType string, limit int) ([]Record, error) {
	var w whereClause
	w.add(`start_time >= NOW() - ($%d || ' days')::interval`, days)
	if exerciseType != "" {
		w.add(`exercise_type = $%d`, exerciseType)
	}
	query := `
SELECT ` + recordColumns + `
FROM training_records` + w.sql() + fmt.Sprintf(`
ORDER BY start_time DESC
LIMIT $%d`, w.next(limit))
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("search recent: %w", err))
	}
	return scanRecords(rows)
}

// SearchByDateRange returns records with start times inside [start, end],
// both dates inclusive, given as YYYY-MM-DD.
func (s *Store) SearchByDateRange(ctx context.Context, start, end, exerciseType string, limit int) ([]Record, error) {
	var w whereClause
	w.add(`start_time >= $%d::date`, start)
	w.add(`start_time < $%d::date + INTERVAL '1 day'`, end)
	if exerciseType != "" {
		w.add(`exercise_type = $%d`, exerciseType)
	}
	query := `
SELECT ` + recordColumns + `
FROM training_records` + w.sql() + fmt.Sprintf(`
ORDER BY start_time DESC
LIMIT $%d`, w.next(limit))
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("search by date range: %w", err))
	}
	return scanRecords(rows)
}

// SearchByDistance returns records with distance at or above min meters and,
// when max is non-nil, at or below max.
func (s *Store) SearchByDistance(ctx context.Context, min float64, max *float64, exerciseType string, limit int) ([]Record, error) {
	var w whereClause
	w.add(`distance_meters >= $%d`, min)
	if max != nil {
		w.add(`distance_meters <= $%d`, *max)
	}
	if exerciseType != "" {
		w.add(`exercise_type = $%d`, exerciseType)
	}
	query := `
SELECT ` + recordColumns + `
FROM training_records` + w.sql() + fmt.Sprintf(`
ORDER BY distance_meters DESC
LIMIT $%d`, w.next(limit))
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("search by distance: %w", err))
	}
	return scanRecords(rows)
}

// SearchByHeartRate returns records whose average heart rate falls at or
// above min beats per minute and, when max is non-nil, at or below max.
func (s *Store) SearchByHeartRate(ctx context.Context, min float64, max *float64, exerciseType string, limit int) ([]Record, error) {
	var w whereClause
	w.add(`avg_heart_rate >= $%d`, min)
	if max != nil {
		w.add(`avg_heart_rate <= $%d`, *max)
	}
	if exerciseType != "" {
		w.add(`exercise_type = $%d`, exerciseType)
	}
	query := `
SELECT ` + recordColumns + `
FROM training_records` + w.sql() + fmt.Sprintf(`
ORDER BY avg_heart_rate DESC
LIMIT $%d`, w.next(limit))
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("search by heart rate: %w", err))
	}
	return scanRecords(rows)
}

// Stats aggregates the whole table, or the slice selected by the optional
// YYYY-MM-DD bounds and exercise type.
func (s *Store) Stats(ctx context.Context, start, end *string, exerciseType string) (map[string]any, error) {
	w := statsWindow(start, end)
	if exerciseType != "" {
		w.add(`exercise_type = $%d`, exerciseType)
	}
	row := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(duration_seconds), 0),
       COALESCE(SUM(distance_meters), 0),
       COALESCE(SUM(calories), 0),
       COALESCE(AVG(avg_heart_rate), 0),
       COALESCE(MAX(max_heart_rate), 0)
FROM training_records`+w.sql(), w.args...)

	var (
		count         int64
		totalDuration int64
		totalDistance float64
		totalCalories float64
		avgHR         float64
		maxHR         float64
	)
	if err := row.Scan(&count, &totalDuration, &totalDistance, &totalCalories, &avgHR, &maxHR); err != nil {
		return nil, classify(fmt.Errorf("stats: %w", err))
	}
	stats := map[string]any{
		"sessions":               count,
		"total_duration_seconds": totalDuration,
		"total_distance_meters":  totalDistance,
		"total_calories":         totalCalories,
		"avg_heart_rate":         avgHR,
		"max_heart_rate":         maxHR,
	}
	if start != nil {
		stats["start"] = *start
	}
	if end != nil {
		stats["end"] = *end
	}
	if exerciseType != "" {
		stats["exercise_type"] = exerciseType
	}
	return stats, nil
}

// ExerciseTypeSummary groups records by exercise type, optionally bounded
// by YYYY-MM-DD dates.
func (s *Store) ExerciseTypeSummary(ctx context.Context, start, end *string) ([]TypeSummary, error) {
	w := statsWindow(start, end)
	rows, err := s.DB.QueryContext(ctx, `
SELECT exercise_type,
       COUNT(*),
       COALESCE(SUM(duration_seconds), 0),
       COALESCE(SUM(distance_meters), 0),
       COALESCE(SUM(calories), 0),
       COALESCE(AVG(avg_heart_rate), 0),
       MIN(start_time),
       MAX(start_time)
FROM training_records`+w.sql()+`
GROUP BY exercise_type
ORDER BY COUNT(*) DESC`, w.args...)
	if err != nil {
		return nil, classify(fmt.Errorf("exercise type summary: %w", err))
	}
	defer rows.Close()

	var out []TypeSummary
	for rows.Next() {
		var (
			ts    TypeSummary
			first time.Time
			last  time.Time
		)
		if err := rows.Scan(&ts.ExerciseType, &ts.Sessions, &ts.TotalDuration, &ts.TotalDistance, &ts.TotalCalories, &ts.AvgHeartRate, &first, &last); err != nil {
			return nil, classify(fmt.Errorf("exercise type summary scan: %w", err))
		}
		ts.FirstSession = first.UTC().Format("2006-01-02")
		ts.LatestSession = last.UTC().Format("2006-01-02")
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("exercise type summary rows: %w", err))
	}
	return out, nil
}

func statsWindow(start, end *string) *whereClause {
	w := &whereClause{}
	if start != nil {
		w.add(`start_time >= $%d::date`, *start)
	}
	if end != nil {
		w.add(`start_time < $%d::date + INTERVAL '1 day'`, *end)
	}
	return w
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.ExerciseType, &r.StartTime, &r.DurationSeconds, &r.Calories, &r.DistanceMeters, &r.AvgHeartRate, &r.MaxHeartRate); err != nil {
			return nil, classify(fmt.Errorf("scan record: %w", err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate records: %w", err))
	}
	return out, nil
}

// classify wraps connection-level failures as transient so the dispatcher
// retries them; query and scan errors stay permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return &tools.TransientError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &tools.TransientError{Err: err}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 is connection exceptions, 53 insufficient resources,
		// 57 operator intervention (shutdown, crash recovery).
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return &tools.TransientError{Err: err}
		}
	}
	return err
}
