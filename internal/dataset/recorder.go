// Package dataset records graded cases as training data for the rate
// predictor.
package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"onh-grader/internal/metrics"
)

// Sample is one graded disc/cup pair.
type Sample struct {
	Image      string    `db:"image"`
	Source     string    `db:"source"`
	Features   []float64 `db:"features"`
	CDR        float64   `db:"cdr"`
	ISNTPass   bool      `db:"isnt_pass"`
	ISNTTriple string    `db:"isnt_triple"`
	Rate       *float64  `db:"rate"`
	RecordedAt time.Time `db:"recorded_at"`
}

// NewSample builds a sample from an evaluation. ok is false for results
// without a ratio; those carry no usable features.
func NewSample(imagePath, source string, res metrics.Result) (Sample, bool) {
	if !res.HasRatio() {
		return Sample{}, false
	}
	s := Sample{
		Image:      filepath.Base(imagePath),
		Source:     source,
		Features:   res.Features.Slice(),
		CDR:        res.CDR,
		ISNTPass:   res.ISNTPass,
		ISNTTriple: res.ISNT.Triple(),
		RecordedAt: time.Now().UTC(),
	}
	if res.HasRate() {
		rate := res.Rate
		s.Rate = &rate
	}
	return s, true
}

// Recorder stores samples.
type Recorder interface {
	Record(ctx context.Context, s Sample) error
	Close() error
}

// NopRecorder discards samples.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Sample) error { return nil }

func (NopRecorder) Close() error { return nil }

const schema = `
	CREATE TABLE IF NOT EXISTS grading_samples (
		id          BIGSERIAL PRIMARY KEY,
		image       TEXT NOT NULL,
		source      TEXT NOT NULL,
		features    DOUBLE PRECISION[] NOT NULL,
		cdr         DOUBLE PRECISION NOT NULL,
		isnt_pass   BOOLEAN NOT NULL,
		isnt_triple TEXT NOT NULL,
		rate        DOUBLE PRECISION,
		recorded_at TIMESTAMPTZ NOT NULL
	)`

// PostgresRecorder writes samples to the grading_samples table.
type PostgresRecorder struct {
	db *sqlx.DB
}

// NewPostgresRecorder wraps an open database.
func NewPostgresRecorder(db *sqlx.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// OpenPostgres connects to dsn and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dataset database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create dataset table: %w", err)
	}
	return NewPostgresRecorder(db), nil
}

// Record inserts one sample.
func (r *PostgresRecorder) Record(ctx context.Context, s Sample) error {
	const query = `
		INSERT INTO grading_samples (
			image, source, features, cdr,
			isnt_pass, isnt_triple, rate, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err := r.db.ExecContext(ctx, query,
		s.Image, s.Source, pq.Array(s.Features), s.CDR,
		s.ISNTPass, s.ISNTTriple, s.Rate, s.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sample %s: %w", s.Image, err)
	}
	return nil
}

// Count returns the number of stored samples for an image.
func (r *PostgresRecorder) Count(ctx context.Context, image string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM grading_samples WHERE image = $1`, image)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
