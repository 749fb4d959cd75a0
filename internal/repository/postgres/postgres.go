package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartcity/predictor/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS prediction_logs (
		id                  TEXT PRIMARY KEY,
		request_date        TEXT,
		request_temperature DOUBLE PRECISION,
		request_query       TEXT,
		prediction          TEXT NOT NULL,
		confidence_score    DOUBLE PRECISION NOT NULL,
		aqi_prediction      INTEGER NOT NULL,
		traffic_prediction  DOUBLE PRECISION NOT NULL,
		method              TEXT NOT NULL,
		is_mock             BOOLEAN NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_prediction_logs_created_at ON prediction_logs (created_at DESC);
`

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the prediction log table if it does not exist
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// SavePredictionLog persists a prediction request/response to PostgreSQL
func (r *PostgresRepository) SavePredictionLog(ctx context.Context, entry domain.PredictionLog) error {
	query := `
		INSERT INTO prediction_logs (
			id, request_date, request_temperature, request_query,
			prediction, confidence_score, aqi_prediction, traffic_prediction,
			method, is_mock, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, nullable(entry.RequestDate), entry.RequestTemperature, nullable(entry.RequestQuery),
		entry.Prediction, entry.ConfidenceScore, entry.AQIPrediction, entry.TrafficPrediction,
		entry.Method, entry.IsMock, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save prediction log: %w", err)
	}

	return nil
}

// RecentPredictions returns the newest prediction logs first
func (r *PostgresRepository) RecentPredictions(ctx context.Context, limit int) ([]domain.PredictionLog, error) {
	query := `
		SELECT id, COALESCE(request_date, ''), request_temperature, COALESCE(request_query, ''),
			   prediction, confidence_score, aqi_prediction, traffic_prediction,
			   method, is_mock, created_at
		FROM prediction_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query prediction logs: %w", err)
	}
	defer rows.Close()

	results := make([]domain.PredictionLog, 0, limit)
	for rows.Next() {
		var l domain.PredictionLog
		err := rows.Scan(
			&l.ID, &l.RequestDate, &l.RequestTemperature, &l.RequestQuery,
			&l.Prediction, &l.ConfidenceScore, &l.AQIPrediction, &l.TrafficPrediction,
			&l.Method, &l.IsMock, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan prediction log: %w", err)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read prediction logs: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

// Close releases the pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// nullable maps an empty string to SQL NULL
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
