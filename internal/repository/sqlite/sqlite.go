// Package sqlite persists prediction logs in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/smartcity/predictor/internal/domain"
)

// timeLayout is fixed-width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Repository implements domain.DataRepository on SQLite
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (or creates) the database file and migrates it
func New(path string, logger *zap.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to migrate database: %w", err)
	}

	logger.Info("SQLite prediction log initialized", zap.String("path", path))
	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prediction_logs (
		id TEXT PRIMARY KEY,
		request_date TEXT,
		request_temperature REAL,
		request_query TEXT,
		prediction TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		aqi_prediction INTEGER NOT NULL,
		traffic_prediction REAL NOT NULL,
		method TEXT NOT NULL,
		is_mock BOOLEAN NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_prediction_logs_created_at ON prediction_logs(created_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SavePredictionLog inserts one log entry
func (r *Repository) SavePredictionLog(ctx context.Context, entry domain.PredictionLog) error {
	query := `
		INSERT INTO prediction_logs (
			id, request_date, request_temperature, request_query,
			prediction, confidence_score, aqi_prediction, traffic_prediction,
			method, is_mock, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.RequestDate, entry.RequestTemperature, entry.RequestQuery,
		entry.Prediction, entry.ConfidenceScore, entry.AQIPrediction, entry.TrafficPrediction,
		entry.Method, entry.IsMock, entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save prediction log: %w", err)
	}
	return nil
}

// RecentPredictions returns the newest logs first
func (r *Repository) RecentPredictions(ctx context.Context, limit int) ([]domain.PredictionLog, error) {
	query := `
		SELECT id, request_date, request_temperature, request_query,
			prediction, confidence_score, aqi_prediction, traffic_prediction,
			method, is_mock, created_at
		FROM prediction_logs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query prediction logs: %w", err)
	}
	defer rows.Close()

	var results []domain.PredictionLog
	for rows.Next() {
		var (
			l         domain.PredictionLog
			temp      sql.NullFloat64
			createdAt string
		)
		err := rows.Scan(
			&l.ID, &l.RequestDate, &temp, &l.RequestQuery,
			&l.Prediction, &l.ConfidenceScore, &l.AQIPrediction, &l.TrafficPrediction,
			&l.Method, &l.IsMock, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan prediction log: %w", err)
		}
		if temp.Valid {
			l.RequestTemperature = &temp.Float64
		}
		if l.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: invalid created_at %q: %w", createdAt, err)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to read prediction logs: %w", err)
	}
	return results, nil
}

// Health pings the database
func (r *Repository) Health(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: health check failed: %w", err)
	}
	return nil
}

// Close closes the database
func (r *Repository) Close() {
	if err := r.db.Close(); err != nil {
		r.logger.Warn("Failed to close SQLite database", zap.Error(err))
	}
}
