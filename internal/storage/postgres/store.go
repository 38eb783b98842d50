package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/bettycrystal/betty-backend/models"
)

// Store implements models.PredictionStore on PostgreSQL
type Store struct {
	db *sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New creates a new database connection and ensures the schema exists
func New(params ConnectionParams) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			week_start TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL,
			asset_type TEXT NOT NULL,
			current_price DOUBLE PRECISION NOT NULL,
			direction TEXT NOT NULL,
			predicted_change_percent DOUBLE PRECISION NOT NULL,
			predicted_target_price DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			reasoning TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS evaluations (
			prediction_id TEXT PRIMARY KEY REFERENCES predictions(id),
			actual_price DOUBLE PRECISION NOT NULL,
			actual_change_percent DOUBLE PRECISION NOT NULL,
			was_correct BOOLEAN NOT NULL,
			price_diff_percent DOUBLE PRECISION NOT NULL,
			accuracy_score DOUBLE PRECISION NOT NULL,
			evaluated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

const predictionColumns = `
	id, week_start, symbol, name, asset_type, current_price,
	direction, predicted_change_percent, predicted_target_price,
	confidence, reasoning, created_at
`

// FindPredictionsForWeek returns the predictions pinned to the given week
// bucket, oldest first.
func (s *Store) FindPredictionsForWeek(ctx context.Context, weekStart time.Time) ([]models.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions
		WHERE week_start = $1
		ORDER BY created_at, id
	`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("querying predictions for week: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// InsertPredictions writes the batch in one transaction: all or nothing
func (s *Store) InsertPredictions(ctx context.Context, preds []models.Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range preds {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO predictions (`+predictionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			p.ID, p.WeekStart, p.Symbol, p.Name, p.AssetType, p.CurrentPrice,
			p.Direction, p.PredictedChangePercent, p.PredictedTargetPrice,
			p.Confidence, p.Reasoning, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting prediction %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// FindUnevaluatedBefore returns predictions from weeks starting before the
// cutoff that have no evaluation yet.
func (s *Store) FindUnevaluatedBefore(ctx context.Context, weekStart time.Time) ([]models.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions p
		WHERE p.week_start < $1
		  AND NOT EXISTS (SELECT 1 FROM evaluations e WHERE e.prediction_id = p.id)
		ORDER BY p.created_at, p.id
	`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("querying unevaluated predictions: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// FindEvaluation returns the stored evaluation for the prediction id, or
// (nil, nil) when none exists.
func (s *Store) FindEvaluation(ctx context.Context, predictionID string) (*models.Evaluation, error) {
	var ev models.Evaluation
	err := s.db.QueryRowContext(ctx, `
		SELECT prediction_id, actual_price, actual_change_percent,
		       was_correct, price_diff_percent, accuracy_score, evaluated_at
		FROM evaluations
		WHERE prediction_id = $1
	`, predictionID).Scan(
		&ev.PredictionID, &ev.ActualPrice, &ev.ActualChangePercent,
		&ev.WasCorrect, &ev.PriceDiffPercent, &ev.AccuracyScore, &ev.EvaluatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying evaluation: %w", err)
	}
	return &ev, nil
}

// InsertEvaluation stores one evaluation per prediction id. A concurrent
// duplicate insert is absorbed: the first stored result wins.
func (s *Store) InsertEvaluation(ctx context.Context, ev models.Evaluation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (
			prediction_id, actual_price, actual_change_percent,
			was_correct, price_diff_percent, accuracy_score, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (prediction_id) DO NOTHING
	`,
		ev.PredictionID, ev.ActualPrice, ev.ActualChangePercent,
		ev.WasCorrect, ev.PriceDiffPercent, ev.AccuracyScore, ev.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("inserting evaluation: %w", err)
	}
	return nil
}

// FindEvaluatedPredictions returns every prediction that has an evaluation,
// in stable creation order.
func (s *Store) FindEvaluatedPredictions(ctx context.Context) ([]models.EvaluatedPrediction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.id, p.week_start, p.symbol, p.name, p.asset_type, p.current_price,
			p.direction, p.predicted_change_percent, p.predicted_target_price,
			p.confidence, p.reasoning, p.created_at,
			e.actual_price, e.actual_change_percent, e.was_correct,
			e.price_diff_percent, e.accuracy_score, e.evaluated_at
		FROM predictions p
		JOIN evaluations e ON e.prediction_id = p.id
		ORDER BY p.created_at, p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying evaluated predictions: %w", err)
	}
	defer rows.Close()

	var out []models.EvaluatedPrediction
	for rows.Next() {
		var ep models.EvaluatedPrediction
		p := &ep.Prediction
		e := &ep.Evaluation
		if err := rows.Scan(
			&p.ID, &p.WeekStart, &p.Symbol, &p.Name, &p.AssetType, &p.CurrentPrice,
			&p.Direction, &p.PredictedChangePercent, &p.PredictedTargetPrice,
			&p.Confidence, &p.Reasoning, &p.CreatedAt,
			&e.ActualPrice, &e.ActualChangePercent, &e.WasCorrect,
			&e.PriceDiffPercent, &e.AccuracyScore, &e.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning evaluated prediction: %w", err)
		}
		e.PredictionID = p.ID
		out = append(out, ep)
	}
	return out, rows.Err()
}

func scanPredictions(rows *sql.Rows) ([]models.Prediction, error) {
	var out []models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(
			&p.ID, &p.WeekStart, &p.Symbol, &p.Name, &p.AssetType, &p.CurrentPrice,
			&p.Direction, &p.PredictedChangePercent, &p.PredictedTargetPrice,
			&p.Confidence, &p.Reasoning, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
