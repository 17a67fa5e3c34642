package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DataFileName is the default SQLite file under the app home dir.
	DataFileName = "data.db"

	upsertCustomerSQL = `INSERT INTO customers (
			customer_id, engagement_score, tenure, support_response_time,
			revenue, last_activity_date
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (customer_id) DO UPDATE SET
			engagement_score = excluded.engagement_score,
			tenure = excluded.tenure,
			support_response_time = excluded.support_response_time,
			revenue = excluded.revenue,
			last_activity_date = excluded.last_activity_date
	`

	selectCustomersSQL = `SELECT
			customer_id, engagement_score, tenure, support_response_time,
			revenue, last_activity_date
		FROM customers
		ORDER BY customer_id
	`

	upsertPredictionSQL = `INSERT INTO churn_predictions (
			customer_id, churn_probability, risk_segment, model_version, created_at
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (customer_id) DO UPDATE SET
			churn_probability = excluded.churn_probability,
			risk_segment = excluded.risk_segment,
			model_version = excluded.model_version,
			created_at = excluded.created_at
	`

	selectPredictionsSQL = `SELECT
			customer_id, churn_probability, risk_segment,
			COALESCE(model_version, ''), created_at
		FROM churn_predictions
		ORDER BY churn_probability DESC
		LIMIT ?
	`
)

var (
	//go:embed sql/*
	ddl embed.FS
)

// Init creates the SQLite database file with its schema if it does not
// exist yet. Safe to call repeatedly.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	if _, err := os.Stat(dbFilePath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking database file %s: %w", dbFilePath, err)
	}

	db, err := GetDB(dbFilePath)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := ddl.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("creating database schema in %s: %w", dbFilePath, err)
	}

	return nil
}

// GetDB opens the SQLite database at path.
func GetDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return conn, nil
}

// SQLite is the local file-backed Store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite initializes (when needed) and opens the local store.
func OpenSQLite(dbFilePath string) (*SQLite, error) {
	if err := Init(dbFilePath); err != nil {
		return nil, err
	}
	db, err := GetDB(dbFilePath)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLite) Customers(ctx context.Context) ([]*Customer, error) {
	rows, err := s.db.QueryContext(ctx, selectCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: querying customers: %v", ErrDataAccess, err)
	}
	defer rows.Close()

	list := make([]*Customer, 0)
	for rows.Next() {
		var c Customer
		var date sql.NullString
		if err := rows.Scan(&c.CustomerID, &c.EngagementScore, &c.Tenure,
			&c.SupportResponseTime, &c.Revenue, &date); err != nil {
			return nil, fmt.Errorf("%w: scanning customer row: %v", ErrDataAccess, err)
		}
		if date.Valid {
			c.LastActivityDate = &date.String
		}
		list = append(list, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading customer rows: %v", ErrDataAccess, err)
	}

	return list, nil
}

func (s *SQLite) SaveCustomers(ctx context.Context, list []*Customer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting customer tx: %v", ErrDataAccess, err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertCustomerSQL)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("%w: preparing customer upsert: %v", ErrDataAccess, err)
	}

	for _, c := range list {
		if _, err := stmt.ExecContext(ctx, c.CustomerID, c.EngagementScore, c.Tenure,
			c.SupportResponseTime, c.Revenue, c.LastActivityDate); err != nil {
			rollback(tx)
			return fmt.Errorf("%w: saving customer %s: %v", ErrDataAccess, c.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing customers: %v", ErrDataAccess, err)
	}
	return nil
}

// SavePredictions upserts one row per customer id, replacing any prior
// prediction atomically.
func (s *SQLite) SavePredictions(ctx context.Context, list []*Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting prediction tx: %v", ErrDataAccess, err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertPredictionSQL)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("%w: preparing prediction upsert: %v", ErrDataAccess, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range list {
		createdAt := p.CreatedAt
		if createdAt == "" {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, p.CustomerID, p.ChurnProbability,
			p.RiskSegment, p.ModelVersion, createdAt); err != nil {
			rollback(tx)
			return fmt.Errorf("%w: saving prediction for %s: %v", ErrDataAccess, p.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing predictions: %v", ErrDataAccess, err)
	}
	return nil
}

func (s *SQLite) Predictions(ctx context.Context, limit int) ([]*Prediction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, selectPredictionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying predictions: %v", ErrDataAccess, err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

func scanPredictions(rows *sql.Rows) ([]*Prediction, error) {
	list := make([]*Prediction, 0)
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(&p.CustomerID, &p.ChurnProbability, &p.RiskSegment,
			&p.ModelVersion, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning prediction row: %v", ErrDataAccess, err)
		}
		list = append(list, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading prediction rows: %v", ErrDataAccess, err)
	}
	return list, nil
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
