package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	pgSelectCustomersSQL = `SELECT
			customer_id, engagement_score, tenure, support_response_time,
			revenue, to_char(last_activity_date, 'YYYY-MM-DD')
		FROM customers
		ORDER BY customer_id
	`

	pgUpsertCustomerSQL = `INSERT INTO customers (
			customer_id, engagement_score, tenure, support_response_time,
			revenue, last_activity_date
		) VALUES ($1, $2, $3, $4, $5, to_date($6, 'YYYY-MM-DD'))
		ON CONFLICT (customer_id) DO UPDATE SET
			engagement_score = EXCLUDED.engagement_score,
			tenure = EXCLUDED.tenure,
			support_response_time = EXCLUDED.support_response_time,
			revenue = EXCLUDED.revenue,
			last_activity_date = EXCLUDED.last_activity_date
	`

	pgUpsertPredictionSQL = `INSERT INTO churn_predictions (
			customer_id, churn_probability, risk_segment, model_version, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (customer_id) DO UPDATE SET
			churn_probability = EXCLUDED.churn_probability,
			risk_segment = EXCLUDED.risk_segment,
			model_version = EXCLUDED.model_version,
			created_at = EXCLUDED.created_at
	`

	pgSelectPredictionsSQL = `SELECT
			customer_id, churn_probability, risk_segment,
			COALESCE(model_version, ''), created_at
		FROM churn_predictions
		ORDER BY churn_probability DESC
		LIMIT $1
	`

	pgDDL = `CREATE TABLE IF NOT EXISTS customers (
			customer_id           TEXT PRIMARY KEY,
			engagement_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
			tenure                DOUBLE PRECISION NOT NULL DEFAULT 0,
			support_response_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			revenue               NUMERIC(14,2) NOT NULL DEFAULT 0,
			last_activity_date    DATE
		);
		CREATE TABLE IF NOT EXISTS churn_predictions (
			customer_id       TEXT PRIMARY KEY,
			churn_probability DOUBLE PRECISION NOT NULL,
			risk_segment      TEXT NOT NULL,
			model_version     TEXT,
			created_at        TEXT NOT NULL
		);
	`
)

// PostgresConn holds connection settings for the shared database.
type PostgresConn struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"-" json:"-"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`
}

func (c PostgresConn) dsn() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, ssl)
}

// Postgres is the shared-database Store.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects and ensures the schema exists.
func OpenPostgres(ctx context.Context, conn PostgresConn) (*Postgres, error) {
	db, err := sql.Open("postgres", conn.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: opening postgres connection: %v", ErrDataAccess, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging postgres %s:%d: %v", ErrDataAccess, conn.Host, conn.Port, err)
	}
	if _, err := db.ExecContext(ctx, pgDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ensuring postgres schema: %v", ErrDataAccess, err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Postgres) Customers(ctx context.Context) ([]*Customer, error) {
	rows, err := s.db.QueryContext(ctx, pgSelectCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: querying customers: %v", ErrDataAccess, err)
	}
	defer rows.Close()

	list := make([]*Customer, 0)
	for rows.Next() {
		var c Customer
		var revenue decimal.NullDecimal
		var date sql.NullString
		if err := rows.Scan(&c.CustomerID, &c.EngagementScore, &c.Tenure,
			&c.SupportResponseTime, &revenue, &date); err != nil {
			return nil, fmt.Errorf("%w: scanning customer row: %v", ErrDataAccess, err)
		}
		if revenue.Valid {
			c.Revenue = revenue.Decimal.InexactFloat64()
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

func (s *Postgres) SaveCustomers(ctx context.Context, list []*Customer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting customer tx: %v", ErrDataAccess, err)
	}

	stmt, err := tx.PrepareContext(ctx, pgUpsertCustomerSQL)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("%w: preparing customer upsert: %v", ErrDataAccess, err)
	}

	for _, c := range list {
		rev := decimal.NewFromFloat(c.Revenue)
		if _, err := stmt.ExecContext(ctx, c.CustomerID, c.EngagementScore, c.Tenure,
			c.SupportResponseTime, rev, c.LastActivityDate); err != nil {
			rollback(tx)
			return fmt.Errorf("%w: saving customer %s: %v", ErrDataAccess, c.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing customers: %v", ErrDataAccess, err)
	}
	return nil
}

func (s *Postgres) SavePredictions(ctx context.Context, list []*Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting prediction tx: %v", ErrDataAccess, err)
	}

	stmt, err := tx.PrepareContext(ctx, pgUpsertPredictionSQL)
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

func (s *Postgres) Predictions(ctx context.Context, limit int) ([]*Prediction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, pgSelectPredictionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying predictions: %v", ErrDataAccess, err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}
