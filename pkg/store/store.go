// Package store persists customers and churn predictions. Two
// implementations share one contract: an embedded SQLite file for local
// use and Postgres for a shared database.
package store

import (
	"context"
	"errors"
)

// ErrDataAccess marks storage failures the training orchestration
// treats as recoverable (degrade to synthetic data, keep going).
var ErrDataAccess = errors.New("data access error")

// Customer is one raw customer row. LastActivityDate is nil when the
// column is NULL; feature preparation then applies its inactive default.
type Customer struct {
	CustomerID          string  `json:"customer_id" yaml:"customer_id"`
	EngagementScore     float64 `json:"engagement_score" yaml:"engagement_score"`
	Tenure              float64 `json:"tenure" yaml:"tenure"`
	SupportResponseTime float64 `json:"support_response_time" yaml:"support_response_time"`
	Revenue             float64 `json:"revenue" yaml:"revenue"`
	LastActivityDate    *string `json:"last_activity_date,omitempty" yaml:"last_activity_date,omitempty"`
}

// Record converts the row into the raw-record form the feature preparer
// consumes. The activity-date key is always present (the column exists),
// carrying nil for NULL values.
func (c *Customer) Record() map[string]any {
	rec := map[string]any{
		"customer_id":           c.CustomerID,
		"engagement_score":      c.EngagementScore,
		"tenure":                c.Tenure,
		"support_response_time": c.SupportResponseTime,
		"revenue":               c.Revenue,
	}
	if c.LastActivityDate != nil {
		rec["last_activity_date"] = *c.LastActivityDate
	} else {
		rec["last_activity_date"] = nil
	}
	return rec
}

// Prediction is one scored customer, keyed by customer id. Writes
// replace any prior row for the same id.
type Prediction struct {
	CustomerID       string  `json:"customer_id" yaml:"customer_id"`
	ChurnProbability float64 `json:"churn_probability" yaml:"churn_probability"`
	RiskSegment      string  `json:"risk_segment" yaml:"risk_segment"`
	ModelVersion     string  `json:"model_version,omitempty" yaml:"model_version,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Store is the persistence contract the scoring and training paths
// consume.
type Store interface {
	Customers(ctx context.Context) ([]*Customer, error)
	SaveCustomers(ctx context.Context, list []*Customer) error
	SavePredictions(ctx context.Context, list []*Prediction) error
	Predictions(ctx context.Context, limit int) ([]*Prediction, error)
	Close() error
}
