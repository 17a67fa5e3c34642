// Package scoring orchestrates single and batch churn prediction:
// prepare features, classify, and (single path only) explain.
package scoring

import (
	"errors"
	"fmt"

	"github.com/churnscope/churnctl/pkg/explain"
	"github.com/churnscope/churnctl/pkg/features"
)

// CustomerIDField is the optional raw-record key carrying the caller's
// customer identifier.
const CustomerIDField = "customer_id"

// BatchResult is one row of a batch scoring run. Batch mode deliberately
// omits the per-feature explanation; it is too verbose for bulk output.
type BatchResult struct {
	CustomerID       string  `json:"customer_id" yaml:"customer_id"`
	ChurnProbability float64 `json:"churn_probability" yaml:"churn_probability"`
	RiskSegment      string  `json:"risk_segment" yaml:"risk_segment"`
}

// Service scores raw customer records against a trained classifier.
// The classifier is never mutated; a Service is safe for concurrent use
// if the classifier is safe for concurrent inference.
type Service struct {
	prep *features.Preparer
	clf  explain.Classifier
}

func New(clf explain.Classifier) *Service {
	return &Service{
		prep: features.NewPreparer(),
		clf:  clf,
	}
}

// ScoreOne prepares, classifies, and explains a single record.
func (s *Service) ScoreOne(rec map[string]any) (*explain.Result, error) {
	if rec == nil {
		return nil, errors.New("record required")
	}

	vs := s.prep.Prepare([]map[string]any{rec})
	return explain.Explain(vs[0], s.clf)
}

// ScoreBatch classifies records in bulk, preserving input order and
// count. Records without a customer_id get a 0-based placeholder.
func (s *Service) ScoreBatch(recs []map[string]any) ([]BatchResult, error) {
	if len(recs) == 0 {
		return []BatchResult{}, nil
	}

	vs := s.prep.Prepare(recs)
	probs, err := s.clf.PredictProba(features.Matrix(vs))
	if err != nil {
		return nil, err
	}

	out := make([]BatchResult, len(recs))
	for i, rec := range recs {
		out[i] = BatchResult{
			CustomerID:       customerID(rec, i),
			ChurnProbability: probs[i],
			RiskSegment:      explain.Segment(probs[i]),
		}
	}
	return out, nil
}

// customerID returns the record's id, stringifying non-string values
// (JSON numbers decode as float64). The placeholder is only used when
// the key is absent, nil, or empty.
func customerID(rec map[string]any, idx int) string {
	if v, ok := rec[CustomerIDField]; ok && v != nil {
		if s, ok := v.(string); ok {
			if s != "" {
				return s
			}
		} else {
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprintf("customer_%d", idx)
}
