package features

import (
	"strconv"
	"time"
)

const (
	EngagementScore       = "engagement_score"
	Tenure                = "tenure"
	SupportResponseTime   = "support_response_time"
	Revenue               = "revenue"
	DaysSinceLastActivity = "days_since_last_activity"

	// LastActivityDate is the raw-record column from which
	// DaysSinceLastActivity is derived when present.
	LastActivityDate = "last_activity_date"

	NumFeatures = 5

	dateLayout = "2006-01-02"

	// Default applied to days_since_last_activity when the record carries
	// an activity-date field whose value is missing or unparseable.
	inactiveDaysDefault = 30
)

// Names is the fixed feature order. Every vector produced by Prepare
// and every importance slice returned by a classifier aligns to it.
var Names = []string{
	EngagementScore,
	Tenure,
	SupportResponseTime,
	Revenue,
	DaysSinceLastActivity,
}

// Vector is the fixed 5-dimensional numeric representation of a customer.
type Vector struct {
	EngagementScore       float64 `json:"engagement_score" yaml:"engagement_score"`
	Tenure                float64 `json:"tenure" yaml:"tenure"`
	SupportResponseTime   float64 `json:"support_response_time" yaml:"support_response_time"`
	Revenue               float64 `json:"revenue" yaml:"revenue"`
	DaysSinceLastActivity float64 `json:"days_since_last_activity" yaml:"days_since_last_activity"`
}

// Values returns the vector in the fixed feature order.
func (v Vector) Values() []float64 {
	return []float64{
		v.EngagementScore,
		v.Tenure,
		v.SupportResponseTime,
		v.Revenue,
		v.DaysSinceLastActivity,
	}
}

// Matrix flattens vectors into the row-major form classifiers consume.
func Matrix(vs []Vector) [][]float64 {
	m := make([][]float64, len(vs))
	for i, v := range vs {
		m[i] = v.Values()
	}
	return m
}

// Prepared pairs a vector with per-field provenance so callers can
// distinguish a defaulted field from one provided as zero.
type Prepared struct {
	Vector   Vector
	Provided map[string]bool
}

// Preparer turns raw customer records into fixed-order feature vectors.
// Missing fields are defaulted, never rejected.
type Preparer struct {
	now func() time.Time
}

func NewPreparer() *Preparer {
	return &Preparer{now: time.Now}
}

// Prepare converts raw records to feature vectors, preserving input
// order and count.
func (p *Preparer) Prepare(records []map[string]any) []Vector {
	out := make([]Vector, len(records))
	for i, rec := range records {
		out[i] = p.prepareOne(rec).Vector
	}
	return out
}

// PrepareWithProvenance is Prepare with per-field source flags.
func (p *Preparer) PrepareWithProvenance(records []map[string]any) []Prepared {
	out := make([]Prepared, len(records))
	for i, rec := range records {
		out[i] = p.prepareOne(rec)
	}
	return out
}

func (p *Preparer) prepareOne(rec map[string]any) Prepared {
	provided := make(map[string]bool, NumFeatures)

	var v Vector
	v.EngagementScore, provided[EngagementScore] = numericField(rec, EngagementScore)
	v.Tenure, provided[Tenure] = numericField(rec, Tenure)
	v.SupportResponseTime, provided[SupportResponseTime] = numericField(rec, SupportResponseTime)
	v.Revenue, provided[Revenue] = numericField(rec, Revenue)
	v.DaysSinceLastActivity, provided[DaysSinceLastActivity] = p.activityDays(rec)

	return Prepared{Vector: v, Provided: provided}
}

// activityDays derives days_since_last_activity. When the record carries
// last_activity_date, the derived value wins: a parseable date yields the
// day distance from now, anything else yields the inactive default. When
// no date field is present the numeric field is used as-is, defaulting
// to 0 like the other features.
func (p *Preparer) activityDays(rec map[string]any) (float64, bool) {
	raw, hasDate := rec[LastActivityDate]
	if !hasDate {
		return numericField(rec, DaysSinceLastActivity)
	}

	s, ok := raw.(string)
	if !ok {
		return inactiveDaysDefault, false
	}

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return inactiveDaysDefault, false
	}

	days := p.now().Sub(t).Hours() / 24
	return float64(int(days)), true
}

func numericField(rec map[string]any, name string) (float64, bool) {
	raw, ok := rec[name]
	if !ok {
		return 0, false
	}
	f, ok := asFloat(raw)
	if !ok {
		return 0, false
	}
	return f, true
}

// asFloat coerces the value types JSON decoding and SQL scanning
// produce. Anything else silently defaults.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
