package model

import "sort"

// classifyThreshold converts probabilities to hard labels for the
// threshold-based metrics.
const classifyThreshold = 0.5

// FeatureWeight is one entry of the ranked importance list.
type FeatureWeight struct {
	Feature    string  `json:"feature" yaml:"feature"`
	Importance float64 `json:"importance" yaml:"importance"`
}

// Metrics summarizes one training run, evaluated on the holdout set.
type Metrics struct {
	RunID             string          `json:"run_id" yaml:"run_id"`
	TrainedAt         string          `json:"trained_at" yaml:"trained_at"`
	TrainSamples      int             `json:"train_samples" yaml:"train_samples"`
	TestSamples       int             `json:"test_samples" yaml:"test_samples"`
	Accuracy          float64         `json:"accuracy" yaml:"accuracy"`
	Precision         float64         `json:"precision" yaml:"precision"`
	Recall            float64         `json:"recall" yaml:"recall"`
	F1                float64         `json:"f1" yaml:"f1"`
	ROCAUC            float64         `json:"roc_auc" yaml:"roc_auc"`
	FeatureImportance []FeatureWeight `json:"feature_importance" yaml:"feature_importance"`
}

func evaluate(yTrue []int, probs []float64) *Metrics {
	var tp, tn, fp, fn int
	for i, y := range yTrue {
		pred := 0
		if probs[i] >= classifyThreshold {
			pred = 1
		}
		switch {
		case pred == 1 && y == 1:
			tp++
		case pred == 0 && y == 0:
			tn++
		case pred == 1 && y == 0:
			fp++
		default:
			fn++
		}
	}

	m := &Metrics{}
	total := len(yTrue)
	if total > 0 {
		m.Accuracy = float64(tp+tn) / float64(total)
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.ROCAUC = rocAUC(yTrue, probs)

	return m
}

// rocAUC computes the area under the ROC curve via the rank-sum
// (Mann-Whitney U) formulation, with tied scores sharing averaged ranks.
func rocAUC(yTrue []int, probs []float64) float64 {
	n := len(yTrue)
	pos := 0
	for _, y := range yTrue {
		pos += y
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return probs[order[i]] < probs[order[j]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[order[j]] == probs[order[i]] {
			j++
		}
		// average rank for the tie group, 1-based
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	rankSum := 0.0
	for i, y := range yTrue {
		if y == 1 {
			rankSum += ranks[i]
		}
	}

	u := rankSum - float64(pos)*float64(pos+1)/2
	return u / (float64(pos) * float64(neg))
}

func sortByImportance(ws []FeatureWeight) {
	sort.Slice(ws, func(i, j int) bool {
		return ws[i].Importance > ws[j].Importance
	})
}
