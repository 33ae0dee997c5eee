// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package evaluation turns triage predictions on labeled holdout data
// into auditable per-class and aggregate statistics.
//
// Evaluate is a pure function: a single streaming pass accumulates the
// 3x3 confusion matrix and derives every metric from it. Arbitrarily
// large holdout sets need no more than O(1) extra state. All ratios
// are returned as exact floating values; rounding and percent
// formatting belong to presentation, not to this package.
package evaluation

import (
	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

// LabeledSample is one holdout record: a message and its true label.
type LabeledSample struct {
	Text      string           `json:"text"`
	TrueLabel triage.RiskLabel `json:"label"`
}

// PredictionRecord pairs a holdout sample's true label with the
// classifier's answer for it.
type PredictionRecord struct {
	TrueLabel      triage.RiskLabel `json:"true"`
	PredictedLabel triage.RiskLabel `json:"pred"`
	Confidence     float64          `json:"confidence"`
}

// ConfusionMatrix counts (true, predicted) label pairs. All nine cells
// are always present, zero when unobserved.
type ConfusionMatrix map[triage.RiskLabel]map[triage.RiskLabel]int

// NewConfusionMatrix returns a matrix with every cell initialized.
func NewConfusionMatrix() ConfusionMatrix {
	m := make(ConfusionMatrix, len(triage.Labels))
	for _, t := range triage.Labels {
		row := make(map[triage.RiskLabel]int, len(triage.Labels))
		for _, p := range triage.Labels {
			row[p] = 0
		}
		m[t] = row
	}
	return m
}

// Total returns the number of samples counted in the matrix.
func (m ConfusionMatrix) Total() int {
	total := 0
	for _, row := range m {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// ClassMetrics is the one-vs-rest breakdown for a single label. Every
// sample contributes to exactly one of the four cells, so
// tp+fp+fn+tn equals the total sample count for every label.
type ClassMetrics struct {
	TruePositive  int     `json:"tp"`
	FalsePositive int     `json:"fp"`
	FalseNegative int     `json:"fn"`
	TrueNegative  int     `json:"tn"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1            float64 `json:"f1"`
	PPV           float64 `json:"ppv"`
	NPV           float64 `json:"npv"`
}

// Aggregate is the full result of evaluating a prediction set.
type Aggregate struct {
	Accuracy     float64                           `json:"accuracy"`
	MacroF1      float64                           `json:"macro_f1"`
	WeightedF1   float64                           `json:"weighted_f1"`
	TotalSamples int                               `json:"total_samples"`
	PerClass     map[triage.RiskLabel]ClassMetrics `json:"per_class"`
	Support      map[triage.RiskLabel]int          `json:"support"`
	Confusion    ConfusionMatrix                   `json:"confusion_matrix"`
}

// ratio divides, defining 0/0 as 0 rather than an error. Degenerate
// inputs (empty holdout, a class with no samples) yield well-defined
// zero metrics by design.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Evaluate computes the confusion matrix and all derived metrics for
// a prediction set in one pass.
//
// An empty input yields TotalSamples 0 and every ratio 0; it never
// fails. Whether zero samples is meaningful is the caller's decision.
func Evaluate(records []PredictionRecord) Aggregate {
	matrix := NewConfusionMatrix()
	for _, r := range records {
		matrix[r.TrueLabel][r.PredictedLabel]++
	}

	total := len(records)
	perClass := make(map[triage.RiskLabel]ClassMetrics, len(triage.Labels))
	support := make(map[triage.RiskLabel]int, len(triage.Labels))

	diagonal := 0
	macroSum := 0.0
	weightedSum := 0.0

	for _, label := range triage.Labels {
		tp := matrix[label][label]
		fp := 0
		for _, t := range triage.Labels {
			if t != label {
				fp += matrix[t][label]
			}
		}
		fn := 0
		for _, p := range triage.Labels {
			if p != label {
				fn += matrix[label][p]
			}
		}
		tn := total - tp - fp - fn

		precision := ratio(tp, tp+fp)
		recall := ratio(tp, tp+fn)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		cm := ClassMetrics{
			TruePositive:  tp,
			FalsePositive: fp,
			FalseNegative: fn,
			TrueNegative:  tn,
			Precision:     precision,
			Recall:        recall,
			F1:            f1,
			PPV:           precision,
			NPV:           ratio(tn, tn+fn),
		}
		perClass[label] = cm

		labelSupport := tp + fn
		support[label] = labelSupport

		diagonal += tp
		macroSum += f1
		weightedSum += f1 * float64(labelSupport)
	}

	return Aggregate{
		Accuracy:     ratio(diagonal, total),
		MacroF1:      macroSum / float64(len(triage.Labels)),
		WeightedF1:   safeDiv(weightedSum, float64(total)),
		TotalSamples: total,
		PerClass:     perClass,
		Support:      support,
		Confusion:    matrix,
	}
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
