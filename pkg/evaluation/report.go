// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evaluation

import (
	"time"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

// Targets are the fixed pass thresholds a validation run is judged
// against. Values are ratios in [0,1].
type Targets struct {
	CrisisRecall float64 `json:"crisis_recall"`
	CrisisPPV    float64 `json:"crisis_ppv"`
	WeightedF1   float64 `json:"weighted_f1"`
	Accuracy     float64 `json:"accuracy"`
}

// DefaultTargets are the pilot-deployment acceptance thresholds.
func DefaultTargets() Targets {
	return Targets{
		CrisisRecall: 0.80,
		CrisisPPV:    0.70,
		WeightedF1:   0.75,
		Accuracy:     0.85,
	}
}

// TargetCheck records one threshold comparison in the report.
type TargetCheck struct {
	Name   string  `json:"name"`
	Target float64 `json:"target"`
	Actual float64 `json:"actual"`
	Pass   bool    `json:"pass"`
}

// OverallMetrics is the report's summary block.
type OverallMetrics struct {
	Accuracy     float64 `json:"accuracy"`
	MacroF1      float64 `json:"macro_f1"`
	WeightedF1   float64 `json:"weighted_f1"`
	TotalSamples int     `json:"total_samples"`
}

// Report is the JSON validation document produced from an evaluated
// holdout set.
type Report struct {
	Title      string                            `json:"title"`
	Version    string                            `json:"version"`
	Date       time.Time                         `json:"date"`
	Classifier string                            `json:"classifier"`
	Overall    OverallMetrics                    `json:"overall"`
	PerClass   map[triage.RiskLabel]ClassMetrics `json:"per_class"`
	Support    map[triage.RiskLabel]int          `json:"support"`
	Confusion  ConfusionMatrix                   `json:"confusion_matrix"`
	Checks     []TargetCheck                     `json:"checks"`
	Pass       bool                              `json:"pass"`
}

// BuildReport assembles a validation report from an evaluation result
// and judges it against the targets. The report passes only if every
// check passes.
func BuildReport(agg Aggregate, targets Targets, classifier string) Report {
	crisis := agg.PerClass[triage.LabelCrisis]

	checks := []TargetCheck{
		{Name: "crisis_recall", Target: targets.CrisisRecall, Actual: crisis.Recall},
		{Name: "crisis_ppv", Target: targets.CrisisPPV, Actual: crisis.PPV},
		{Name: "weighted_f1", Target: targets.WeightedF1, Actual: agg.WeightedF1},
		{Name: "accuracy", Target: targets.Accuracy, Actual: agg.Accuracy},
	}

	pass := true
	for i := range checks {
		checks[i].Pass = checks[i].Actual >= checks[i].Target
		pass = pass && checks[i].Pass
	}

	return Report{
		Title:      "ConvoGuard Independent Validation Report",
		Version:    "1.0",
		Date:       time.Now().UTC(),
		Classifier: classifier,
		Overall: OverallMetrics{
			Accuracy:     agg.Accuracy,
			MacroF1:      agg.MacroF1,
			WeightedF1:   agg.WeightedF1,
			TotalSamples: agg.TotalSamples,
		},
		PerClass:  agg.PerClass,
		Support:   agg.Support,
		Confusion: agg.Confusion,
		Checks:    checks,
		Pass:      pass,
	}
}
