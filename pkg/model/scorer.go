// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package model manages the optional ML scoring component behind the
// triage endpoint: a startup probe over candidate artifact locations,
// a once-written handle, and a per-request fallback to the rule engine
// that guarantees classification never fails even when the model is
// absent or erroring.
package model

import (
	"context"
	"fmt"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

// Distribution is a probability distribution over the three risk
// tiers as returned by a scoring component.
type Distribution map[triage.RiskLabel]float64

// Scorer is the black-box scoring component: given text, it returns a
// probability distribution over the risk tiers. Implementations must
// honor ctx cancellation and be safe for concurrent use.
type Scorer interface {
	// Score classifies text. A non-nil error means this single
	// request failed; the caller falls back to rules and the scorer
	// stays in service.
	Score(ctx context.Context, text string) (Distribution, error)

	// Name identifies the scoring component in responses and logs,
	// e.g. "distilbert-onnx-v1".
	Name() string
}

// Validate checks that the distribution covers every label with
// probabilities in [0,1].
func (d Distribution) Validate() error {
	for _, label := range triage.Labels {
		p, ok := d[label]
		if !ok {
			return fmt.Errorf("distribution missing label %s", label)
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("probability %v for %s out of [0,1]", p, label)
		}
	}
	return nil
}

// Best returns the argmax label and its probability. Ties resolve to
// the higher-severity label; a missed crisis costs more than a false
// alarm.
func (d Distribution) Best() (triage.RiskLabel, float64) {
	best := triage.LabelSafe
	bestP := d[triage.LabelSafe]
	for _, label := range triage.Labels {
		if p := d[label]; p >= bestP {
			best = label
			bestP = p
		}
	}
	return best, bestP
}

// HeuristicDistribution is the fixed rules-mode distribution keyed by
// label, used when no model distribution is available.
func HeuristicDistribution(label triage.RiskLabel) Distribution {
	switch label {
	case triage.LabelCrisis:
		return Distribution{triage.LabelSafe: 0.10, triage.LabelRisky: 0.20, triage.LabelCrisis: 0.70}
	case triage.LabelRisky:
		return Distribution{triage.LabelSafe: 0.20, triage.LabelRisky: 0.70, triage.LabelCrisis: 0.10}
	default:
		return Distribution{triage.LabelSafe: 0.90, triage.LabelRisky: 0.05, triage.LabelCrisis: 0.05}
	}
}
