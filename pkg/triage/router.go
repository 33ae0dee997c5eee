// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package triage

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// routerTracer traces escalation decisions.
var routerTracer = otel.Tracer("convoguard/triage/router")

// Source identifies which component produced a classification.
type Source string

const (
	// SourceRules marks results produced by the pattern engine.
	SourceRules Source = "rules"

	// SourceModel marks results produced by the ML scoring component.
	SourceModel Source = "model"
)

// Result is a complete classification answer. It is produced fresh
// per call and never mutated after return.
type Result struct {
	// Label is the assigned risk tier.
	Label RiskLabel

	// Confidence is in [0,1].
	Confidence float64

	// Source says whether rules or the model produced the answer.
	Source Source

	// NeedsEscalation is true when the local confidence is too low to
	// trust and the caller should consult a costlier external
	// classifier. Label and Confidence still hold the provisional
	// local answer.
	NeedsEscalation bool
}

// Router defaults. A high-confidence CRISIS is trusted locally even
// when the general escalation threshold would say otherwise.
const (
	DefaultEscalationThreshold           = 0.75
	DefaultHighConfidenceCrisisThreshold = 0.85
)

// ConfidenceRouter wraps a PatternClassifier with the decision of
// whether its answer can be trusted locally or must be escalated.
//
// Route never fails: it always returns a complete Result, and the
// external classifier it may point callers at is not this component's
// concern.
type ConfidenceRouter struct {
	classifier           *PatternClassifier
	escalationThreshold  float64
	highConfidenceCrisis float64
}

// RouterOption customizes a ConfidenceRouter.
type RouterOption func(*ConfidenceRouter)

// WithEscalationThreshold overrides the default escalation threshold.
func WithEscalationThreshold(t float64) RouterOption {
	return func(r *ConfidenceRouter) { r.escalationThreshold = t }
}

// WithHighConfidenceCrisisThreshold overrides the threshold above
// which a CRISIS prediction is trusted without escalation.
func WithHighConfidenceCrisisThreshold(t float64) RouterOption {
	return func(r *ConfidenceRouter) { r.highConfidenceCrisis = t }
}

// NewConfidenceRouter builds a router over the given classifier.
func NewConfidenceRouter(classifier *PatternClassifier, opts ...RouterOption) *ConfidenceRouter {
	r := &ConfidenceRouter{
		classifier:           classifier,
		escalationThreshold:  DefaultEscalationThreshold,
		highConfidenceCrisis: DefaultHighConfidenceCrisisThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies text and decides whether the answer needs
// escalation.
//
// The decision table, evaluated in order:
//  1. CRISIS at or above the high-confidence threshold is trusted.
//  2. Confidence below the escalation threshold is returned as a
//     provisional answer with NeedsEscalation set.
//  3. Everything else is trusted.
func (r *ConfidenceRouter) Route(ctx context.Context, text string) Result {
	_, span := routerTracer.Start(ctx, "router.route")
	defer span.End()

	label, confidence := r.classifier.Classify(text)

	result := Result{
		Label:      label,
		Confidence: confidence,
		Source:     SourceRules,
	}

	switch {
	case label == LabelCrisis && confidence >= r.highConfidenceCrisis:
		result.NeedsEscalation = false
	case confidence < r.escalationThreshold:
		result.NeedsEscalation = true
	default:
		result.NeedsEscalation = false
	}

	span.SetAttributes(
		attribute.String("triage.label", label.String()),
		attribute.Float64("triage.confidence", confidence),
		attribute.Bool("triage.needs_escalation", result.NeedsEscalation),
	)
	return result
}
