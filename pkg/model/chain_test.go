// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

// stubScorer is a controllable Scorer for chain tests.
type stubScorer struct {
	dist  Distribution
	err   error
	delay time.Duration
	name  string
}

func (s *stubScorer) Score(ctx context.Context, text string) (Distribution, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.dist, nil
}

func (s *stubScorer) Name() string {
	if s.name != "" {
		return s.name
	}
	return "stub-v1"
}

func testRouter() *triage.ConfidenceRouter {
	return triage.NewConfidenceRouter(triage.MustNewPatternClassifier(triage.ServingProfile()))
}

func writeArtifacts(t *testing.T, dir string) {
	t.Helper()
	for _, f := range []string{DefaultArtifactFile, DefaultCompanionFile} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", f, err)
		}
	}
}

func TestProbe_FirstQualifyingCandidateWins(t *testing.T) {
	empty := t.TempDir()
	first := t.TempDir()
	second := t.TempDir()
	writeArtifacts(t, first)
	writeArtifacts(t, second)

	var constructed []string
	factory := func(dir string) (Scorer, error) {
		constructed = append(constructed, dir)
		return &stubScorer{dist: HeuristicDistribution(triage.LabelSafe)}, nil
	}

	probe := Probe(Config{Candidates: []string{empty, first, second}}, factory)

	if !probe.Loaded() {
		t.Fatalf("probe did not load: %s", probe.Reason)
	}
	if probe.Dir != first {
		t.Errorf("probe dir = %s, want %s", probe.Dir, first)
	}
	if len(constructed) != 1 {
		t.Errorf("factory called %d times, want 1 (stop at first success)", len(constructed))
	}
}

func TestProbe_ConstructionErrorContinues(t *testing.T) {
	bad := t.TempDir()
	good := t.TempDir()
	writeArtifacts(t, bad)
	writeArtifacts(t, good)

	factory := func(dir string) (Scorer, error) {
		if dir == bad {
			return nil, errors.New("corrupt artifact")
		}
		return &stubScorer{}, nil
	}

	probe := Probe(Config{Candidates: []string{bad, good}}, factory)
	if !probe.Loaded() {
		t.Fatalf("probe must recover from a failing candidate: %s", probe.Reason)
	}
	if probe.Dir != good {
		t.Errorf("probe dir = %s, want %s", probe.Dir, good)
	}
}

func TestProbe_ExhaustionIsAbsentNotFatal(t *testing.T) {
	probe := Probe(Config{Candidates: []string{t.TempDir(), t.TempDir()}},
		func(string) (Scorer, error) { return &stubScorer{}, nil })

	if probe.Loaded() {
		t.Fatalf("probe loaded from directories without artifacts")
	}
	if probe.Reason == "" {
		t.Errorf("absent probe must carry a reason")
	}

	chain := NewChain(probe, testRouter(), Config{})
	if chain.State() != StateModelAbsent {
		t.Errorf("state = %s, want MODEL_ABSENT", chain.State())
	}
	if chain.ModelLoaded() {
		t.Errorf("ModelLoaded = true for an absent model")
	}
}

func TestChain_AbsentModelAlwaysUsesRules(t *testing.T) {
	chain := NewChain(ProbeResult{Reason: "no artifacts"}, testRouter(), Config{})

	outcome := chain.Classify(context.Background(), "Ich habe Suizidgedanken")

	if outcome.Result.Source != triage.SourceRules {
		t.Errorf("source = %s, want rules", outcome.Result.Source)
	}
	if outcome.Result.Label != triage.LabelCrisis {
		t.Errorf("label = %s, want CRISIS", outcome.Result.Label)
	}
	if outcome.Model != RulesModelName {
		t.Errorf("model = %s, want %s", outcome.Model, RulesModelName)
	}
	if err := outcome.Probabilities.Validate(); err != nil {
		t.Errorf("heuristic distribution invalid: %v", err)
	}
}

func TestChain_LoadedModelAnswers(t *testing.T) {
	scorer := &stubScorer{
		dist: Distribution{
			triage.LabelSafe:   0.05,
			triage.LabelRisky:  0.15,
			triage.LabelCrisis: 0.80,
		},
		name: "distilbert-onnx-v1",
	}
	chain := NewChain(ProbeResult{Scorer: scorer, Dir: "models"}, testRouter(), Config{})

	if chain.State() != StateModelLoaded {
		t.Fatalf("state = %s, want MODEL_LOADED", chain.State())
	}

	outcome := chain.Classify(context.Background(), "mir geht es nicht gut")

	if outcome.Result.Source != triage.SourceModel {
		t.Errorf("source = %s, want model", outcome.Result.Source)
	}
	if outcome.Result.Label != triage.LabelCrisis {
		t.Errorf("label = %s, want CRISIS", outcome.Result.Label)
	}
	if outcome.Result.Confidence != 0.80 {
		t.Errorf("confidence = %v, want 0.80", outcome.Result.Confidence)
	}
	if outcome.Model != "distilbert-onnx-v1" {
		t.Errorf("model = %s", outcome.Model)
	}
}

func TestChain_InferenceErrorFallsBackPerRequest(t *testing.T) {
	scorer := &stubScorer{err: errors.New("session crashed")}
	chain := NewChain(ProbeResult{Scorer: scorer, Dir: "models"}, testRouter(), Config{})

	outcome := chain.Classify(context.Background(), "Ich fühle mich hoffnungslos")

	if outcome.Result.Source != triage.SourceRules {
		t.Errorf("source = %s, want rules after inference error", outcome.Result.Source)
	}
	if outcome.Result.Label != triage.LabelRisky {
		t.Errorf("label = %s, want RISKY from the rule engine", outcome.Result.Label)
	}
	if outcome.Model != RulesModelName {
		t.Errorf("model = %s, want %s", outcome.Model, RulesModelName)
	}

	// The chain stays loaded: the failure was request-scoped.
	if !chain.ModelLoaded() {
		t.Errorf("a per-request failure must not unload the model")
	}
}

func TestChain_TimeoutTreatedAsError(t *testing.T) {
	scorer := &stubScorer{
		dist:  HeuristicDistribution(triage.LabelSafe),
		delay: 200 * time.Millisecond,
	}
	chain := NewChain(ProbeResult{Scorer: scorer, Dir: "models"}, testRouter(),
		Config{Timeout: 10 * time.Millisecond})

	start := time.Now()
	outcome := chain.Classify(context.Background(), "Ich habe Suizidgedanken")
	elapsed := time.Since(start)

	if outcome.Result.Source != triage.SourceRules {
		t.Errorf("source = %s, want rules after timeout", outcome.Result.Source)
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("classify took %v; the timeout did not bound the inference", elapsed)
	}
}

func TestChain_InvalidDistributionFallsBack(t *testing.T) {
	scorer := &stubScorer{
		dist: Distribution{triage.LabelSafe: 0.5}, // missing labels
	}
	chain := NewChain(ProbeResult{Scorer: scorer, Dir: "models"}, testRouter(), Config{})

	outcome := chain.Classify(context.Background(), "alles gut")
	if outcome.Result.Source != triage.SourceRules {
		t.Errorf("source = %s, want rules for a malformed distribution", outcome.Result.Source)
	}
}

func TestDistribution_Best(t *testing.T) {
	tests := []struct {
		name      string
		dist      Distribution
		wantLabel triage.RiskLabel
		wantP     float64
	}{
		{
			name:      "clear winner",
			dist:      Distribution{triage.LabelSafe: 0.7, triage.LabelRisky: 0.2, triage.LabelCrisis: 0.1},
			wantLabel: triage.LabelSafe,
			wantP:     0.7,
		},
		{
			name:      "tie resolves to higher severity",
			dist:      Distribution{triage.LabelSafe: 0.4, triage.LabelRisky: 0.4, triage.LabelCrisis: 0.2},
			wantLabel: triage.LabelRisky,
			wantP:     0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, p := tt.dist.Best()
			if label != tt.wantLabel || p != tt.wantP {
				t.Errorf("Best() = (%s, %v), want (%s, %v)", label, p, tt.wantLabel, tt.wantP)
			}
		})
	}
}

func TestProbe_NoFactory(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir)

	probe := Probe(Config{Candidates: []string{dir}}, nil)
	if probe.Loaded() {
		t.Fatalf("probe loaded without a factory")
	}
	if probe.Reason == "" {
		t.Errorf("absent probe must carry a reason")
	}
}
