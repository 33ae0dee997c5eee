// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

var chainTracer = otel.Tracer("convoguard/model/chain")

// State is the lifecycle state of the fallback chain. The startup
// probe moves the chain from uninitialized to one of two terminal
// states; there is no re-probing or hot reload for the process
// lifetime.
type State int

const (
	StateUninitialized State = iota
	StateModelLoaded
	StateModelAbsent
)

// String returns the state name for logs and the health endpoint.
func (s State) String() string {
	switch s {
	case StateModelLoaded:
		return "MODEL_LOADED"
	case StateModelAbsent:
		return "MODEL_ABSENT"
	default:
		return "UNINITIALIZED"
	}
}

// RulesModelName tags responses answered by the rule engine.
const RulesModelName = "neural-rules-v1-fallback"

// Default artifact layout and inference bound.
const (
	DefaultArtifactFile  = "model.onnx"
	DefaultCompanionFile = "tokenizer_config.json"
	DefaultTimeout       = 2 * time.Second
)

// Config describes where model artifacts may live and how long a
// single inference may take.
type Config struct {
	// Candidates are artifact directories probed in order; the first
	// one containing both required files wins.
	Candidates []string

	// ArtifactFile is the model file a candidate must contain.
	// Defaults to model.onnx.
	ArtifactFile string

	// CompanionFile is the configuration file a candidate must
	// contain alongside the artifact. Defaults to
	// tokenizer_config.json.
	CompanionFile string

	// Timeout bounds each inference call. A slow or hung inference is
	// treated exactly like a failed one: the request falls back to
	// rules. Defaults to 2s.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ArtifactFile == "" {
		c.ArtifactFile = DefaultArtifactFile
	}
	if c.CompanionFile == "" {
		c.CompanionFile = DefaultCompanionFile
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Factory constructs a scoring component from a qualifying artifact
// directory. A returned error is non-fatal; the probe moves on to the
// next candidate.
type Factory func(artifactDir string) (Scorer, error)

// ProbeResult is the tagged outcome of the startup capability probe:
// either a loaded scorer and the directory it came from, or an absent
// handle with the reason.
type ProbeResult struct {
	Scorer Scorer
	Dir    string
	Reason string
}

// Loaded reports whether the probe produced a usable scorer.
func (p ProbeResult) Loaded() bool {
	return p.Scorer != nil
}

// Probe walks the candidate locations once. Missing artifacts and
// failing constructions are logged and skipped; exhausting the list
// is not an error, only a capability-level fact.
func Probe(cfg Config, factory Factory) ProbeResult {
	cfg = cfg.withDefaults()

	if factory == nil {
		return ProbeResult{Reason: "no scorer factory configured"}
	}

	for _, dir := range cfg.Candidates {
		if !hasArtifacts(dir, cfg.ArtifactFile, cfg.CompanionFile) {
			slog.Info("model artifacts not found, trying next candidate", "dir", dir)
			continue
		}
		scorer, err := factory(dir)
		if err != nil {
			slog.Warn("failed to load the model, trying next candidate", "dir", dir, "error", err)
			continue
		}
		slog.Info("model loaded", "dir", dir, "model", scorer.Name())
		return ProbeResult{Scorer: scorer, Dir: dir}
	}

	return ProbeResult{Reason: "no candidate location contains the model artifacts"}
}

func hasArtifacts(dir string, files ...string) bool {
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return false
		}
	}
	return true
}

// Outcome is what the serving layer packages into a response: the
// classification result, a per-label probability estimate, and the
// name of the component that produced it.
type Outcome struct {
	Result        triage.Result
	Probabilities Distribution
	Model         string
}

// Chain answers classification requests through the model when one is
// loaded, and through the confidence router otherwise or whenever an
// individual inference fails. Callers never observe an error.
//
// The scorer handle is written exactly once, before the serving layer
// accepts its first request, and is read-only afterwards; the hot
// path takes no lock.
type Chain struct {
	scorer  Scorer
	dir     string
	state   State
	router  *triage.ConfidenceRouter
	timeout time.Duration
}

// NewChain builds the chain from a completed startup probe.
func NewChain(probe ProbeResult, router *triage.ConfidenceRouter, cfg Config) *Chain {
	cfg = cfg.withDefaults()
	c := &Chain{
		router:  router,
		timeout: cfg.Timeout,
		state:   StateModelAbsent,
	}
	if probe.Loaded() {
		c.scorer = probe.Scorer
		c.dir = probe.Dir
		c.state = StateModelLoaded
	}
	return c
}

// State returns the terminal probe state.
func (c *Chain) State() State {
	return c.state
}

// ModelLoaded reports whether the scoring component is available, as
// exposed by the health endpoint.
func (c *Chain) ModelLoaded() bool {
	return c.state == StateModelLoaded
}

// Classify answers one request. The model path is attempted first
// when loaded; any inference error or timeout degrades that single
// request to the rule engine, tagged with the rules source. This is
// the only blocking point in the serving design and it is bounded by
// the configured timeout.
func (c *Chain) Classify(ctx context.Context, text string) Outcome {
	ctx, span := chainTracer.Start(ctx, "chain.classify")
	defer span.End()

	if c.scorer != nil {
		scoreCtx, cancel := context.WithTimeout(ctx, c.timeout)
		dist, err := c.scorer.Score(scoreCtx, text)
		cancel()

		if err == nil {
			if verr := dist.Validate(); verr != nil {
				err = verr
			}
		}
		if err == nil {
			label, confidence := dist.Best()
			span.SetAttributes(
				attribute.String("model.source", string(triage.SourceModel)),
				attribute.String("model.label", label.String()),
			)
			return Outcome{
				Result: triage.Result{
					Label:      label,
					Confidence: confidence,
					Source:     triage.SourceModel,
				},
				Probabilities: dist,
				Model:         c.scorer.Name(),
			}
		}
		slog.Warn("inference failed, falling back to rules for this request", "error", err)
		span.SetAttributes(attribute.Bool("model.fallback", true))
	}

	result := c.router.Route(ctx, text)
	span.SetAttributes(
		attribute.String("model.source", string(result.Source)),
		attribute.String("model.label", result.Label.String()),
	)
	return Outcome{
		Result:        result,
		Probabilities: HeuristicDistribution(result.Label),
		Model:         RulesModelName,
	}
}
