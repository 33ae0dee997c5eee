// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

// SidecarScorer scores text through an HTTP inference sidecar that
// serves the ONNX artifact discovered by the startup probe. No Go
// ONNX runtime is linked into this process; the sidecar owns
// tokenization and the model session.
type SidecarScorer struct {
	httpClient  *http.Client
	baseURL     string
	artifactDir string
	model       string
}

type sidecarClassifyRequest struct {
	Text string `json:"text"`
}

type sidecarClassifyResponse struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Model         string             `json:"model"`
}

type sidecarHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewSidecarScorer builds a scorer for the sidecar at baseURL serving
// the artifacts in artifactDir. Construction fails when the sidecar
// is unreachable or reports its model unloaded, which sends the
// startup probe on to the next candidate.
func NewSidecarScorer(baseURL, artifactDir string) (*SidecarScorer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("inference sidecar URL not set")
	}
	s := &SidecarScorer{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		artifactDir: artifactDir,
		model:       "distilbert-onnx-v1",
	}
	if err := s.ping(); err != nil {
		return nil, fmt.Errorf("inference sidecar not ready: %w", err)
	}
	return s, nil
}

func (s *SidecarScorer) ping() error {
	resp, err := s.httpClient.Get(s.baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar health returned status %d", resp.StatusCode)
	}
	var health sidecarHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode the sidecar health response: %w", err)
	}
	if !health.ModelLoaded {
		return fmt.Errorf("sidecar is up but has no model loaded")
	}
	return nil
}

// Name implements Scorer.
func (s *SidecarScorer) Name() string {
	return s.model
}

// Score implements Scorer via POST /classify on the sidecar.
func (s *SidecarScorer) Score(ctx context.Context, text string) (Distribution, error) {
	payload, err := json.Marshal(sidecarClassifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the classify payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/classify", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build the classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded sidecarClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode the classify response: %w", err)
	}
	dist := make(Distribution, len(triage.Labels))
	for name, p := range decoded.Probabilities {
		label, err := triage.ParseLabel(name)
		if err != nil {
			return nil, fmt.Errorf("sidecar response: %w", err)
		}
		dist[label] = p
	}
	if err := dist.Validate(); err != nil {
		return nil, fmt.Errorf("sidecar response: %w", err)
	}
	return dist, nil
}

// SidecarFactory returns a Factory that binds qualifying artifact
// directories to the sidecar at baseURL.
func SidecarFactory(baseURL string) Factory {
	return func(artifactDir string) (Scorer, error) {
		return NewSidecarScorer(baseURL, artifactDir)
	}
}
