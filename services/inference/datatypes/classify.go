// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides the wire types of the inference service.
package datatypes

import "fmt"

// MaxBatchSize caps a single batch call. Batches beyond the cap are
// rejected explicitly rather than silently truncated: in this domain
// a dropped item is a potentially missed crisis.
const MaxBatchSize = 50

// Version is reported by the health endpoint.
const Version = "1.0.0"

// ClassifyRequest is a single-message classification request. The
// text field must be present, but an empty message is well formed:
// with no risk evidence to find it resolves to SAFE. A pointer keeps
// the two cases apart, since binding "required" on a plain string
// would also refuse "".
type ClassifyRequest struct {
	Text *string `json:"text" binding:"required"`
}

// ClassifyResponse is the answer for one message. The endpoint never
// fails a well-formed request: when the model is absent or erroring,
// Source degrades to the rules engine's name but the shape stays the
// same.
type ClassifyResponse struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	LatencyMs     float64            `json:"latency_ms"`
	Source        string             `json:"source"`
}

// BatchClassifyRequest classifies up to MaxBatchSize messages in one
// call. Responses come back one per input, in input order. An empty
// texts array is well formed and yields an empty result list; only a
// missing field is refused. No binding tag: the validator's
// "required" cannot tell an empty array from an absent one, so
// Validate checks presence through the nil slice instead.
type BatchClassifyRequest struct {
	Texts []string `json:"texts"`
}

// Validate enforces field presence and the batch cap.
func (r BatchClassifyRequest) Validate() error {
	if r.Texts == nil {
		return fmt.Errorf("texts is required")
	}
	if len(r.Texts) > MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds the maximum of %d", len(r.Texts), MaxBatchSize)
	}
	return nil
}

// HealthResponse reports serving capability. ModelLoaded false means
// degraded mode (rules only), not unavailability.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version"`
}

// ErrorResponse is the body of the only user-visible failure: a
// malformed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
