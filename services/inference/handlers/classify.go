// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers of the inference
// service. A well-formed request never receives an error response:
// every failure inside the classification path degrades to the rule
// engine's answer.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/model"
	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/datatypes"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/observability"
)

// Escalator is the optional external classifier consulted when the
// local verdict is below the escalation threshold. A nil Escalator
// disables escalation; the provisional rules answer is served as-is.
type Escalator interface {
	Classify(ctx context.Context, text string) (triage.Result, error)
	Name() string
}

// Classify handles POST /v1/classify for one message.
func Classify(chain *model.Chain, escalator Escalator, metrics *observability.InferenceMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ClassifyRequest
		if err := c.BindJSON(&req); err != nil {
			metrics.RecordRequest(observability.EndpointClassify, false)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body: text is required"})
			return
		}

		resp := classifyOne(c.Request.Context(), chain, escalator, metrics, *req.Text)

		metrics.RecordRequest(observability.EndpointClassify, true)
		metrics.RecordDuration(observability.EndpointClassify, resp.LatencyMs/1000.0)
		c.JSON(http.StatusOK, resp)
	}
}

// ClassifyBatch handles POST /v1/classify/batch. The response is a
// bare array with one entry per input, in input order; an empty batch
// yields an empty array. Oversized batches are rejected whole;
// silently truncating could drop a crisis message.
func ClassifyBatch(chain *model.Chain, escalator Escalator, metrics *observability.InferenceMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.BatchClassifyRequest
		if err := c.BindJSON(&req); err != nil {
			metrics.RecordRequest(observability.EndpointClassifyBatch, false)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			metrics.RecordRequest(observability.EndpointClassifyBatch, false)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		start := time.Now()
		metrics.RecordBatchSize(len(req.Texts))

		results := make([]datatypes.ClassifyResponse, len(req.Texts))
		for i, text := range req.Texts {
			results[i] = classifyOne(c.Request.Context(), chain, escalator, metrics, text)
		}

		metrics.RecordRequest(observability.EndpointClassifyBatch, true)
		metrics.RecordDuration(observability.EndpointClassifyBatch, time.Since(start).Seconds())
		c.JSON(http.StatusOK, results)
	}
}

// classifyOne runs the fallback chain and, when the verdict asks for
// it, the escalation classifier. Escalation is best-effort: on any
// error the provisional local answer stands.
func classifyOne(ctx context.Context, chain *model.Chain, escalator Escalator,
	metrics *observability.InferenceMetrics, text string) datatypes.ClassifyResponse {

	start := time.Now()
	outcome := chain.Classify(ctx, text)

	result := outcome.Result
	probabilities := outcome.Probabilities
	modelName := outcome.Model

	if result.NeedsEscalation && escalator != nil {
		escalated, err := escalator.Classify(ctx, text)
		if err != nil {
			slog.Warn("escalation failed, keeping the local verdict",
				"error", err, "label", result.Label.String())
			metrics.RecordEscalation(false)
		} else {
			result = escalated
			probabilities = model.HeuristicDistribution(escalated.Label)
			modelName = escalator.Name()
			metrics.RecordEscalation(true)
		}
	}

	metrics.RecordClassification(result.Label.String(), string(result.Source))

	return datatypes.ClassifyResponse{
		Label:         result.Label.String(),
		Confidence:    result.Confidence,
		Probabilities: probabilityMap(probabilities),
		LatencyMs:     float64(time.Since(start).Microseconds()) / 1000.0,
		Source:        modelName,
	}
}

func probabilityMap(dist model.Distribution) map[string]float64 {
	out := make(map[string]float64, len(triage.Labels))
	for _, label := range triage.Labels {
		out[label.String()] = dist[label]
	}
	return out
}
