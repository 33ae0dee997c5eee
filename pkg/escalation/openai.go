// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package escalation provides the costlier external classifier the
// router defers to when local rule confidence is too low.
//
// The escalation call is best-effort: any failure leaves the
// provisional rules answer in place, so availability never depends on
// the external service.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

// ModelName tags responses answered by the escalation classifier.
const ModelName = "openai-fallback-v1"

// systemPrompt constrains the model to the triage contract. The
// response must be a bare JSON object so it parses without scraping.
const systemPrompt = `Du bist ein Klassifikator für psychische Krisenerkennung in deutschen Textnachrichten.
Ordne die Nachricht genau einer Stufe zu: SAFE, RISKY oder CRISIS.
Antworte ausschließlich mit einem JSON-Objekt der Form
{"label": "SAFE|RISKY|CRISIS", "confidence": 0.0}`

// completionAPI is the slice of the OpenAI client the classifier
// uses; tests substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier asks an OpenAI chat model for a triage decision.
type Classifier struct {
	api   completionAPI
	model string
}

// NewClassifier builds the escalation classifier from the
// environment. OPENAI_API_KEY must be set; OPENAI_MODEL defaults to
// gpt-4o-mini.
func NewClassifier() (*Classifier, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	return &Classifier{
		api:   openai.NewClient(apiKey),
		model: model,
	}, nil
}

// Name identifies the escalation classifier in responses and metrics.
func (c *Classifier) Name() string {
	return ModelName
}

// newClassifierWithAPI is the test seam.
func newClassifierWithAPI(api completionAPI, model string) *Classifier {
	return &Classifier{api: api, model: model}
}

// verdict is the JSON shape the model is instructed to return.
type verdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify asks the external model for a label. The returned result
// carries the model source; it never sets NeedsEscalation since this
// already is the escalation target.
func (c *Classifier) Classify(ctx context.Context, text string) (triage.Result, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return triage.Result{}, fmt.Errorf("escalation call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return triage.Result{}, fmt.Errorf("escalation returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	// Some models wrap JSON in a code fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return triage.Result{}, fmt.Errorf("escalation returned unparseable verdict %q: %w", content, err)
	}
	label, err := triage.ParseLabel(v.Label)
	if err != nil {
		return triage.Result{}, fmt.Errorf("escalation verdict: %w", err)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return triage.Result{}, fmt.Errorf("escalation confidence %v out of [0,1]", v.Confidence)
	}

	return triage.Result{
		Label:      label,
		Confidence: v.Confidence,
		Source:     triage.SourceModel,
	}, nil
}
