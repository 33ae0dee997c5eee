// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

type fakeAPI struct {
	content string
	err     error
}

func (f *fakeAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestClassifier_ParsesVerdict(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantLabel triage.RiskLabel
		wantConf  float64
	}{
		{
			name:      "bare json",
			content:   `{"label": "CRISIS", "confidence": 0.97}`,
			wantLabel: triage.LabelCrisis,
			wantConf:  0.97,
		},
		{
			name:      "code fenced json",
			content:   "```json\n{\"label\": \"RISKY\", \"confidence\": 0.8}\n```",
			wantLabel: triage.LabelRisky,
			wantConf:  0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClassifierWithAPI(&fakeAPI{content: tt.content}, "gpt-4o-mini")
			result, err := c.Classify(context.Background(), "Testnachricht")
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if result.Label != tt.wantLabel {
				t.Errorf("label = %s, want %s", result.Label, tt.wantLabel)
			}
			if result.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", result.Confidence, tt.wantConf)
			}
			if result.Source != triage.SourceModel {
				t.Errorf("source = %s, want model", result.Source)
			}
			if result.NeedsEscalation {
				t.Errorf("the escalation target must not request further escalation")
			}
		})
	}
}

func TestClassifier_Failures(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{"transport error", &fakeAPI{err: errors.New("rate limited")}},
		{"unparseable verdict", &fakeAPI{content: "Ich kann das nicht beurteilen."}},
		{"unknown label", &fakeAPI{content: `{"label": "MAYBE", "confidence": 0.5}`}},
		{"confidence out of range", &fakeAPI{content: `{"label": "SAFE", "confidence": 1.5}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClassifierWithAPI(tt.api, "gpt-4o-mini")
			if _, err := c.Classify(context.Background(), "Testnachricht"); err == nil {
				t.Errorf("Classify must fail so the caller keeps the provisional rules answer")
			}
		})
	}
}

func TestNewClassifier_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClassifier(); err == nil {
		t.Errorf("NewClassifier must fail without OPENAI_API_KEY")
	}
}
