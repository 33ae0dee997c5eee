// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package triage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProfileByName(t *testing.T) {
	tests := []struct {
		name        string
		wantProfile string
		wantErr     bool
	}{
		{"serving", "serving", false},
		{"calibrated", "calibrated", false},
		{"", "serving", false}, // empty selects the default
		{"nope", "", true},
	}

	for _, tt := range tests {
		profile, err := ProfileByName(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ProfileByName(%q) expected an error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("ProfileByName(%q) unexpected error: %v", tt.name, err)
			continue
		}
		if profile.Name != tt.wantProfile {
			t.Errorf("ProfileByName(%q) = %s, want %s", tt.name, profile.Name, tt.wantProfile)
		}
	}
}

func TestBuiltinProfilesValidate(t *testing.T) {
	for _, profile := range []Profile{ServingProfile(), CalibratedProfile()} {
		if err := profile.Validate(); err != nil {
			t.Errorf("built-in profile %s does not validate: %v", profile.Name, err)
		}
	}
}

func TestLoadProfile_RoundTrip(t *testing.T) {
	yamlDoc := `name: pilot
tiers:
  - label: CRISIS
    patterns: ["suizid", "selbstmord"]
    base: 0.9
    increment: 0.02
    ceiling: 1.0
  - label: RISKY
    patterns: ["hoffnungslos"]
    base: 0.75
    increment: 0.05
    ceiling: 0.9
safe_confidence: 0.85
`
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0644); err != nil {
		t.Fatalf("failed to write the fixture: %v", err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if profile.Name != "pilot" {
		t.Errorf("name = %s, want pilot", profile.Name)
	}
	if len(profile.Tiers) != 2 {
		t.Fatalf("tiers = %d, want 2", len(profile.Tiers))
	}
	if profile.Tiers[0].Label != LabelCrisis || profile.Tiers[1].Label != LabelRisky {
		t.Errorf("tier labels not in severity order: %v, %v", profile.Tiers[0].Label, profile.Tiers[1].Label)
	}
	if profile.SafeConfidence != 0.85 {
		t.Errorf("safe_confidence = %v, want 0.85", profile.SafeConfidence)
	}

	classifier, err := NewPatternClassifier(profile)
	if err != nil {
		t.Fatalf("profile from YAML does not compile: %v", err)
	}
	if label, _ := classifier.Classify("Suizidgedanken"); label != LabelCrisis {
		t.Errorf("loaded profile misclassifies a crisis marker: %s", label)
	}
}

func TestLoadProfile_MissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("LoadProfile must fail for a missing file")
	}
}

func TestRiskLabel_TextMarshalling(t *testing.T) {
	for _, label := range Labels {
		data, err := label.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%s): %v", label, err)
		}
		var back RiskLabel
		if err := back.UnmarshalText(data); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", data, err)
		}
		if back != label {
			t.Errorf("round trip %s -> %s", label, back)
		}
	}

	var bad RiskLabel
	if err := bad.UnmarshalText([]byte("PANIC")); err == nil {
		t.Errorf("UnmarshalText accepted an unknown label")
	}
}
