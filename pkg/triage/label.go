// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package triage classifies free-form German text messages into risk
// tiers using deterministic keyword-pattern matching.
//
// The package has two layers: PatternClassifier, a pure function from
// text to (label, confidence) over immutable tier configuration, and
// ConfidenceRouter, which wraps the classifier with an escalation
// decision for predictions the local rules cannot be trusted with.
//
// # Thread Safety
//
// All types in this package are immutable after construction and safe
// for unsynchronized concurrent use.
package triage

import "fmt"

// RiskLabel is the triage outcome for a message.
//
// Labels are totally ordered by severity: SAFE < RISKY < CRISIS.
type RiskLabel int

const (
	// LabelSafe means no risk evidence was found. SAFE is the absence
	// of evidence, not a concluded absence of risk.
	LabelSafe RiskLabel = iota

	// LabelRisky means the message shows warning signs (hopelessness,
	// despair) that warrant attention but no acute crisis markers.
	LabelRisky

	// LabelCrisis means the message contains acute self-harm or
	// suicide markers and must be surfaced immediately.
	LabelCrisis
)

// labelNames maps RiskLabel values to their wire representation.
var labelNames = map[RiskLabel]string{
	LabelSafe:   "SAFE",
	LabelRisky:  "RISKY",
	LabelCrisis: "CRISIS",
}

// Labels lists all risk labels in severity order. The slice is shared;
// callers must not mutate it.
var Labels = []RiskLabel{LabelSafe, LabelRisky, LabelCrisis}

// String returns the canonical wire name (SAFE, RISKY, CRISIS).
func (l RiskLabel) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("RiskLabel(%d)", int(l))
}

// IsValid reports whether the label is one of the defined constants.
func (l RiskLabel) IsValid() bool {
	_, ok := labelNames[l]
	return ok
}

// ParseLabel converts a wire name back to a RiskLabel.
func ParseLabel(name string) (RiskLabel, error) {
	for label, n := range labelNames {
		if n == name {
			return label, nil
		}
	}
	return LabelSafe, fmt.Errorf("unknown risk label %q", name)
}

// MarshalText implements encoding.TextMarshaler so labels serialize as
// their wire names in JSON and YAML documents.
func (l RiskLabel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid risk label %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *RiskLabel) UnmarshalText(text []byte) error {
	label, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = label
	return nil
}
