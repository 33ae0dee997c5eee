// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package triage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PatternTier is one priority level of the rule engine: a set of
// case-insensitive patterns bound to a risk label plus the parameters
// of its confidence formula.
//
// Tiers are configuration data, not code. A tier never consults
// another tier's state; priority between tiers is decided by their
// order in the profile, highest severity first.
type PatternTier struct {
	// Label is the risk label this tier assigns on a match.
	Label RiskLabel `yaml:"label"`

	// Patterns are matched case-insensitively anywhere in the text.
	// Entries may be plain substrings or simple regular expressions
	// (e.g. `tabletten.*beenden`).
	Patterns []string `yaml:"patterns"`

	// Base is the confidence assigned for the first matching pattern.
	Base float64 `yaml:"base"`

	// Increment is added per additional matching pattern.
	Increment float64 `yaml:"increment"`

	// Ceiling caps the confidence regardless of match count.
	Ceiling float64 `yaml:"ceiling"`
}

// Profile bundles the ordered tiers and the default confidence used
// when no tier matches. Two constant sets exist in production use;
// both are expressed as profiles so deployments pick one without code
// changes.
type Profile struct {
	// Name identifies the profile in config files and logs.
	Name string `yaml:"name"`

	// Tiers are evaluated in order; the first tier with at least one
	// match decides the label. Must be ordered by descending severity.
	Tiers []PatternTier `yaml:"tiers"`

	// SafeConfidence is the fixed confidence returned when no tier
	// matches. It is a configuration constant, not derived from a
	// match count.
	SafeConfidence float64 `yaml:"safe_confidence"`
}

// crisisPatterns are the German acute-risk markers. Kept deliberately
// broad: a stem like "verletz" covers "selbst verletzt" and
// "Selbstverletzung".
var crisisPatterns = []string{
	`suizid`,
	`selbstmord`,
	`umbringen`,
	`sterben`,
	`wehtun`,
	`verletz`,
	`schneid`,
	`ritzen`,
	`schaden`,
	`tabletten.*beenden`,
	`leben.*beenden`,
	`nicht mehr leben`,
}

// riskyPatterns are the German warning-sign markers.
var riskyPatterns = []string{
	`hoffnungslos`,
	`sinnlos`,
	`verzweifelt`,
	`dunkel.*gedanken`,
	`last.*für`,
	`aufgegeben`,
	`keine energie`,
	`leer`,
	`schwarz`,
}

// ServingProfile returns the constant set used by the serving path.
//
// The low SAFE confidence (0.60) is deliberate: combined with the
// router's default escalation threshold it escalates every
// pattern-free message, because cheap rules can flag risk but cannot
// prove safety.
func ServingProfile() Profile {
	return Profile{
		Name: "serving",
		Tiers: []PatternTier{
			{Label: LabelCrisis, Patterns: crisisPatterns, Base: 0.90, Increment: 0.05, Ceiling: 1.0},
			{Label: LabelRisky, Patterns: riskyPatterns, Base: 0.70, Increment: 0.10, Ceiling: 0.90},
		},
		SafeConfidence: 0.60,
	}
}

// CalibratedProfile returns the constant set used by holdout
// validation, where SAFE predictions count as confident answers.
func CalibratedProfile() Profile {
	return Profile{
		Name: "calibrated",
		Tiers: []PatternTier{
			{Label: LabelCrisis, Patterns: crisisPatterns, Base: 0.90, Increment: 0.02, Ceiling: 1.0},
			{Label: LabelRisky, Patterns: riskyPatterns, Base: 0.75, Increment: 0.05, Ceiling: 0.90},
		},
		SafeConfidence: 0.85,
	}
}

// ProfileByName resolves the built-in profiles.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "", "serving":
		return ServingProfile(), nil
	case "calibrated":
		return CalibratedProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown tier profile %q", name)
	}
}

// LoadProfile reads a tier profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read the tier profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse the tier profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid tier profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks that the profile is self-consistent.
func (p Profile) Validate() error {
	if len(p.Tiers) == 0 {
		return fmt.Errorf("profile %q has no tiers", p.Name)
	}
	if p.SafeConfidence < 0 || p.SafeConfidence > 1 {
		return fmt.Errorf("safe_confidence %v out of [0,1]", p.SafeConfidence)
	}
	prev := LabelCrisis + 1
	for _, tier := range p.Tiers {
		if !tier.Label.IsValid() {
			return fmt.Errorf("tier has invalid label %d", int(tier.Label))
		}
		if tier.Label >= prev {
			return fmt.Errorf("tiers must be ordered by descending severity")
		}
		prev = tier.Label
		if len(tier.Patterns) == 0 {
			return fmt.Errorf("tier %s has no patterns", tier.Label)
		}
		if tier.Base < 0 || tier.Base > 1 || tier.Ceiling < tier.Base || tier.Ceiling > 1 {
			return fmt.Errorf("tier %s confidence parameters out of range", tier.Label)
		}
		if tier.Increment < 0 {
			return fmt.Errorf("tier %s has negative increment", tier.Label)
		}
	}
	return nil
}
