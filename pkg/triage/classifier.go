// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package triage

import (
	"fmt"
	"math"
	"regexp"

	"golang.org/x/text/cases"
)

// fold performs Unicode case folding so matching is stable for German
// special characters (ß, umlauts) regardless of input casing. A Caser
// may be stateful and must not be shared between goroutines, so each
// call takes a fresh one.
func fold(s string) string {
	return cases.Fold().String(s)
}

// compiledTier is a PatternTier with its patterns compiled once at
// construction. Patterns are folded before compilation so they match
// the folded input.
type compiledTier struct {
	label     RiskLabel
	patterns  []*regexp.Regexp
	base      float64
	increment float64
	ceiling   float64
}

// PatternClassifier assigns a risk label and confidence to text by
// evaluating tiers in priority order. The highest-severity tier with
// at least one matching pattern decides the label unconditionally,
// regardless of how many lower-tier patterns also match.
//
// Classify is deterministic and side-effect-free; a single classifier
// may be shared by any number of concurrent callers.
type PatternClassifier struct {
	tiers          []compiledTier
	safeConfidence float64
	profileName    string
}

// NewPatternClassifier compiles a tier profile into a classifier.
func NewPatternClassifier(profile Profile) (*PatternClassifier, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	c := &PatternClassifier{
		safeConfidence: profile.SafeConfidence,
		profileName:    profile.Name,
	}
	for _, tier := range profile.Tiers {
		ct := compiledTier{
			label:     tier.Label,
			base:      tier.Base,
			increment: tier.Increment,
			ceiling:   tier.Ceiling,
		}
		for _, p := range tier.Patterns {
			re, err := regexp.Compile(fold(p))
			if err != nil {
				return nil, fmt.Errorf("tier %s pattern %q does not compile: %w", tier.Label, p, err)
			}
			ct.patterns = append(ct.patterns, re)
		}
		c.tiers = append(c.tiers, ct)
	}
	return c, nil
}

// MustNewPatternClassifier is NewPatternClassifier for the built-in
// profiles, whose patterns are known to compile.
func MustNewPatternClassifier(profile Profile) *PatternClassifier {
	c, err := NewPatternClassifier(profile)
	if err != nil {
		panic(err)
	}
	return c
}

// ProfileName returns the name of the profile the classifier was
// compiled from.
func (c *PatternClassifier) ProfileName() string {
	return c.profileName
}

// Classify returns the risk label for text and the rule engine's
// confidence in it.
//
// Confidence within a tier is min(base + matches*increment, ceiling),
// monotonically non-decreasing in the match count. Text matching no
// tier resolves to SAFE at the profile's fixed default confidence;
// this includes empty strings and strings without alphabetic content.
func (c *PatternClassifier) Classify(text string) (RiskLabel, float64) {
	folded := fold(text)

	for _, tier := range c.tiers {
		matches := 0
		for _, re := range tier.patterns {
			if re.MatchString(folded) {
				matches++
			}
		}
		if matches > 0 {
			return tier.label, tier.confidence(matches)
		}
	}
	return LabelSafe, c.safeConfidence
}

// confidence applies the tier formula for n matched patterns, n >= 1.
func (t compiledTier) confidence(n int) float64 {
	return math.Min(t.base+float64(n)*t.increment, t.ceiling)
}
