// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/triage"
)

// Emotional states a synthetic therapy conversation moves through.
const (
	StateHope     = "HOPE"
	StateStress   = "STRESS"
	StateDespair  = "DESPAIR"
	StateCrisis   = "CRISIS"
	StateRecovery = "RECOVERY"
)

// ArcTurn is one message in a five-turn synthetic conversation.
type ArcTurn struct {
	State string `json:"state"`
	Text  string `json:"text"`
}

// TherapyArc is a synthetic five-turn German therapy conversation with
// an emotional state progression and an overall label.
type TherapyArc struct {
	ID         string           `json:"id"`
	Turns      []ArcTurn        `json:"turns"`
	FinalLabel triage.RiskLabel `json:"final_label"`
	ArcPattern string           `json:"arc_pattern"`
	Source     string           `json:"source"`
}

// FlatSample is one arc turn rewritten as a single-turn labeled sample
// suitable for the validate command.
type FlatSample struct {
	Text   string           `json:"text"`
	Label  triage.RiskLabel `json:"label"`
	State  string           `json:"state"`
	Source string           `json:"source"`
}

// stateTemplates holds German message templates per emotional state.
var stateTemplates = map[string][]string{
	StateHope: {
		"Ich bin zuversichtlich, dass es besser wird.",
		"Heute fühle ich mich etwas hoffnungsvoller.",
		"Ich arbeite an mir selbst und sehe Fortschritte.",
		"Die Therapie hilft mir, Dinge anders zu sehen.",
		"Ich habe ein gutes Gespräch mit meiner Familie gehabt.",
	},
	StateStress: {
		"Die Arbeit macht mich fertig, ich bin so gestresst.",
		"Ich schlafe schlecht und bin immer müde.",
		"Alles wird zu viel, ich weiß nicht wie ich das schaffen soll.",
		"Ich habe Angst vor der Zukunft.",
		"Meine Beziehungen leiden unter meinem Stress.",
	},
	StateDespair: {
		"Ich fühle mich seit Wochen hoffnungslos.",
		"Nichts macht mir mehr Freude, alles ist grau.",
		"Ich habe aufgegeben an Besserung zu glauben.",
		"Ich bin eine Last für alle um mich herum.",
		"Die Dunkelheit wird jeden Tag schlimmer.",
	},
	StateCrisis: {
		"Ich denke darüber nach mir selbst wehzutun.",
		"Ich habe Suizidgedanken und weiß nicht weiter.",
		"Ich will nicht mehr leben, es ist zu schwer.",
		"Ich habe mir überlegt wie ich das beenden kann.",
		"Meine Suizidgedanken werden immer stärker.",
	},
	StateRecovery: {
		"Ich habe mit jemandem gesprochen und fühle mich besser.",
		"Ich habe die Krisenhotline angerufen, das hat geholfen.",
		"Ich bin froh dass ich mich Hilfe geholt habe.",
		"Morgen gehe ich zu meinem Therapeuten.",
		"Ich habe verstanden, dass ich Unterstützung brauche.",
	},
}

type arcPattern struct {
	states []string
	label  triage.RiskLabel
	weight float64
}

// arcPatterns define the state progressions and their share of the
// generated corpus: 70% positive, 20% risky, 10% crisis. Every crisis
// arc ends in recovery so the corpus models help-seeking, not
// hopeless endings.
var arcPatterns = []arcPattern{
	{[]string{StateHope, StateHope, StateStress, StateHope, StateHope}, triage.LabelSafe, 0.15},
	{[]string{StateStress, StateStress, StateHope, StateHope, StateHope}, triage.LabelSafe, 0.15},
	{[]string{StateStress, StateHope, StateStress, StateHope, StateHope}, triage.LabelSafe, 0.15},
	{[]string{StateHope, StateStress, StateStress, StateHope, StateHope}, triage.LabelSafe, 0.15},
	{[]string{StateStress, StateStress, StateStress, StateHope, StateHope}, triage.LabelSafe, 0.10},

	{[]string{StateHope, StateStress, StateDespair, StateStress, StateHope}, triage.LabelRisky, 0.05},
	{[]string{StateStress, StateStress, StateDespair, StateDespair, StateStress}, triage.LabelRisky, 0.05},
	{[]string{StateStress, StateDespair, StateDespair, StateStress, StateHope}, triage.LabelRisky, 0.05},
	{[]string{StateDespair, StateDespair, StateStress, StateHope, StateHope}, triage.LabelRisky, 0.05},

	{[]string{StateStress, StateDespair, StateDespair, StateCrisis, StateRecovery}, triage.LabelCrisis, 0.025},
	{[]string{StateDespair, StateDespair, StateDespair, StateCrisis, StateRecovery}, triage.LabelCrisis, 0.025},
	{[]string{StateStress, StateStress, StateDespair, StateCrisis, StateRecovery}, triage.LabelCrisis, 0.025},
	{[]string{StateHope, StateDespair, StateDespair, StateCrisis, StateRecovery}, triage.LabelCrisis, 0.025},
}

// GenerateArcs produces roughly total synthetic therapy arcs in the
// configured pattern proportions, shuffled. The rng makes a run
// reproducible from a seed.
func GenerateArcs(total int, rng *rand.Rand) []TherapyArc {
	var arcs []TherapyArc
	for _, p := range arcPatterns {
		count := int(float64(total) * p.weight)
		for i := 0; i < count; i++ {
			turns := make([]ArcTurn, 0, len(p.states))
			for _, state := range p.states {
				templates := stateTemplates[state]
				turns = append(turns, ArcTurn{
					State: state,
					Text:  templates[rng.Intn(len(templates))],
				})
			}
			arcs = append(arcs, TherapyArc{
				ID:         uuid.NewString(),
				Turns:      turns,
				FinalLabel: p.label,
				ArcPattern: strings.Join(p.states, "→"),
				Source:     "synthetic_arc",
			})
		}
	}

	rng.Shuffle(len(arcs), func(i, j int) {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	})
	return arcs
}

// FlattenArcs rewrites every turn of every arc as a single-turn
// labeled sample. Per-turn labels come from the state: CRISIS turns
// are crises, DESPAIR turns are risky, everything else is safe.
func FlattenArcs(arcs []TherapyArc) []FlatSample {
	var flat []FlatSample
	for _, arc := range arcs {
		for _, turn := range arc.Turns {
			flat = append(flat, FlatSample{
				Text:   turn.Text,
				Label:  turnLabel(turn.State),
				State:  turn.State,
				Source: "synthetic_arc_flat",
			})
		}
	}
	return flat
}

func turnLabel(state string) triage.RiskLabel {
	switch state {
	case StateCrisis:
		return triage.LabelCrisis
	case StateDespair:
		return triage.LabelRisky
	default:
		return triage.LabelSafe
	}
}
