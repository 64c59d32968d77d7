package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTriggerMatches(t *testing.T) {
	tests := []struct {
		name string
		tr   Trigger
		ev   Event
		want bool
	}{
		{"above reached", Trigger{Event: EventAbove, Quantity: "C02", Value: 70}, Event{Quantity: "C02", Percentile: 70}, true},
		{"above not reached", Trigger{Event: EventAbove, Quantity: "C02", Value: 70}, Event{Quantity: "C02", Percentile: 69}, false},
		{"other quantity", Trigger{Event: EventAbove, Quantity: "C02", Value: 70}, Event{Quantity: "temp", Percentile: 90}, false},
		{"below reached", Trigger{Event: EventBelow, Quantity: "temp", Value: 20}, Event{Quantity: "temp", Percentile: 5}, true},
		{"steps reached", Trigger{Event: EventSteps, Value: 3}, Event{Quantity: "temp", Steps: 3}, true},
		{"steps pending", Trigger{Event: EventSteps, Value: 3}, Event{Steps: 2}, false},
		{"unknown event", Trigger{Event: "time_elapsed", Value: 0}, Event{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tr.Matches(tt.ev); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScenarioTransition(t *testing.T) {
	s := BuiltIn()["ventilation"]

	next, ok := s.NextPhase("idle", Event{Quantity: "C02", Percentile: 75})
	if !ok || next != "ventilate" {
		t.Fatalf("expected transition to ventilate, got %s", next)
	}
	if _, ok := s.NextPhase("ventilate", Event{Quantity: "C02", Percentile: 75}); ok {
		t.Fatalf("unexpected transition while still high")
	}
	if _, ok := s.NextPhase("missing", Event{}); ok {
		t.Fatalf("transition from unknown phase")
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simple.yaml")
	data := `name: example
description: basic test scenario
phases:
  - name: calm
    correlation: 10
    triggers:
      - event: steps
        value: 4
        next: storm
  - name: storm
    correlation: 90
    simulate_max: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" || sc.Description != "basic test scenario" {
		t.Fatalf("unexpected header %+v", sc)
	}
	if len(sc.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(sc.Phases))
	}
	storm, ok := sc.Phase("storm")
	if !ok || storm.Correlation != 90 || !storm.SimulateMax {
		t.Fatalf("unexpected storm phase %+v", storm)
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("phases:\n  - name: a\n    correlation: 150\n"), 0o644)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "150") {
		t.Fatalf("expected correlation range error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		s    Scenario
		want string
	}{
		{"empty", Scenario{}, "no phases"},
		{"unnamed", Scenario{Phases: []Phase{{}}}, "without a name"},
		{"duplicate", Scenario{Phases: []Phase{{Name: "a"}, {Name: "a"}}}, "duplicate"},
		{"unknown target", Scenario{Phases: []Phase{{Name: "a", Triggers: []Trigger{{Event: EventSteps, Next: "b"}}}}}, "unknown phase"},
		{"missing quantity", Scenario{Phases: []Phase{{Name: "a", Triggers: []Trigger{{Event: EventAbove, Next: "a"}}}}}, "without a quantity"},
		{"unknown event", Scenario{Phases: []Phase{{Name: "a", Triggers: []Trigger{{Event: "later", Next: "a"}}}}}, "unknown trigger event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestBuiltInArcs(t *testing.T) {
	arcs := BuiltIn()
	for _, n := range []string{"idle", "ventilation", "alarm"} {
		arc, ok := arcs[n]
		if !ok {
			t.Fatalf("arc %s not found", n)
		}
		if arc.Description == "" {
			t.Fatalf("arc %s missing description", n)
		}
		if err := arc.Validate(); err != nil {
			t.Fatalf("arc %s invalid: %v", n, err)
		}
	}
}

func TestConstant(t *testing.T) {
	s := Constant(40)
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p := s.Phases[0]; p.Correlation != 40 || len(p.Triggers) != 0 {
		t.Fatalf("unexpected phase %+v", p)
	}
}
