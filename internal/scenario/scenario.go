// Package scenario scripts the average fan relative speed seen by an
// offline simulation. A scenario is a set of phases, each holding a fixed
// fan speed, with triggers that move to another phase when a sampled
// quantity crosses a percentile or a phase has lasted long enough.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Trigger events.
const (
	EventAbove = "above"
	EventBelow = "below"
	EventSteps = "steps"
)

const maxCorrelation = 100

// Scenario defines ordered phases and an overall description.
type Scenario struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Phases      []Phase `yaml:"phases"`
}

// Phase holds the fan speed applied while it is active.
type Phase struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Correlation uint   `yaml:"correlation"`
	// SimulateMax forces every quantity to its maximum on entry.
	SimulateMax bool      `yaml:"simulate_max,omitempty"`
	Triggers    []Trigger `yaml:"triggers,omitempty"`
}

// Trigger moves the scenario to Next. "above" and "below" compare the
// percentile of Quantity against Value; "steps" fires once the phase has
// produced Value samples.
type Trigger struct {
	Event    string `yaml:"event"`
	Quantity string `yaml:"quantity,omitempty"`
	Value    uint   `yaml:"value"`
	Next     string `yaml:"next"`
}

// Event is a sample observed while a phase is active.
type Event struct {
	Quantity   string
	Percentile uint
	// Steps counts the samples produced in the current phase.
	Steps int
}

// Matches reports whether ev fires t.
func (t Trigger) Matches(ev Event) bool {
	switch t.Event {
	case EventAbove:
		return ev.Quantity == t.Quantity && ev.Percentile >= t.Value
	case EventBelow:
		return ev.Quantity == t.Quantity && ev.Percentile <= t.Value
	case EventSteps:
		return ev.Steps >= int(t.Value)
	default:
		return false
	}
}

// Constant returns a single-phase scenario holding correlation.
func Constant(correlation uint) *Scenario {
	return &Scenario{
		Name:   "constant",
		Phases: []Phase{{Name: "constant", Correlation: correlation}},
	}
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks phase names, fan speeds and trigger targets.
func (s *Scenario) Validate() error {
	if len(s.Phases) == 0 {
		return errors.New("scenario: no phases")
	}
	names := make(map[string]bool, len(s.Phases))
	for _, p := range s.Phases {
		if p.Name == "" {
			return errors.New("scenario: phase without a name")
		}
		if names[p.Name] {
			return fmt.Errorf("scenario: duplicate phase %q", p.Name)
		}
		names[p.Name] = true
	}
	var errs []error
	for _, p := range s.Phases {
		if p.Correlation > maxCorrelation {
			errs = append(errs, fmt.Errorf("phase %q: correlation %d > %d", p.Name, p.Correlation, maxCorrelation))
		}
		for _, tr := range p.Triggers {
			if !names[tr.Next] {
				errs = append(errs, fmt.Errorf("phase %q: trigger to unknown phase %q", p.Name, tr.Next))
			}
			switch tr.Event {
			case EventAbove, EventBelow:
				if tr.Quantity == "" {
					errs = append(errs, fmt.Errorf("phase %q: %s trigger without a quantity", p.Name, tr.Event))
				}
			case EventSteps:
			default:
				errs = append(errs, fmt.Errorf("phase %q: unknown trigger event %q", p.Name, tr.Event))
			}
		}
	}
	return errors.Join(errs...)
}

// Phase returns the phase called name.
func (s *Scenario) Phase(name string) (Phase, bool) {
	for _, p := range s.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

// NextPhase returns the name of the next phase given the current phase and event.
// If no trigger matches, ok will be false.
func (s *Scenario) NextPhase(current string, ev Event) (next string, ok bool) {
	p, found := s.Phase(current)
	if !found {
		return "", false
	}
	for _, tr := range p.Triggers {
		if tr.Matches(ev) {
			return tr.Next, true
		}
	}
	return "", false
}
