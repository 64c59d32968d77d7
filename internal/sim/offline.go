package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/scenario"
	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
)

// OfflineOutcome marks rows produced without a broker.
const OfflineOutcome = "simulated"

// Simulation runs the quantity simulator without a broker, taking the
// fan speed input from a scenario.
type Simulation struct {
	Config   *config.Config
	NodeID   string
	Scenario *scenario.Scenario
	// Steps is the number of samples drawn per quantity.
	Steps  int
	Rand   *rand.Rand
	Writer SampleWriter
	Start  time.Time
	Logger *slog.Logger
}

type offlineQuantity struct {
	q     *telemetry.Quantity
	sched Schedule
	next  time.Duration
	left  int
}

// Run draws the samples in timestamp order, following the scenario's phase
// transitions, and writes them to the writer in one batch.
func (s Simulation) Run() ([]telemetry.SampleRow, error) {
	if s.Scenario == nil || len(s.Scenario.Phases) == 0 {
		return nil, errors.New("sim: simulation without a scenario")
	}
	if s.Steps < 0 {
		return nil, fmt.Errorf("sim: negative step count %d", s.Steps)
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := s.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := s.Config.Simulator.Params()
	simulator := telemetry.NewSimulator(p, rng)
	schedules := Schedules(s.Config.Sampling, s.Config.Quantities)

	var qs []*offlineQuantity
	for i, qc := range s.Config.Quantities {
		if schedules[i].Period <= 0 {
			continue
		}
		qs = append(qs, &offlineQuantity{
			q:     telemetry.NewQuantity(qc.Spec(), p.EqPointMin, p.EqPointMax, rng),
			sched: schedules[i],
			next:  schedules[i].First,
			left:  s.Steps,
		})
	}

	phase := s.Scenario.Phases[0]
	steps := 0
	enter := func(ph scenario.Phase) {
		phase, steps = ph, 0
		if ph.SimulateMax {
			for _, oq := range qs {
				oq.q.ForceMax = true
			}
		}
	}
	enter(phase)

	rows := make([]telemetry.SampleRow, 0, s.Steps*len(qs))
	for {
		oq := earliest(qs)
		if oq == nil {
			break
		}
		value := simulator.Sample(oq.q, phase.Correlation)
		oq.q.Value, oq.q.Sampled = value, true
		rows = append(rows, telemetry.SampleRow{
			NodeID:           s.NodeID,
			Quantity:         oq.q.Spec.Name,
			Value:            value,
			EqPoint:          oq.q.EqPoint,
			Correlation:      phase.Correlation,
			CorrelationKnown: true,
			ConnState:        "offline",
			Outcome:          OfflineOutcome,
			Timestamp:        s.Start.Add(oq.next),
		})
		oq.next += oq.sched.Period
		oq.left--
		steps++

		ev := scenario.Event{Quantity: oq.q.Spec.Name, Percentile: oq.q.Spec.Percentile(value), Steps: steps}
		if name, ok := s.Scenario.NextPhase(phase.Name, ev); ok {
			next, _ := s.Scenario.Phase(name)
			logger.Info("scenario phase changed", "from", phase.Name, "to", next.Name, "after", oq.next-oq.sched.Period)
			enter(next)
		}
	}
	if s.Writer == nil || len(rows) == 0 {
		return rows, nil
	}
	return rows, writeAll(s.Writer, rows)
}

func earliest(qs []*offlineQuantity) *offlineQuantity {
	var best *offlineQuantity
	for _, oq := range qs {
		if oq.left <= 0 {
			continue
		}
		if best == nil || oq.next < best.next {
			best = oq
		}
	}
	return best
}
