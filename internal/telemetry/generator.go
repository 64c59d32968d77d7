package telemetry

import (
	"fmt"
	"math/rand"

	"github.com/RickyDenton/SafeTunnels/internal/bounded"
)

// Params tune the biased random walk.
type Params struct {
	EqPointMin       uint
	EqPointMax       uint
	EqPointMaxChange uint
	// CorrelationWeight scales how far the correlation input lowers the
	// operating equilibrium point.
	CorrelationWeight float64
	ProbSame          uint
	ProbDecrement     uint
	ProbIncrement     uint
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		EqPointMin:        60,
		EqPointMax:        100,
		EqPointMaxChange:  2,
		CorrelationWeight: 0.6,
		ProbSame:          40,
		ProbDecrement:     30,
		ProbIncrement:     30,
	}
}

// Validate checks the tuning is usable.
func (p Params) Validate() error {
	if p.EqPointMin > p.EqPointMax || p.EqPointMax > 100 {
		return fmt.Errorf("equilibrium range [%d, %d] must lie within [0, 100]", p.EqPointMin, p.EqPointMax)
	}
	if p.ProbSame+p.ProbDecrement+p.ProbIncrement != 100 {
		return fmt.Errorf("move probabilities sum to %d, want 100", p.ProbSame+p.ProbDecrement+p.ProbIncrement)
	}
	if p.CorrelationWeight < 0 || p.CorrelationWeight > 1 {
		return fmt.Errorf("correlation weight %v outside [0, 1]", p.CorrelationWeight)
	}
	return nil
}

const (
	minProbSame   = 5
	maxProbBiased = 95
)

type bias int

const (
	biasNone bias = iota
	biasDecrement
	biasIncrement
)

// Simulator produces successive values of environmental quantities.
// It is not safe for concurrent use.
type Simulator struct {
	params Params
	rng    *rand.Rand
}

// NewSimulator creates a simulator drawing from rng.
func NewSimulator(p Params, rng *rand.Rand) *Simulator {
	return &Simulator{params: p, rng: rng}
}

// Initial draws a starting value uniformly from [spec.Min, spec.Max].
func (s *Simulator) Initial(spec Spec) uint {
	return uniform(s.rng, spec.Min, spec.Max)
}

// DriftEqPoint moves *eq by a small random step half of the time.
func (s *Simulator) DriftEqPoint(eq *uint) {
	if s.params.EqPointMaxChange == 0 || s.rng.Intn(2) == 0 {
		return
	}
	step := uint(s.rng.Int63n(int64(s.params.EqPointMaxChange))) + 1
	if s.rng.Intn(2) == 0 {
		*eq = bounded.Add(*eq, step, s.params.EqPointMax)
	} else {
		*eq = bounded.Sub(*eq, step, s.params.EqPointMin)
	}
}

// NextValue drifts *eq and returns the value following current. Moves are
// biased towards the operating equilibrium point, which is *eq lowered by
// the weighted correlation input; the further the percentile is from it,
// the stronger and larger the corrective moves.
func (s *Simulator) NextValue(current uint, eq *uint, percentile, correlation, baseMaxChange, lo, hi uint) uint {
	s.DriftEqPoint(eq)

	opEq := bounded.Sub(*eq, uint(float64(correlation)*s.params.CorrelationWeight), 0)

	same, dec := s.params.ProbSame, s.params.ProbDecrement
	var diff uint
	direction := biasNone
	switch {
	case percentile > opEq:
		diff = percentile - opEq
		same = bounded.Sub(same, diff, minProbSame)
		dec = bounded.Add(dec, 2*diff, maxProbBiased)
		direction = biasDecrement
	case percentile < opEq:
		diff = opEq - percentile
		same = bounded.Sub(same, diff, minProbSame)
		dec = bounded.Sub(dec, diff, 0)
		direction = biasIncrement
	}

	// The increment band is whatever lies above same+dec.
	draw := uint(s.rng.Intn(101))
	switch {
	case draw <= same:
		return current
	case draw <= same+dec:
		return bounded.Sub(current, s.step(baseMaxChange, diff, direction == biasDecrement), lo)
	default:
		return bounded.Add(current, s.step(baseMaxChange, diff, direction == biasIncrement), hi)
	}
}

// step draws a move size in [1, maxChange]. Moves in the biased direction
// have their maximum scaled up to 5x as diff approaches 100.
func (s *Simulator) step(base, diff uint, biased bool) uint {
	maxChange := base
	if biased {
		maxChange = uint(float64(base) * (1 + float64(diff)/100*4))
	}
	if maxChange == 0 {
		maxChange = 1
	}
	return uint(s.rng.Int63n(int64(maxChange))) + 1
}

// Sample advances q by one step given the current correlation input and
// returns the new value. It does not update q.Value.
func (s *Simulator) Sample(q *Quantity, correlation uint) uint {
	switch {
	case q.ForceMax:
		q.ForceMax = false
		return q.Spec.Max
	case !q.Sampled:
		return s.Initial(q.Spec)
	default:
		return s.NextValue(q.Value, &q.EqPoint, q.Spec.Percentile(q.Value), correlation, q.Spec.BaseMaxChange, q.Spec.Min, q.Spec.Max)
	}
}
