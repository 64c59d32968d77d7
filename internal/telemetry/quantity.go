package telemetry

import (
	"math/rand"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/bounded"
)

// Spec describes a simulated environmental quantity.
type Spec struct {
	Name string
	Min  uint
	Max  uint
	// BaseMaxChange is the largest step of an unbiased move.
	BaseMaxChange uint
}

// Quantity is the runtime state of a sampled quantity.
type Quantity struct {
	Spec Spec
	// Value is meaningful only once Sampled is set.
	Value       uint
	Sampled     bool
	EqPoint     uint
	LastPublish time.Time
	// ForceMax makes the next sample Spec.Max.
	ForceMax bool
}

// NewQuantity returns an unsampled quantity whose equilibrium point is
// drawn uniformly from [eqMin, eqMax].
func NewQuantity(spec Spec, eqMin, eqMax uint, rng *rand.Rand) *Quantity {
	return &Quantity{Spec: spec, EqPoint: uniform(rng, eqMin, eqMax)}
}

// Percentile returns where v lies in [min, max] as 0..100.
func (s Spec) Percentile(v uint) uint {
	if s.Max <= s.Min {
		return 0
	}
	v = bounded.Clamp(v, s.Min, s.Max)
	return (v - s.Min) * 100 / (s.Max - s.Min)
}

// Topic returns the publication topic of the quantity under namespace.
func (s Spec) Topic(namespace string) string {
	return namespace + "/" + s.Name
}

func uniform(rng *rand.Rand, lo, hi uint) uint {
	if hi <= lo {
		return lo
	}
	return lo + uint(rng.Int63n(int64(hi-lo)+1))
}
