package sim

import (
	"context"
	"time"
)

// QuantityStatus is the admin view of a quantity.
type QuantityStatus struct {
	Name        string     `json:"name"`
	Value       uint       `json:"value"`
	Sampled     bool       `json:"sampled"`
	EqPoint     uint       `json:"eq_point"`
	Min         uint       `json:"min"`
	Max         uint       `json:"max"`
	LastPublish *time.Time `json:"last_publish,omitempty"`
}

// Status is a snapshot of the node.
type Status struct {
	ID               string           `json:"id"`
	State            string           `json:"state"`
	Online           bool             `json:"online"`
	Correlation      uint             `json:"correlation"`
	CorrelationKnown bool             `json:"correlation_known"`
	Quantities       []QuantityStatus `json:"quantities"`
}

// Status returns a snapshot of the node taken on its goroutine.
func (n *Node) Status(ctx context.Context) (Status, error) {
	var st Status
	err := n.exec(ctx, func() {
		corr := n.machine.Correlation()
		st = Status{
			ID:               n.id,
			State:            n.machine.State().String(),
			Online:           n.machine.State().Online(),
			Correlation:      corr.Value,
			CorrelationKnown: corr.Known,
			Quantities:       make([]QuantityStatus, len(n.quantities)),
		}
		for i, q := range n.quantities {
			qs := QuantityStatus{
				Name:    q.Spec.Name,
				Value:   q.Value,
				Sampled: q.Sampled,
				EqPoint: q.EqPoint,
				Min:     q.Spec.Min,
				Max:     q.Spec.Max,
			}
			if !q.LastPublish.IsZero() {
				t := q.LastPublish
				qs.LastPublish = &t
			}
			st.Quantities[i] = qs
		}
	})
	return st, err
}

// SimulateMax makes the next sample of every quantity its maximum.
func (n *Node) SimulateMax(ctx context.Context) error {
	return n.exec(ctx, func() {
		for _, q := range n.quantities {
			q.ForceMax = true
		}
		n.logger.Info("next samples forced to their maximum")
	})
}

// OverrideCorrelation sets the correlation input as if it had been
// received from the broker. Values above the maximum are rejected.
func (n *Node) OverrideCorrelation(ctx context.Context, v uint) error {
	var err error
	if xerr := n.exec(ctx, func() { err = n.machine.SetCorrelation(v) }); xerr != nil {
		return xerr
	}
	return err
}
