// Package sim runs a SafeTunnels sensor node: the connectivity state
// machine, the quantity simulator and the local sample sinks, all owned by
// a single goroutine.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
)

// ErrStopped is returned by admin operations once Run has returned.
var ErrStopped = errors.New("sim: node stopped")

// Schedule is when a quantity is first sampled and how often afterwards.
// A zero Period disables sampling.
type Schedule struct {
	First  time.Duration
	Period time.Duration
}

// Schedules derives the sampling schedule of every configured quantity.
// A shared period staggers the quantities evenly within it.
func Schedules(s config.SamplingConfig, qs []config.QuantityConfig) []Schedule {
	out := make([]Schedule, len(qs))
	n := time.Duration(len(qs))
	for i, q := range qs {
		if s.SharedPeriod > 0 {
			out[i] = Schedule{First: s.InitialDelay + time.Duration(i)*s.SharedPeriod/n, Period: s.SharedPeriod}
			continue
		}
		out[i] = Schedule{First: s.InitialDelay + q.Period, Period: q.Period}
	}
	return out
}

type command struct {
	fn   func()
	done chan struct{}
}

// Node is a sensor node. All of its state is confined to the goroutine
// running Run; admin operations are executed there as commands.
type Node struct {
	id         string
	machine    *connectivity.Machine
	simulator  *telemetry.Simulator
	publisher  *telemetry.Publisher
	quantities []*telemetry.Quantity
	schedules  []Schedule
	writer     SampleWriter
	tick       time.Duration
	logger     *slog.Logger
	now        func() time.Time

	commands chan command
	stopped  chan struct{}
}

// NewNode builds a node around machine from cfg. writer may be nil.
func NewNode(cfg *config.Config, id string, machine *connectivity.Machine, writer SampleWriter, rng *rand.Rand, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := cfg.Simulator.Params()
	qs := make([]*telemetry.Quantity, len(cfg.Quantities))
	for i, q := range cfg.Quantities {
		qs[i] = telemetry.NewQuantity(q.Spec(), p.EqPointMin, p.EqPointMax, rng)
	}
	return &Node{
		id:         id,
		machine:    machine,
		simulator:  telemetry.NewSimulator(p, rng),
		publisher:  telemetry.NewPublisher(id, cfg.Topics.Namespace, cfg.Broker.MaxInactivity(), machine, logger),
		quantities: qs,
		schedules:  Schedules(cfg.Sampling, cfg.Quantities),
		writer:     writer,
		tick:       cfg.Timing.Tick,
		logger:     logger,
		now:        time.Now,
		commands:   make(chan command),
		stopped:    make(chan struct{}),
	}
}

// Run drives the node until ctx is cancelled. The broker session is closed
// before Run returns. A panic in the loop is reported as a lost main loop
// and returned as an error.
func (n *Node) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(n.stopped)
	defer n.machine.Shutdown()
	defer func() {
		if r := recover(); r != nil {
			n.machine.Reportf(connectivity.ErrMainLoopExited, "(panic = '%v')", r)
			err = fmt.Errorf("sim: main loop exited: %v", r)
		}
	}()

	ticker := time.NewTicker(n.tick)
	defer ticker.Stop()
	due := make(chan int)
	for i, s := range n.schedules {
		if s.Period > 0 {
			go n.schedule(ctx, i, s, due)
		}
	}

	n.logger.Info("sensor node started", "id", n.id, "quantities", len(n.quantities))
	n.machine.Tick()
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("sensor node stopping", "id", n.id)
			return nil
		case <-ticker.C:
			n.machine.Tick()
		case ev := <-n.machine.Events():
			n.machine.Handle(ev)
		case i := <-due:
			n.sample(i)
		case c := <-n.commands:
			c.fn()
			close(c.done)
		}
	}
}

func (n *Node) schedule(ctx context.Context, i int, s Schedule, due chan<- int) {
	timer := time.NewTimer(s.First)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		select {
		case due <- i:
		case <-ctx.Done():
			return
		}
		timer.Reset(s.Period)
	}
}

// sample draws, publishes and records the next value of quantity i.
func (n *Node) sample(i int) {
	q := n.quantities[i]
	corr := n.machine.Correlation()
	value := n.simulator.Sample(q, corr.Contribution())
	now := n.now()
	outcome := n.publisher.Publish(q, value, now)
	q.Value, q.Sampled = value, true

	if n.writer == nil {
		return
	}
	row := telemetry.SampleRow{
		NodeID:           n.id,
		Quantity:         q.Spec.Name,
		Value:            value,
		EqPoint:          q.EqPoint,
		Correlation:      corr.Value,
		CorrelationKnown: corr.Known,
		ConnState:        n.machine.State().String(),
		Outcome:          outcome.String(),
		Timestamp:        now,
	}
	if err := n.writer.Write(row); err != nil {
		n.logger.Error("failed to record sample", "quantity", q.Spec.Name, "err", err)
	}
}

// exec runs fn on the node goroutine and waits for it to complete.
func (n *Node) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case n.commands <- command{fn: fn, done: done}:
	case <-n.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-n.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
