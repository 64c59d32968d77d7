// Package connectivity drives the sensor's MQTT connection lifecycle and
// reports device errors to the broker.
//
// A Machine is not safe for concurrent use. The node runtime owns it and
// calls Tick, Handle and the accessors from a single goroutine; transport
// callbacks only enqueue events into the mailbox returned by Events.
package connectivity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RickyDenton/SafeTunnels/internal/transport"
)

const defaultMailboxSize = 32

// Reachability reports whether the broker can currently be reached.
type Reachability interface {
	Reachable() bool
}

// ReachableFunc adapts a function to Reachability.
type ReachableFunc func() bool

// Reachable calls f.
func (f ReachableFunc) Reachable() bool { return f() }

// Config holds the Machine parameters.
type Config struct {
	NodeID           string
	Broker           transport.ConnectOptions
	CorrelationTopic string
	ErrorsTopic      string
	// OfflineLogEvery decimates the "waiting for connectivity" log to one
	// line every N ticks.
	OfflineLogEvery int
	MailboxSize     int
}

// Machine is the connectivity state machine.
type Machine struct {
	cfg      Config
	engine   transport.Engine
	reach    Reachability
	reporter *Reporter
	logger   *slog.Logger

	session      transport.Session
	state        State
	correlation  Correlation
	subPending   bool
	offlineTicks int

	events   chan transport.Event
	done     chan struct{}
	shutdown sync.Once
}

// NewMachine returns a Machine in the Init state.
func NewMachine(cfg Config, engine transport.Engine, reach Reachability, logger *slog.Logger) *Machine {
	if cfg.OfflineLogEvery <= 0 {
		cfg.OfflineLogEvery = 1
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		cfg:    cfg,
		engine: engine,
		reach:  reach,
		logger: logger,
		state:  Init,
		events: make(chan transport.Event, cfg.MailboxSize),
		done:   make(chan struct{}),
	}
	m.reporter = NewReporter(cfg.NodeID, cfg.ErrorsTopic, m, logger)
	return m
}

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// Correlation returns the last accepted correlation input.
func (m *Machine) Correlation() Correlation { return m.correlation }

// Events returns the transport event mailbox.
func (m *Machine) Events() <-chan transport.Event { return m.events }

// Reportf reports a device error through the machine's reporter.
func (m *Machine) Reportf(code Code, format string, args ...any) {
	m.reporter.Reportf(code, format, args...)
}

// Publish submits a message through the registered session.
func (m *Machine) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if m.session == nil {
		return transport.ErrNotRegistered
	}
	return m.session.Publish(topic, payload, qos, retain)
}

// SetCorrelation overrides the correlation input locally.
func (m *Machine) SetCorrelation(v uint) error {
	if v > MaxCorrelation {
		return fmt.Errorf("%w: %d > %d", ErrCorrelationRange, v, MaxCorrelation)
	}
	m.correlation = Correlation{Value: v, Known: true}
	m.logger.Info("average fan relative speed overridden", "value", v)
	return nil
}

// enqueue is the transport handler. It blocks until the event is accepted
// or the machine shuts down.
func (m *Machine) enqueue(ev transport.Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	m.logger.Info("connection state changed", "from", m.state.String(), "to", s.String())
	m.state = s
}

// Tick advances the lifecycle by one step.
func (m *Machine) Tick() {
	switch m.state {
	case Init:
		m.register()
	case EngineReady:
		m.awaitNetwork()
	case NetworkReady:
		m.connect()
	case Connecting, Subscribed:
	case Connected:
		m.subscribe()
	default:
		m.reporter.Reportf(ErrUnknownState, "(state = %d)", int(m.state))
	}
}

func (m *Machine) register() {
	s, err := m.engine.Register(m.cfg.NodeID, m.enqueue)
	if err != nil {
		m.logger.Error("failed to register the MQTT engine", "err", err)
		return
	}
	m.session = s
	m.setState(EngineReady)
}

func (m *Machine) awaitNetwork() {
	if m.reach.Reachable() {
		m.offlineTicks = 0
		m.setState(NetworkReady)
		return
	}
	if m.offlineTicks%m.cfg.OfflineLogEvery == 0 {
		m.logger.Info("waiting for external connectivity", "broker", m.cfg.Broker.Address())
	}
	m.offlineTicks++
}

func (m *Machine) connect() {
	will, err := json.Marshal(struct {
		ID   string `json:"ID"`
		Code Code   `json:"errCode"`
	}{m.cfg.NodeID, ErrMQTTDisconnected})
	if err != nil {
		m.logger.Error("failed to encode last will", "err", err)
		return
	}
	m.session.SetLastWill(transport.Will{Topic: m.cfg.ErrorsTopic, Payload: will})
	if err := m.session.Connect(m.cfg.Broker); err != nil {
		m.logger.Warn("failed to submit the broker connection request", "broker", m.cfg.Broker.Address(), "err", err)
		return
	}
	m.logger.Info("connecting to the MQTT broker", "broker", m.cfg.Broker.Address())
	m.setState(Connecting)
}

func (m *Machine) subscribe() {
	if m.subPending {
		return
	}
	if err := m.session.Subscribe(m.cfg.CorrelationTopic, 0); err != nil {
		m.reporter.Reportf(ErrSubCorrelationFailed, "(error = '%v')", err)
		return
	}
	m.subPending = true
}

// Handle applies a transport event.
func (m *Machine) Handle(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		m.onConnected()
	case transport.EventDisconnected:
		m.onDisconnected(ev.Err)
	case transport.EventSubAck:
		m.onSubAck(ev)
	case transport.EventUnsubAck:
		m.onUnsubAck()
	case transport.EventPublish:
		m.onMessage(ev.Topic, ev.Payload)
	default:
		m.reporter.Reportf(ErrUnknownEvent, "(%d)", int(ev.Kind))
	}
}

func (m *Machine) onConnected() {
	if m.state != Connecting {
		m.reporter.Reportf(ErrConnectedNotConnecting, "(state = %s)", m.state)
	}
	m.subPending = false
	m.logger.Info("connected to the MQTT broker", "broker", m.cfg.Broker.Address())
	m.setState(Connected)
}

func (m *Machine) onDisconnected(cause error) {
	if !m.state.AtLeast(Connecting) {
		m.logger.Debug("ignoring disconnection before connecting", "state", m.state.String(), "err", cause)
		return
	}
	m.logger.Warn("disconnected from the MQTT broker", "state", m.state.String(), "err", cause)
	m.subPending = false
	if m.reach.Reachable() {
		m.setState(NetworkReady)
		return
	}
	m.offlineTicks = 0
	m.setState(EngineReady)
}

func (m *Machine) onSubAck(ev transport.Event) {
	if m.state != Connected {
		m.logger.Warn("ignoring subscription acknowledgement", "state", m.state.String(), "topic", ev.Topic)
		return
	}
	m.subPending = false
	if ev.Err != nil {
		m.reporter.Reportf(ErrSubCorrelationFailed, "(error = '%v')", ev.Err)
		return
	}
	m.logger.Info("subscribed to the correlation topic", "topic", m.cfg.CorrelationTopic)
	m.setState(Subscribed)
}

func (m *Machine) onUnsubAck() {
	if m.state != Subscribed {
		m.logger.Debug("ignoring unsubscription acknowledgement", "state", m.state.String())
		return
	}
	m.reporter.Reportf(ErrUnsubscribed, "(topic = %s)", m.cfg.CorrelationTopic)
	m.setState(Connected)
}

func (m *Machine) onMessage(topic string, payload []byte) {
	// A retained value may overtake the SUBACK event.
	listening := m.state == Subscribed || (m.state == Connected && m.subPending)
	if !listening || topic != m.cfg.CorrelationTopic {
		m.reporter.Reportf(ErrRecvNotSubscribedTopic, "(topic = %s)", topic)
		return
	}
	v, err := ParseCorrelation(string(payload))
	switch {
	case errors.Is(err, ErrCorrelationRange):
		m.reporter.Reportf(ErrRecvInvalidCorrelation, "(%d > %d)", v, MaxCorrelation)
		return
	case err != nil:
		m.reporter.Reportf(ErrRecvInvalidCorrelation, "(payload = %q)", payload)
		return
	}
	m.correlation = Correlation{Value: v, Known: true}
	m.logger.Info("received new average fan relative speed value", "value", v)
}

// Shutdown releases blocked transport callbacks and disconnects the
// session if a connection was attempted.
func (m *Machine) Shutdown() {
	m.shutdown.Do(func() {
		close(m.done)
		if m.session != nil && m.state.AtLeast(Connecting) {
			m.session.Disconnect()
		}
	})
}
