// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"sync"

	"github.com/RickyDenton/SafeTunnels/internal/transport"
)

// Message is a publication recorded by Session.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Session records every call made through the transport.Session port.
// The *Err fields are returned by the matching method. With AutoConnect and
// AutoSubAck set, Connect and Subscribe deliver their acknowledgement to the
// handler immediately.
type Session struct {
	mu sync.Mutex

	ConnectErr   error
	SubscribeErr error
	PublishErr   error
	AutoConnect  bool
	AutoSubAck   bool

	handler     transport.Handler
	will        *transport.Will
	connectOpts []transport.ConnectOptions
	subscribes  []string
	published   []Message
	disconnects int
}

// SetLastWill implements transport.Session.
func (s *Session) SetLastWill(w transport.Will) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.will = &w
}

// Connect implements transport.Session.
func (s *Session) Connect(opts transport.ConnectOptions) error {
	s.mu.Lock()
	s.connectOpts = append(s.connectOpts, opts)
	err, auto, h := s.ConnectErr, s.AutoConnect, s.handler
	s.mu.Unlock()
	if err == nil && auto && h != nil {
		h(transport.Event{Kind: transport.EventConnected})
	}
	return err
}

// Subscribe implements transport.Session.
func (s *Session) Subscribe(topic string, qos byte) error {
	s.mu.Lock()
	s.subscribes = append(s.subscribes, topic)
	err, auto, h := s.SubscribeErr, s.AutoSubAck, s.handler
	s.mu.Unlock()
	if err == nil && auto && h != nil {
		h(transport.Event{Kind: transport.EventSubAck, Topic: topic})
	}
	return err
}

// Publish implements transport.Session.
func (s *Session) Publish(topic string, payload []byte, qos byte, retain bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PublishErr != nil {
		return s.PublishErr
	}
	s.published = append(s.published, Message{Topic: topic, Payload: append([]byte(nil), payload...), QoS: qos, Retain: retain})
	return nil
}

// Disconnect implements transport.Session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
}

// SetPublishErr changes the error returned by Publish.
func (s *Session) SetPublishErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PublishErr = err
}

// Deliver invokes the registered handler as the client library would.
func (s *Session) Deliver(ev transport.Event) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// Will returns the last will set, or nil.
func (s *Session) Will() *transport.Will {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.will
}

// Connects returns the options of every Connect call.
func (s *Session) Connects() []transport.ConnectOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.ConnectOptions(nil), s.connectOpts...)
}

// Subscribes returns the topics of every Subscribe call.
func (s *Session) Subscribes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribes...)
}

// Published returns the accepted publications.
func (s *Session) Published() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.published...)
}

// PublishCount returns the number of accepted publications.
func (s *Session) PublishCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

// Disconnects returns the number of Disconnect calls.
func (s *Session) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

// Engine hands out a single Session.
type Engine struct {
	mu sync.Mutex

	Session     *Session
	RegisterErr error

	registers int
	identity  string
}

// NewEngine returns an engine backed by a fresh Session.
func NewEngine() *Engine {
	return &Engine{Session: &Session{}}
}

// Register implements transport.Engine.
func (e *Engine) Register(identity string, h transport.Handler) (transport.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registers++
	if e.RegisterErr != nil {
		return nil, e.RegisterErr
	}
	e.identity = identity
	e.Session.mu.Lock()
	e.Session.handler = h
	e.Session.mu.Unlock()
	return e.Session, nil
}

// Registers returns the number of Register calls.
func (e *Engine) Registers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registers
}

// Identity returns the identity of the last successful Register call.
func (e *Engine) Identity() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}
