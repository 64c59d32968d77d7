// Package transport defines the narrow port the sensor node uses to talk to
// an MQTT broker. Adapters live in the mqtt3 and mqtt5 subpackages.
//
// Session methods never block on network I/O: they return once the request
// has been handed to the client library, and outcomes that arrive later
// (CONNACK, SUBACK, connection loss, inbound messages) are delivered to the
// Handler registered with the Engine as Events.
package transport

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned by Publish while a previous publication is
	// still being handed to the broker.
	ErrQueueFull = errors.New("transport: outgoing queue full")
	// ErrNotConnected is returned when an operation needs an open session.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrNotRegistered is returned when no session has been registered yet.
	ErrNotRegistered = errors.New("transport: session not registered")
	// ErrConnectInProgress is returned by Connect while a previous attempt
	// has not completed.
	ErrConnectInProgress = errors.New("transport: connect already in progress")
)

// EventKind identifies an asynchronous transport outcome.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
	EventSubAck
	EventUnsubAck
	EventPublish
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventSubAck:
		return "suback"
	case EventUnsubAck:
		return "unsuback"
	case EventPublish:
		return "publish"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event is delivered to the registered Handler.
//
// Err is set on EventDisconnected (the cause, may be nil) and on EventSubAck
// when the broker refused the subscription. Topic and Payload are set on
// EventPublish; Topic is also set on EventSubAck.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
}

// Handler receives transport events. It is called from client library
// goroutines and must not touch node state directly.
type Handler func(Event)

// Will is the last-will message the broker publishes if the session is lost.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// ConnectOptions describe the broker to connect to.
type ConnectOptions struct {
	Host         string
	Port         int
	KeepAlive    time.Duration
	CleanSession bool
	TLS          bool
	Username     string
	Password     string
}

// Address returns host:port, bracketing IPv6 literals.
func (o ConnectOptions) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// URL returns the broker URL using scheme, or secureScheme when TLS is on.
func (o ConnectOptions) URL(scheme, secureScheme string) *url.URL {
	if o.TLS {
		scheme = secureScheme
	}
	return &url.URL{Scheme: scheme, Host: o.Address()}
}

// Engine creates sessions bound to a client identity.
type Engine interface {
	Register(identity string, h Handler) (Session, error)
}

// Session is a single client's view of the broker.
type Session interface {
	SetLastWill(w Will)
	Connect(opts ConnectOptions) error
	Subscribe(topic string, qos byte) error
	Publish(topic string, payload []byte, qos byte, retain bool) error
	Disconnect()
}

// Slot admits a single outstanding publication.
type Slot struct {
	busy atomic.Bool
}

// Acquire claims the slot, reporting false if it is already taken.
func (s *Slot) Acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

// Release frees the slot.
func (s *Slot) Release() {
	s.busy.Store(false)
}
