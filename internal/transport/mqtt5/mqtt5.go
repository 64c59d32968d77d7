// Package mqtt5 adapts the Eclipse Paho MQTT 5 client to the transport port.
// Each Connect dials a fresh connection; nothing is retried here.
package mqtt5

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/RickyDenton/SafeTunnels/internal/transport"
)

const (
	connectTimeout = 30 * time.Second
	requestTimeout = 10 * time.Second
)

// DialFunc opens the network connection to the broker.
type DialFunc func(ctx context.Context, addr string, useTLS bool) (net.Conn, error)

func dial(ctx context.Context, addr string, useTLS bool) (net.Conn, error) {
	if useTLS {
		d := &tls.Dialer{Config: &tls.Config{MinVersion: tls.VersionTLS12}}
		return d.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// Engine creates Paho v5 sessions.
type Engine struct {
	logger *slog.Logger
	dial   DialFunc
}

// NewEngine returns an Engine logging to logger.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger, dial: dial}
}

// Register implements transport.Engine.
func (e *Engine) Register(identity string, h transport.Handler) (transport.Session, error) {
	if identity == "" {
		return nil, errors.New("mqtt5: empty client identity")
	}
	if h == nil {
		return nil, errors.New("mqtt5: nil event handler")
	}
	return &session{identity: identity, handler: h, dial: e.dial, logger: e.logger}, nil
}

type session struct {
	identity string
	handler  transport.Handler
	dial     DialFunc
	logger   *slog.Logger

	mu     sync.Mutex
	will   *transport.Will
	client *paho.Client
	// up is set while client holds an acknowledged connection.
	up *atomic.Bool

	connecting atomic.Bool
	slot       transport.Slot
}

func (s *session) SetLastWill(w transport.Will) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.will = &w
}

func (s *session) Connect(opts transport.ConnectOptions) error {
	if !s.connecting.CompareAndSwap(false, true) {
		return transport.ErrConnectInProgress
	}
	s.mu.Lock()
	will := s.will
	s.mu.Unlock()
	go func() {
		defer s.connecting.Store(false)
		if err := s.connect(opts, will); err != nil {
			s.handler(transport.Event{Kind: transport.EventDisconnected, Err: err})
		}
	}()
	return nil
}

func (s *session) connect(opts transport.ConnectOptions, will *transport.Will) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn, err := s.dial(ctx, opts.Address(), opts.TLS)
	if err != nil {
		return fmt.Errorf("mqtt5 dial %s: %w", opts.Address(), err)
	}

	up := new(atomic.Bool)
	lost := func(cause error) {
		if up.CompareAndSwap(true, false) {
			s.handler(transport.Event{Kind: transport.EventDisconnected, Err: cause})
		}
	}
	client := paho.NewClient(paho.ClientConfig{
		ClientID: s.identity,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				s.handler(transport.Event{Kind: transport.EventPublish, Topic: pr.Packet.Topic, Payload: pr.Packet.Payload})
				return true, nil
			},
		},
		OnClientError: func(err error) { lost(err) },
		OnServerDisconnect: func(d *paho.Disconnect) {
			lost(fmt.Errorf("server disconnect (reason %#x)", d.ReasonCode))
		},
	})

	cp := &paho.Connect{
		ClientID:   s.identity,
		KeepAlive:  uint16(opts.KeepAlive / time.Second),
		CleanStart: opts.CleanSession,
	}
	if will != nil {
		cp.WillMessage = &paho.WillMessage{Topic: will.Topic, Payload: will.Payload, QoS: will.QoS}
	}
	if opts.Username != "" {
		cp.UsernameFlag = true
		cp.Username = opts.Username
		cp.PasswordFlag = true
		cp.Password = []byte(opts.Password)
	}

	ca, err := client.Connect(ctx, cp)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mqtt5 connect: %w", err)
	}
	if ca.ReasonCode >= 0x80 {
		_ = conn.Close()
		return fmt.Errorf("mqtt5 connect refused (reason %#x)", ca.ReasonCode)
	}

	up.Store(true)
	s.mu.Lock()
	s.client, s.up = client, up
	s.mu.Unlock()
	s.handler(transport.Event{Kind: transport.EventConnected})
	return nil
}

// open returns the client if its connection is up.
func (s *session) open() *paho.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.up == nil || !s.up.Load() {
		return nil
	}
	return s.client
}

func (s *session) Subscribe(topic string, qos byte) error {
	c := s.open()
	if c == nil {
		return transport.ErrNotConnected
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		ev := transport.Event{Kind: transport.EventSubAck, Topic: topic}
		sa, err := c.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: qos}},
		})
		switch {
		case err != nil:
			ev.Err = err
		case len(sa.Reasons) > 0 && sa.Reasons[0] >= 0x80:
			ev.Err = fmt.Errorf("broker refused subscription to %q (reason %#x)", topic, sa.Reasons[0])
		}
		s.handler(ev)
	}()
	return nil
}

func (s *session) Publish(topic string, payload []byte, qos byte, retain bool) error {
	c := s.open()
	if c == nil {
		return transport.ErrNotConnected
	}
	if !s.slot.Acquire() {
		return transport.ErrQueueFull
	}
	go func() {
		defer s.slot.Release()
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := c.Publish(ctx, &paho.Publish{Topic: topic, Payload: payload, QoS: qos, Retain: retain}); err != nil {
			s.logger.Warn("mqtt5 publish failed", "topic", topic, "err", err)
		}
	}()
	return nil
}

func (s *session) Disconnect() {
	s.mu.Lock()
	c, up := s.client, s.up
	s.client, s.up = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	// A deliberate disconnect is not a lost connection.
	up.Store(false)
	if err := c.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
		s.logger.Debug("mqtt5 disconnect", "err", err)
	}
}
