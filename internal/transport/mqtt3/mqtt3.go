// Package mqtt3 adapts the Eclipse Paho MQTT 3.1.1 client to the transport
// port. Reconnection is left to the caller: auto-reconnect and connect
// retries are disabled.
package mqtt3

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/RickyDenton/SafeTunnels/internal/transport"
)

// subscribeRefused is the SUBACK return code for a rejected subscription.
const subscribeRefused = 0x80

const quiesce = 250 * time.Millisecond

// Engine creates Paho v3 sessions.
type Engine struct {
	logger    *slog.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

// NewEngine returns an Engine logging to logger.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger, newClient: mqtt.NewClient}
}

// Register implements transport.Engine.
func (e *Engine) Register(identity string, h transport.Handler) (transport.Session, error) {
	if identity == "" {
		return nil, errors.New("mqtt3: empty client identity")
	}
	if h == nil {
		return nil, errors.New("mqtt3: nil event handler")
	}
	return &session{identity: identity, handler: h, newClient: e.newClient, logger: e.logger}, nil
}

type session struct {
	identity  string
	handler   transport.Handler
	newClient func(*mqtt.ClientOptions) mqtt.Client
	logger    *slog.Logger

	mu     sync.Mutex
	will   *transport.Will
	client mqtt.Client

	connecting atomic.Bool
	slot       transport.Slot
}

func (s *session) SetLastWill(w transport.Will) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.will = &w
}

func (s *session) options(opts transport.ConnectOptions) *mqtt.ClientOptions {
	co := mqtt.NewClientOptions().
		AddBroker(opts.URL("tcp", "ssl").String()).
		SetClientID(s.identity).
		SetKeepAlive(opts.KeepAlive).
		SetCleanSession(opts.CleanSession).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
			s.handler(transport.Event{Kind: transport.EventPublish, Topic: msg.Topic(), Payload: msg.Payload()})
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			s.handler(transport.Event{Kind: transport.EventConnected})
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.handler(transport.Event{Kind: transport.EventDisconnected, Err: err})
		})
	s.mu.Lock()
	if w := s.will; w != nil {
		co.SetBinaryWill(w.Topic, w.Payload, w.QoS, false)
	}
	s.mu.Unlock()
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	if opts.TLS {
		co.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return co
}

func (s *session) Connect(opts transport.ConnectOptions) error {
	if !s.connecting.CompareAndSwap(false, true) {
		return transport.ErrConnectInProgress
	}
	client := s.newClient(s.options(opts))
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	tok := client.Connect()
	go func() {
		<-tok.Done()
		s.connecting.Store(false)
		if err := tok.Error(); err != nil {
			s.handler(transport.Event{Kind: transport.EventDisconnected, Err: fmt.Errorf("mqtt3 connect: %w", err)})
		}
	}()
	return nil
}

// open returns the client if its connection is up.
func (s *session) open() mqtt.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || !s.client.IsConnectionOpen() {
		return nil
	}
	return s.client
}

func (s *session) Subscribe(topic string, qos byte) error {
	c := s.open()
	if c == nil {
		return transport.ErrNotConnected
	}
	tok := c.Subscribe(topic, qos, nil)
	go func() {
		<-tok.Done()
		ev := transport.Event{Kind: transport.EventSubAck, Topic: topic}
		if err := tok.Error(); err != nil {
			ev.Err = err
		} else if st, ok := tok.(*mqtt.SubscribeToken); ok {
			if code, found := st.Result()[topic]; found && code >= subscribeRefused {
				ev.Err = fmt.Errorf("broker refused subscription to %q (code %#x)", topic, code)
			}
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
	tok := c.Publish(topic, qos, retain, payload)
	go func() {
		<-tok.Done()
		s.slot.Release()
		if err := tok.Error(); err != nil {
			s.logger.Warn("mqtt3 publish failed", "topic", topic, "err", err)
		}
	}()
	return nil
}

func (s *session) Disconnect() {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()
	if c != nil && c.IsConnected() {
		c.Disconnect(uint(quiesce / time.Millisecond))
	}
}
