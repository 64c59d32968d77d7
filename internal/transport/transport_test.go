package transport

import (
	"testing"
	"time"
)

func TestConnectOptionsURL(t *testing.T) {
	opts := ConnectOptions{Host: "fd00::1", Port: 1883, KeepAlive: time.Minute}
	if got := opts.URL("tcp", "ssl").String(); got != "tcp://[fd00::1]:1883" {
		t.Fatalf("unexpected url %q", got)
	}
	opts.TLS = true
	opts.Host = "broker.local"
	opts.Port = 8883
	if got := opts.URL("tcp", "ssl").String(); got != "ssl://broker.local:8883" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestSlot(t *testing.T) {
	var s Slot
	if !s.Acquire() {
		t.Fatal("first acquire should succeed")
	}
	if s.Acquire() {
		t.Fatal("second acquire should fail while held")
	}
	s.Release()
	if !s.Acquire() {
		t.Fatal("acquire after release should succeed")
	}
}

func TestEventKindString(t *testing.T) {
	if EventSubAck.String() != "suback" {
		t.Fatalf("got %q", EventSubAck.String())
	}
	if EventKind(42).String() != "unknown(42)" {
		t.Fatalf("got %q", EventKind(42).String())
	}
}
