package netcheck

import (
	"errors"
	"net"
	"testing"
)

func ipNet(s string) net.Addr {
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func okDial(network, address string) (net.Conn, error) {
	c1, c2 := net.Pipe()
	_ = c2.Close()
	return c1, nil
}

func TestReachable(t *testing.T) {
	cases := []struct {
		name  string
		addrs []net.Addr
		dial  func(string, string) (net.Conn, error)
		want  bool
	}{
		{"global address and route", []net.Addr{ipNet("fd00::f6ce:3602:c3d4:1/64")}, okDial, true},
		{"link local only", []net.Addr{ipNet("fe80::1/64")}, okDial, false},
		{"no addresses", nil, okDial, false},
		{"no route", []net.Addr{ipNet("192.168.1.20/24")}, func(string, string) (net.Conn, error) {
			return nil, errors.New("connect: network is unreachable")
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Checker{
				target: "[fd00::1]:1883",
				addrs:  func() ([]net.Addr, error) { return tc.addrs, nil },
				dial:   tc.dial,
			}
			if got := c.Reachable(); got != tc.want {
				t.Fatalf("Reachable() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInterfaceError(t *testing.T) {
	c := &Checker{
		target: "[fd00::1]:1883",
		addrs:  func() ([]net.Addr, error) { return nil, errors.New("netlink") },
		dial:   okDial,
	}
	if c.Reachable() {
		t.Fatal("expected unreachable")
	}
}

func TestStatic(t *testing.T) {
	if !Static(true).Reachable() || Static(false).Reachable() {
		t.Fatal("static answer not honoured")
	}
}
