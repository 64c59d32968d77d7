// Package netcheck decides whether the MQTT broker is worth dialling.
package netcheck

import "net"

// Checker reports the broker reachable once the node holds a global
// unicast address and the OS has a route towards the broker.
type Checker struct {
	target string
	addrs  func() ([]net.Addr, error)
	dial   func(network, address string) (net.Conn, error)
}

// New returns a Checker for the broker at address (host:port).
func New(address string) *Checker {
	return &Checker{target: address, addrs: interfaceAddrs, dial: net.Dial}
}

// Reachable implements connectivity.Reachability.
func (c *Checker) Reachable() bool {
	return c.hasGlobalAddress() && c.hasRoute()
}

func (c *Checker) hasGlobalAddress() bool {
	addrs, err := c.addrs()
	if err != nil {
		return false
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		if ip.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

// hasRoute "connects" a UDP socket, which consults the routing table
// without sending anything.
func (c *Checker) hasRoute() bool {
	conn, err := c.dial("udp", c.target)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// interfaceAddrs returns the addresses of up, non-loopback interfaces.
func interfaceAddrs() ([]net.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, addrs...)
	}
	return out, nil
}

// Static is a fixed answer, for containers and tests.
type Static bool

// Reachable implements connectivity.Reachability.
func (s Static) Reachable() bool { return bool(s) }
