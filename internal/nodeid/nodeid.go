// Package nodeid resolves the identity the sensor presents to the broker.
package nodeid

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoHardwareAddr is returned when no interface carries a MAC address.
var ErrNoHardwareAddr = errors.New("no interface with a hardware address")

const idFile = "node_id"

// Resolve returns configured if set, else the MAC address of the primary
// interface, else an identifier persisted in dataDir.
func Resolve(configured, dataDir string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if id, err := FromMAC(net.Interfaces); err == nil {
		return id, nil
	}
	return LoadOrCreate(dataDir)
}

// FromMAC returns the colon-separated hardware address of the first up,
// non-loopback interface listed by ifaces.
func FromMAC(ifaces func() ([]net.Interface, error)) (string, error) {
	list, err := ifaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range list {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String(), nil
	}
	return "", ErrNoHardwareAddr
}

// LoadOrCreate reads the node ID from dataDir, or generates a UUIDv7 and
// persists it if none is stored yet.
func LoadOrCreate(dataDir string) (string, error) {
	path := filepath.Join(dataDir, idFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate node ID: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist node ID to %s: %w", path, err)
	}
	return id.String(), nil
}
