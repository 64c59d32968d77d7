package nodeid

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestFromMAC(t *testing.T) {
	mac, _ := net.ParseMAC("00:12:4b:00:06:0d:b2:1a")
	ifaces := func() ([]net.Interface, error) {
		return []net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
			{Name: "tun0", Flags: net.FlagUp},
			{Name: "wpan0", Flags: 0, HardwareAddr: net.HardwareAddr{1, 2, 3, 4, 5, 6}},
			{Name: "wpan1", Flags: net.FlagUp, HardwareAddr: mac},
		}, nil
	}
	id, err := FromMAC(ifaces)
	if err != nil {
		t.Fatal(err)
	}
	if id != "00:12:4b:00:06:0d:b2:1a" {
		t.Fatalf("got %q", id)
	}
}

func TestFromMACNone(t *testing.T) {
	_, err := FromMAC(func() ([]net.Interface, error) {
		return []net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}}, nil
	})
	if !errors.Is(err, ErrNoHardwareAddr) {
		t.Fatalf("expected ErrNoHardwareAddr, got %v", err)
	}
}

func TestLoadOrCreatePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	first, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := uuid.Parse(first)
	if err != nil || parsed.Version() != 7 {
		t.Fatalf("expected a UUIDv7, got %q (%v)", first, err)
	}
	second, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("id changed across loads: %s != %s", first, second)
	}
}

func TestLoadOrCreateReadsExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, idFile), []byte("sensor-42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := LoadOrCreate(dir)
	if err != nil || id != "sensor-42" {
		t.Fatalf("got %q, %v", id, err)
	}
}

func TestResolvePrefersConfigured(t *testing.T) {
	id, err := Resolve("configured", t.TempDir())
	if err != nil || id != "configured" {
		t.Fatalf("got %q, %v", id, err)
	}
}
