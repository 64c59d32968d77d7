// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
	"github.com/RickyDenton/SafeTunnels/internal/transport"
)

// Broker protocol levels.
const (
	ProtocolV311 = "3.1.1"
	ProtocolV5   = "5"
)

// NodeConfig identifies the sensor.
type NodeConfig struct {
	// ID overrides the MAC-derived identity.
	ID      string `yaml:"id"`
	DataDir string `yaml:"data_dir"`
}

// BrokerConfig locates the MQTT broker.
type BrokerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Protocol         string        `yaml:"protocol"`
	TLS              bool          `yaml:"tls"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	MaxPublishPeriod time.Duration `yaml:"max_publish_period"`
}

// KeepAlive is the MQTT keepalive requested from the broker.
func (b BrokerConfig) KeepAlive() time.Duration { return 4 * b.MaxPublishPeriod }

// MaxInactivity is how long an unchanged quantity may go unpublished.
func (b BrokerConfig) MaxInactivity() time.Duration { return b.MaxPublishPeriod * 5 / 2 }

// ConnectOptions converts the section into transport options.
func (b BrokerConfig) ConnectOptions() transport.ConnectOptions {
	return transport.ConnectOptions{
		Host:         b.Host,
		Port:         b.Port,
		KeepAlive:    b.KeepAlive(),
		CleanSession: true,
		TLS:          b.TLS,
		Username:     b.Username,
		Password:     b.Password,
	}
}

// TopicsConfig names the MQTT topics.
type TopicsConfig struct {
	// Namespace prefixes the quantity topics.
	Namespace   string `yaml:"namespace"`
	Correlation string `yaml:"correlation"`
	Errors      string `yaml:"errors"`
}

// TimingConfig paces the connectivity state machine.
type TimingConfig struct {
	Tick            time.Duration `yaml:"tick"`
	OfflineLogEvery int           `yaml:"offline_log_every"`
}

// SamplingConfig schedules quantity sampling. With a non-zero SharedPeriod
// every quantity is sampled once per period, staggered evenly after
// InitialDelay; otherwise each quantity uses its own Period.
type SamplingConfig struct {
	SharedPeriod time.Duration `yaml:"shared_period"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// QuantityConfig describes a simulated quantity.
type QuantityConfig struct {
	Name          string        `yaml:"name"`
	Min           uint          `yaml:"min"`
	Max           uint          `yaml:"max"`
	BaseMaxChange uint          `yaml:"base_max_change"`
	Period        time.Duration `yaml:"period"`
}

// Spec converts the entry to a telemetry.Spec.
func (q QuantityConfig) Spec() telemetry.Spec {
	return telemetry.Spec{Name: q.Name, Min: q.Min, Max: q.Max, BaseMaxChange: q.BaseMaxChange}
}

// SimulatorConfig tunes the random walk.
type SimulatorConfig struct {
	EqPointMin        uint    `yaml:"eq_point_min"`
	EqPointMax        uint    `yaml:"eq_point_max"`
	EqPointMaxChange  uint    `yaml:"eq_point_max_change"`
	CorrelationWeight float64 `yaml:"correlation_weight"`
	ProbSame          uint    `yaml:"prob_same"`
	ProbDecrement     uint    `yaml:"prob_decrement"`
	ProbIncrement     uint    `yaml:"prob_increment"`
}

// Params converts the section to telemetry.Params.
func (s SimulatorConfig) Params() telemetry.Params {
	return telemetry.Params{
		EqPointMin:        s.EqPointMin,
		EqPointMax:        s.EqPointMax,
		EqPointMaxChange:  s.EqPointMaxChange,
		CorrelationWeight: s.CorrelationWeight,
		ProbSame:          s.ProbSame,
		ProbDecrement:     s.ProbDecrement,
		ProbIncrement:     s.ProbIncrement,
	}
}

// NetworkConfig selects the reachability check. Mode "probe" inspects the
// host's interfaces and routes; "static" always answers Reachable.
type NetworkConfig struct {
	Mode      string `yaml:"mode"`
	Reachable bool   `yaml:"reachable"`
}

// GreptimeConfig locates the optional GreptimeDB sink.
type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// SinksConfig selects where samples are recorded locally.
type SinksConfig struct {
	// Stdout is one of none, json, color or auto (color on a terminal).
	Stdout   string         `yaml:"stdout"`
	File     string         `yaml:"file"`
	Greptime GreptimeConfig `yaml:"greptime"`
}

// AdminConfig enables the admin HTTP server when Addr is set.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration of a sensor node.
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	Broker     BrokerConfig     `yaml:"broker"`
	Topics     TopicsConfig     `yaml:"topics"`
	Timing     TimingConfig     `yaml:"timing"`
	Sampling   SamplingConfig   `yaml:"sampling"`
	Quantities []QuantityConfig `yaml:"quantities"`
	Simulator  SimulatorConfig  `yaml:"simulator"`
	Network    NetworkConfig    `yaml:"network"`
	Sinks      SinksConfig      `yaml:"sinks"`
	Admin      AdminConfig      `yaml:"admin"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the stock configuration.
func Default() *Config {
	p := telemetry.DefaultParams()
	return &Config{
		Node: NodeConfig{DataDir: "data"},
		Broker: BrokerConfig{
			Host:             "fd00::1",
			Port:             1883,
			Protocol:         ProtocolV311,
			MaxPublishPeriod: 15 * time.Second,
		},
		Topics: TopicsConfig{
			Namespace:   "SafeTunnels",
			Correlation: "SafeTunnels/avgFanRelSpeed",
			Errors:      "SafeTunnels/sensorsErrors",
		},
		Timing:   TimingConfig{Tick: time.Second, OfflineLogEvery: 30},
		Sampling: SamplingConfig{SharedPeriod: 12 * time.Second, InitialDelay: 5 * time.Second},
		Quantities: []QuantityConfig{
			{Name: "C02", Min: 295, Max: 12370, BaseMaxChange: 250, Period: 16 * time.Second},
			{Name: "temp", Min: 7, Max: 51, BaseMaxChange: 1, Period: 10 * time.Second},
		},
		Simulator: SimulatorConfig{
			EqPointMin:        p.EqPointMin,
			EqPointMax:        p.EqPointMax,
			EqPointMaxChange:  p.EqPointMaxChange,
			CorrelationWeight: p.CorrelationWeight,
			ProbSame:          p.ProbSame,
			ProbDecrement:     p.ProbDecrement,
			ProbIncrement:     p.ProbIncrement,
		},
		Network: NetworkConfig{Mode: "probe"},
		Sinks: SinksConfig{
			Stdout:   "none",
			Greptime: GreptimeConfig{Database: "public", Table: telemetry.SampleTableName},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at configPath, validates it against the CUE
// schema at cueSchemaPath (the embedded schema when empty), and applies it
// over Default. An empty configPath yields the defaults. Environment
// overrides are applied last.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var schema []byte
		if cueSchemaPath != "" {
			if schema, err = os.ReadFile(cueSchemaPath); err != nil {
				return nil, fmt.Errorf("read CUE schema: %w", err)
			}
		}
		if err := ValidateWithCue(configPath, data, schema); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SAFETUNNELS_BROKER"); v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			c.Broker.Host = v
		} else {
			p, err := strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("SAFETUNNELS_BROKER: invalid port %q", port)
			}
			c.Broker.Host, c.Broker.Port = host, p
		}
	}
	if v := os.Getenv("SAFETUNNELS_NODE_ID"); v != "" {
		c.Node.ID = v
	}
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICK_INTERVAL: %w", err)
		}
		c.Timing.Tick = d
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Sinks.Greptime.Endpoint = v
	}
	if v := os.Getenv("GREPTIMEDB_DATABASE"); v != "" {
		c.Sinks.Greptime.Database = v
	}
	if v := os.Getenv("GREPTIMEDB_TABLE"); v != "" {
		c.Sinks.Greptime.Table = v
	}
	return nil
}

// Check validates cross-field constraints the schema cannot express.
func (c *Config) Check() error {
	var errs []error
	if c.Broker.Protocol != ProtocolV311 && c.Broker.Protocol != ProtocolV5 {
		errs = append(errs, fmt.Errorf("broker.protocol %q: want %q or %q", c.Broker.Protocol, ProtocolV311, ProtocolV5))
	}
	if c.Broker.MaxPublishPeriod < time.Second {
		errs = append(errs, fmt.Errorf("broker.max_publish_period %s: want at least 1s", c.Broker.MaxPublishPeriod))
	}
	if c.Timing.Tick <= 0 {
		errs = append(errs, fmt.Errorf("timing.tick must be positive"))
	}
	if len(c.Quantities) == 0 {
		errs = append(errs, errors.New("at least one quantity is required"))
	}
	seen := make(map[string]bool)
	for _, q := range c.Quantities {
		if q.Min >= q.Max {
			errs = append(errs, fmt.Errorf("quantity %q: min %d must be below max %d", q.Name, q.Min, q.Max))
		}
		if q.BaseMaxChange == 0 {
			errs = append(errs, fmt.Errorf("quantity %q: base_max_change must be at least 1", q.Name))
		}
		if seen[q.Name] {
			errs = append(errs, fmt.Errorf("quantity %q declared twice", q.Name))
		}
		seen[q.Name] = true
	}
	if err := c.Simulator.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("simulator: %w", err))
	}
	return errors.Join(errs...)
}
