package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// PortPair is the localhost UDP contract with one wfb process pair:
// payloads written to tx_port enter the radio, payloads leaving the radio
// arrive on rx_port.
type PortPair struct {
	TxPort int `yaml:"tx_port"`
	RxPort int `yaml:"rx_port"`
}

// ChannelConfig assigns one logical stream to its radio parameters on both
// sides of a relay. Non-relay processes only use side A.
type ChannelConfig struct {
	ID        int      `yaml:"id"`
	Kind      string   `yaml:"kind"`      // video, audio, heartbeat, telemetry
	Direction string   `yaml:"direction"` // uplink, downlink, bidirectional
	A         PortPair `yaml:"a"`
	B         PortPair `yaml:"b"`
}

// RadioConfig describes one physical radio interface and its wfb link.
type RadioConfig struct {
	Interface string `yaml:"interface"`
	LinkID    int    `yaml:"link_id"`
	KeyPath   string `yaml:"key_path"`
	FECK      int    `yaml:"fec_k"`
	FECN      int    `yaml:"fec_n"`
}

type Config struct {
	Node struct {
		ID   string `yaml:"id"`
		Role string `yaml:"role"`
	} `yaml:"node"`

	Channels []ChannelConfig `yaml:"channels"`

	RadioA RadioConfig `yaml:"radio_a"`
	RadioB RadioConfig `yaml:"radio_b"`

	Heartbeat struct {
		BeatInterval    time.Duration `yaml:"beat_interval"`
		MissedThreshold int           `yaml:"missed_threshold"`
		LostThreshold   int           `yaml:"lost_threshold"`
	} `yaml:"heartbeat"`

	Quality struct {
		SampleInterval time.Duration `yaml:"sample_interval"`
		RSSIAlpha      float64       `yaml:"rssi_alpha"`
		LossWindow     int           `yaml:"loss_window"`
	} `yaml:"quality"`

	Relay struct {
		ReportInterval time.Duration `yaml:"report_interval"`
		ReportTarget   string        `yaml:"report_target"` // console UDP addr
		PeerA          string        `yaml:"peer_a"`        // endpoint id heard on radio A
		PeerB          string        `yaml:"peer_b"`        // endpoint id heard on radio B
		LaunchWFB      bool          `yaml:"launch_wfb"`
	} `yaml:"relay"`

	Console struct {
		Address         string        `yaml:"address"`
		ReportAddress   string        `yaml:"report_address"` // UDP listen addr
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"console"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		OperatorSecret string        `yaml:"operator_secret"`
		TokenTTL       time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

var validKinds = map[string]bool{
	"video":     true,
	"audio":     true,
	"heartbeat": true,
	"telemetry": true,
}

var validDirections = map[string]bool{
	"uplink":        true,
	"downlink":      true,
	"bidirectional": true,
}

// Validate checks that configuration values are within acceptable ranges.
// Channel misconfiguration is fatal at startup: a duplicate id or an
// unknown media kind would cause silent cross-talk on the radio side.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id must not be empty")
	}
	switch c.Node.Role {
	case "user-unit", "relay-node", "server":
	default:
		return fmt.Errorf("node.role must be one of user-unit, relay-node, server")
	}

	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel must be configured")
	}
	seen := make(map[int]string)
	for _, ch := range c.Channels {
		if ch.ID < 0 || ch.ID > 255 {
			return fmt.Errorf("channel id %d out of range 0..255", ch.ID)
		}
		if prev, dup := seen[ch.ID]; dup {
			return fmt.Errorf("duplicate channel id %d (%s and %s)", ch.ID, prev, ch.Kind)
		}
		seen[ch.ID] = ch.Kind
		if !validKinds[ch.Kind] {
			return fmt.Errorf("channel %d: unknown media kind %q", ch.ID, ch.Kind)
		}
		if !validDirections[ch.Direction] {
			return fmt.Errorf("channel %d: unknown direction %q", ch.ID, ch.Direction)
		}
	}

	if c.Heartbeat.BeatInterval <= 0 {
		return fmt.Errorf("heartbeat.beat_interval must be > 0")
	}
	if c.Heartbeat.MissedThreshold <= 0 {
		return fmt.Errorf("heartbeat.missed_threshold must be > 0")
	}
	if c.Heartbeat.LostThreshold <= 0 {
		return fmt.Errorf("heartbeat.lost_threshold must be > 0")
	}

	if c.Quality.SampleInterval <= 0 {
		return fmt.Errorf("quality.sample_interval must be > 0")
	}
	if c.Quality.RSSIAlpha <= 0 || c.Quality.RSSIAlpha > 1 {
		return fmt.Errorf("quality.rssi_alpha must be in (0, 1]")
	}
	if c.Quality.LossWindow <= 0 {
		return fmt.Errorf("quality.loss_window must be > 0")
	}

	if c.Node.Role == "relay-node" {
		if c.Relay.ReportInterval <= 0 {
			return fmt.Errorf("relay.report_interval must be > 0")
		}
		if c.Relay.ReportTarget == "" {
			return fmt.Errorf("relay.report_target must not be empty on a relay node")
		}
		if c.Relay.PeerA == "" || c.Relay.PeerB == "" {
			return fmt.Errorf("relay.peer_a and relay.peer_b must name the neighbor endpoints")
		}
	}

	if c.Node.Role == "server" {
		if c.Console.Address == "" {
			return fmt.Errorf("console.address must not be empty")
		}
		if c.Console.ReportAddress == "" {
			return fmt.Errorf("console.report_address must not be empty")
		}
		if c.Console.ReadTimeout <= 0 || c.Console.WriteTimeout <= 0 || c.Console.ShutdownTimeout <= 0 {
			return fmt.Errorf("console timeouts must be > 0")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty")
		}
		if c.Auth.OperatorSecret == "" {
			return fmt.Errorf("auth.operator_secret must not be empty")
		}
		if c.Auth.TokenTTL <= 0 {
			return fmt.Errorf("auth.token_ttl must be > 0")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with the deployment's fixed channel
// plan and sane defaults for everything else.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Node.ID = "node-0"
	cfg.Node.Role = "server"

	cfg.Channels = []ChannelConfig{
		{ID: 0, Kind: "video", Direction: "downlink", A: PortPair{TxPort: 5601, RxPort: 5600}, B: PortPair{TxPort: 5603, RxPort: 5602}},
		{ID: 49, Kind: "audio", Direction: "uplink", A: PortPair{TxPort: 7001, RxPort: 7003}, B: PortPair{TxPort: 7005, RxPort: 7004}},
		{ID: 177, Kind: "audio", Direction: "downlink", A: PortPair{TxPort: 7002, RxPort: 7006}, B: PortPair{TxPort: 7008, RxPort: 7007}},
		{ID: 10, Kind: "heartbeat", Direction: "uplink", A: PortPair{TxPort: 6011, RxPort: 6012}, B: PortPair{TxPort: 6013, RxPort: 6014}},
		{ID: 20, Kind: "telemetry", Direction: "uplink", A: PortPair{TxPort: 6021, RxPort: 6022}, B: PortPair{TxPort: 6023, RxPort: 6024}},
	}

	cfg.RadioA = RadioConfig{Interface: "wlan0", LinkID: 7669206, KeyPath: "/etc/drone.key", FECK: 2, FECN: 5}
	cfg.RadioB = RadioConfig{Interface: "wlan1", LinkID: 7669206, KeyPath: "/etc/gs.key", FECK: 2, FECN: 5}

	cfg.Heartbeat.BeatInterval = time.Second
	cfg.Heartbeat.MissedThreshold = 3
	cfg.Heartbeat.LostThreshold = 7

	cfg.Quality.SampleInterval = time.Second
	cfg.Quality.RSSIAlpha = 0.3
	cfg.Quality.LossWindow = 50

	cfg.Relay.ReportInterval = 2 * time.Second
	cfg.Relay.ReportTarget = "127.0.0.1:6010"
	cfg.Relay.PeerA = "drone"
	cfg.Relay.PeerB = "ground"
	cfg.Relay.LaunchWFB = false

	cfg.Console.Address = ":8080"
	cfg.Console.ReportAddress = ":6010"
	cfg.Console.ReadTimeout = 30 * time.Second
	cfg.Console.WriteTimeout = 30 * time.Second
	cfg.Console.ShutdownTimeout = 30 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.OperatorSecret = "change-me-in-production"
	cfg.Auth.TokenTTL = 12 * time.Hour

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("EMBERLINK_NODE_ID"); id != "" {
		c.Node.ID = id
	}
	if role := os.Getenv("EMBERLINK_NODE_ROLE"); role != "" {
		c.Node.Role = role
	}
	if addr := os.Getenv("EMBERLINK_CONSOLE_ADDRESS"); addr != "" {
		c.Console.Address = addr
	}
	if addr := os.Getenv("EMBERLINK_REPORT_TARGET"); addr != "" {
		c.Relay.ReportTarget = addr
	}
	if level := os.Getenv("EMBERLINK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("EMBERLINK_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("EMBERLINK_OPERATOR_SECRET"); secret != "" {
		c.Auth.OperatorSecret = secret
	}
}
