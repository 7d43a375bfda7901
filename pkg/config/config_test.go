package config

import (
	"testing"
)

func relayBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.Node.ID = "relay-1"
	cfg.Node.Role = "relay-node"
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	for _, role := range []string{"user-unit", "relay-node", "server"} {
		cfg := DefaultConfig()
		cfg.Node.Role = role
		if err := cfg.Validate(); err != nil {
			t.Fatalf("defaults must validate for role %s: %v", role, err)
		}
	}
}

func TestDefaultConfig_ChannelPlan(t *testing.T) {
	cfg := DefaultConfig()

	byID := make(map[int]string)
	for _, ch := range cfg.Channels {
		byID[ch.ID] = ch.Kind
	}

	want := map[int]string{
		0:   "video",
		10:  "heartbeat",
		20:  "telemetry",
		49:  "audio",
		177: "audio",
	}
	for id, kind := range want {
		if byID[id] != kind {
			t.Fatalf("channel %d: want kind %s, got %s", id, kind, byID[id])
		}
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty node id",
			mutate: func(c *Config) { c.Node.ID = "" },
		},
		{
			name:   "unknown role",
			mutate: func(c *Config) { c.Node.Role = "spectator" },
		},
		{
			name:   "no channels",
			mutate: func(c *Config) { c.Channels = nil },
		},
		{
			name: "duplicate channel id",
			mutate: func(c *Config) {
				c.Channels = append(c.Channels, ChannelConfig{ID: 0, Kind: "audio", Direction: "uplink"})
			},
		},
		{
			name: "unknown media kind",
			mutate: func(c *Config) {
				c.Channels[0].Kind = "hologram"
			},
		},
		{
			name: "unknown direction",
			mutate: func(c *Config) {
				c.Channels[0].Direction = "sideways"
			},
		},
		{
			name: "channel id out of range",
			mutate: func(c *Config) {
				c.Channels[0].ID = 300
			},
		},
		{
			name:   "zero beat interval",
			mutate: func(c *Config) { c.Heartbeat.BeatInterval = 0 },
		},
		{
			name:   "zero missed threshold",
			mutate: func(c *Config) { c.Heartbeat.MissedThreshold = 0 },
		},
		{
			name:   "alpha above one",
			mutate: func(c *Config) { c.Quality.RSSIAlpha = 1.5 },
		},
		{
			name:   "zero loss window",
			mutate: func(c *Config) { c.Quality.LossWindow = 0 },
		},
		{
			name:   "relay without report target",
			mutate: func(c *Config) { c.Relay.ReportTarget = "" },
		},
		{
			name:   "relay without peers",
			mutate: func(c *Config) { c.Relay.PeerA = "" },
		},
		{
			name:   "empty log level",
			mutate: func(c *Config) { c.Logging.Level = "" },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := relayBaseConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_ServerRequirements(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "missing console address",
			mutate: func(c *Config) { c.Console.Address = "" },
		},
		{
			name:   "missing report address",
			mutate: func(c *Config) { c.Console.ReportAddress = "" },
		},
		{
			name:   "missing jwt secret",
			mutate: func(c *Config) { c.Auth.JWTSecret = "" },
		},
		{
			name:   "missing operator secret",
			mutate: func(c *Config) { c.Auth.OperatorSecret = "" },
		},
		{
			name:   "zero token ttl",
			mutate: func(c *Config) { c.Auth.TokenTTL = 0 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Node.Role = "server"
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	// Relay nodes do not need the console section.
	cfg := relayBaseConfig()
	cfg.Console.Address = ""
	cfg.Auth.JWTSecret = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("console settings must not bind relay nodes: %v", err)
	}
}

func TestValidate_RedisOnlyWhenEnabled(t *testing.T) {
	cfg := relayBaseConfig()
	cfg.Redis.Enabled = false
	cfg.Redis.Address = ""
	cfg.Redis.PoolSize = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled redis must not be validated: %v", err)
	}

	cfg.Redis.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled redis without address must fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EMBERLINK_NODE_ID", "env-node")
	t.Setenv("EMBERLINK_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Node.ID != "env-node" {
		t.Fatalf("want env-node, got %s", cfg.Node.ID)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("want debug, got %s", cfg.Logging.Level)
	}
}
