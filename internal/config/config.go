package config

import "time"

// FeedConfig is the root configuration for a feed process.
type FeedConfig struct {
	Room       RoomConfig       `yaml:"room"`
	Connection ConnectionConfig `yaml:"connection"`
	Log        LogConfig        `yaml:"log"`
}

// RoomConfig identifies the live room to follow and how to reach it.
type RoomConfig struct {
	ID        uint64   `yaml:"id"`
	UID       uint64   `yaml:"uid"`       // 0 means anonymous
	Key       string   `yaml:"key"`       // session token presented at login
	Endpoints []string `yaml:"endpoints"` // tried in order on every attempt
}

// ConnectionConfig holds session transport and reconnection settings.
type ConnectionConfig struct {
	EventBuffer        int           `yaml:"event_buffer"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	StableReset        time.Duration `yaml:"stable_reset"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
