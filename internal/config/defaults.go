package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultEndpoint           = "wss://broadcastlv.chat.bilibili.com/sub"
	DefaultEventBuffer        = 64
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultReconnectBaseDelay = 10 * time.Second
	DefaultReconnectMaxDelay  = 300 * time.Second
	DefaultStableReset        = 30 * time.Minute
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *FeedConfig) applyDefaults() {
	// Room defaults
	if len(c.Room.Endpoints) == 0 {
		c.Room.Endpoints = []string{DefaultEndpoint}
	}

	// Connection defaults
	if c.Connection.EventBuffer == 0 {
		c.Connection.EventBuffer = DefaultEventBuffer
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.StableReset == 0 {
		c.Connection.StableReset = DefaultStableReset
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
