package metadatanode

import (
	"net"
	"time"
)

const (
	DefaultHeartbeatInterval   = 10 * time.Second
	DefaultDisconnectThreshold = 30 * time.Second
)

type Config struct {
	Listener net.Listener
	Debug    bool
	// A DataNode silent for longer than this is forgotten by the next sweep.
	DisconnectThreshold time.Duration
	// Defaults to DefaultHeartbeatInterval.
	SweepInterval time.Duration
}

func (self *Config) setDefaults() {
	if self.DisconnectThreshold <= 0 {
		self.DisconnectThreshold = DefaultDisconnectThreshold
	}
	if self.SweepInterval <= 0 {
		self.SweepInterval = DefaultHeartbeatInterval
	}
}
