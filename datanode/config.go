// Stores files and replica blocks for the cluster.
package datanode

import (
	"net"
	"path"
	"time"

	. "github.com/tali0517/ST0263-p1/common"
	"github.com/tali0517/ST0263-p1/transfer"
)

type Config struct {
	DataDir  string
	Debug    bool
	Listener net.Listener
	Network  NetworkAdapter
	// Address announced to the MetaDataNode and to partners. Defaults to the
	// listener's address.
	Addr              string
	LeaderAddress     string
	HeartbeatInterval time.Duration
	// Other DataNodes that receive replica blocks.
	Partners []string
	// Find partners on the LAN instead of, or on top of, Partners.
	Discover         bool
	DiscoveryTimeout time.Duration
	BlockSize        int
	ChunkSize        int
	// Bytes. Zero means unknown, and the node reports no available space.
	Capacity          int64
	IntegrityInterval time.Duration
	// Defaults to meta/catalog.db under DataDir. ":memory:" works for tests.
	CatalogFile string
}

func (self *Config) setDefaults() {
	if self.Network == nil {
		self.Network = &TCPNetwork{}
	}
	if self.Addr == "" && self.Listener != nil {
		self.Addr = self.Listener.Addr().String()
	}
	if self.HeartbeatInterval <= 0 {
		self.HeartbeatInterval = 10 * time.Second
	}
	if self.DiscoveryTimeout <= 0 {
		self.DiscoveryTimeout = 3 * time.Second
	}
	if self.BlockSize <= 0 {
		self.BlockSize = transfer.DefaultBlockSize
	}
	if self.ChunkSize <= 0 {
		self.ChunkSize = transfer.DefaultChunkSize
	}
	if self.IntegrityInterval <= 0 {
		self.IntegrityInterval = time.Minute
	}
	if self.CatalogFile == "" {
		self.CatalogFile = path.Join(self.DataDir, "meta", "catalog.db")
	}
}
