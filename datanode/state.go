package datanode

import (
	"log"
	"sort"
	"sync"
	"time"

	. "github.com/tali0517/ST0263-p1/common"
)

type DataNodeState struct {
	Addr          string
	LeaderAddress string
	Network       NetworkAdapter
	Debug         bool
	Store         FileStore
	Catalog       *BlockCatalog
	Manager       FileIntents

	blockSize         int
	chunkSize         int
	capacity          int64
	heartbeatInterval time.Duration
	integrityInterval time.Duration

	mutex sync.Mutex
	// Name given by the MetaDataNode, empty until registered.
	name string
	// Configured and discovered partners, self excluded.
	partners map[string]bool
	pusher   BlockPusher
}

func newState(conf Config) *DataNodeState {
	self := &DataNodeState{
		Addr:              conf.Addr,
		LeaderAddress:     conf.LeaderAddress,
		Network:           conf.Network,
		Debug:             conf.Debug,
		Store:             FileStore{conf.DataDir},
		blockSize:         conf.BlockSize,
		chunkSize:         conf.ChunkSize,
		capacity:          conf.Capacity,
		heartbeatInterval: conf.HeartbeatInterval,
		integrityInterval: conf.IntegrityInterval,
		partners:          map[string]bool{},
	}
	self.pusher = &rpcPusher{conf.Network, conf.Debug}
	self.AddPartners(conf.Partners...)
	return self
}

func (self *DataNodeState) AddPartners(addrs ...string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	for _, addr := range addrs {
		if addr == "" || addr == self.Addr || self.partners[addr] {
			continue
		}
		log.Println("Replication partner:", addr)
		self.partners[addr] = true
	}
}

// Partners is sorted so that partner choice only depends on the set.
func (self *DataNodeState) Partners() []string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	var addrs []string
	for addr := range self.partners {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

func (self *DataNodeState) Name() string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.name
}

func (self *DataNodeState) setName(name string) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.name = name
}

// AvailableSpace is what is left of the configured capacity, or zero when
// no capacity was configured.
func (self *DataNodeState) AvailableSpace() int64 {
	if self.capacity <= 0 {
		return 0
	}
	used, err := self.Store.UsedSpace()
	if err != nil {
		log.Println("Computing used space:", err)
		return 0
	}
	if used >= self.capacity {
		return 0
	}
	return self.capacity - used
}
