package metadatanode

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/pkg/namesgenerator"

	. "github.com/tali0517/ST0263-p1/common"
)

// How the registry sees a DataNode. Unknown and Evicted nodes have no record.
type NodeState int

const (
	Unknown NodeState = iota
	Registered
	// Silent past the threshold but not swept yet. Already hidden from reads.
	Stale
)

func (self NodeState) String() string {
	switch self {
	case Registered:
		return "Registered"
	case Stale:
		return "Stale"
	default:
		return "Unknown"
	}
}

type NodeRecord struct {
	Address string
	// Only used in logs.
	Name            string
	Inventory       map[string]bool
	Load            int
	LastHeartbeatAt time.Time
	// Reported by the node. Not used for placement.
	AvailableSpace int64
}

// Registry is the membership table of the cluster. Every operation, including
// the sweep, holds the one mutex for its whole duration.
type Registry struct {
	mutex     sync.Mutex
	nodes     map[string]*NodeRecord
	threshold time.Duration
	now       func() time.Time
	rng       *rand.Rand
}

func NewRegistry(disconnectThreshold time.Duration) *Registry {
	return &Registry{
		nodes:     map[string]*NodeRecord{},
		threshold: disconnectThreshold,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Register creates or replaces the record for addr. Heartbeats and upload
// notices both land here.
func (self *Registry) Register(addr string, files []string, availableSpace int64) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrBadRequest)
	}
	inventory := make(map[string]bool, len(files))
	for _, f := range files {
		if f != "" {
			inventory[f] = true
		}
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	record, known := self.nodes[addr]
	if !known || self.isStale(record) {
		// A stale node coming back is treated as a rejoin.
		name := strings.Replace(namesgenerator.GetRandomName(0), "_", "-", -1)
		record = &NodeRecord{Address: addr, Name: name}
		self.nodes[addr] = record
		log.Println("DataNode '"+name+"' with", len(inventory), "files registered at", addr)
	}
	record.Inventory = inventory
	record.Load = len(inventory)
	record.LastHeartbeatAt = self.now()
	record.AvailableSpace = availableSpace
	return record.Name, nil
}

func (self *Registry) isStale(record *NodeRecord) bool {
	return self.now().Sub(record.LastHeartbeatAt) > self.threshold
}

// Not concurrency safe, callers hold the mutex.
func (self *Registry) snapshot() []NodeView {
	var nodes []NodeView
	for _, record := range self.nodes {
		if self.isStale(record) {
			continue
		}
		files := make(map[string]bool, len(record.Inventory))
		for f := range record.Inventory {
			files[f] = true
		}
		nodes = append(nodes, NodeView{record.Address, record.Load, files})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Address < nodes[j].Address })
	return nodes
}

// Snapshot copies the live part of the table.
func (self *Registry) Snapshot() []NodeView {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.snapshot()
}

// ResolveDownload names one live node that reports fileName.
func (self *Registry) ResolveDownload(fileName string) (string, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return PickDownload(self.snapshot(), fileName, self.rng)
}

// ResolveUpload names the two least loaded live nodes.
func (self *Registry) ResolveUpload() ([]string, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return PickUpload(self.snapshot(), UploadReplicas, self.rng)
}

func (self *Registry) ListFiles() []string {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return Union(self.snapshot())
}

func (self *Registry) FindFile(fileName string) ([]string, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	holders := Holders(self.snapshot(), fileName)
	if len(holders) == 0 {
		return nil, ErrNotFound
	}
	return holders, nil
}

func (self *Registry) State(addr string) NodeState {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	record, ok := self.nodes[addr]
	switch {
	case !ok:
		return Unknown
	case self.isStale(record):
		return Stale
	default:
		return Registered
	}
}

// Len counts records, stale ones included.
func (self *Registry) Len() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.nodes)
}

// Sweep forgets every node silent for longer than the threshold and returns
// their addresses.
func (self *Registry) Sweep() []string {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	var evicted []string
	for addr, record := range self.nodes {
		if self.isStale(record) {
			log.Println("Forgetting absent node '"+record.Name+"' at", addr, "with", record.Load, "files")
			delete(self.nodes, addr)
			evicted = append(evicted, addr)
		}
	}
	sort.Strings(evicted)
	return evicted
}
