package datanode

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"

	. "github.com/tali0517/ST0263-p1/common"
)

const mib = 1024 * 1024

type offline struct{}

func (offline) Dial(addr string) (net.Conn, error) {
	return nil, errors.New("offline")
}

type push struct {
	addr  string
	block Block
}

type recordingPusher struct {
	mutex  sync.Mutex
	pushes []push
	down   map[string]bool
}

func (self *recordingPusher) PushBlock(addr string, block Block) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.down[addr] {
		return ErrUnavailable
	}
	self.pushes = append(self.pushes, push{addr, block})
	return nil
}

func newTestState(t *testing.T, partners ...string) (*DataNodeState, *recordingPusher) {
	conf := Config{
		DataDir:       t.TempDir(),
		Addr:          "self:5000",
		LeaderAddress: "leader:5000",
		Network:       offline{},
		Partners:      partners,
		BlockSize:     mib,
		CatalogFile:   ":memory:",
	}
	conf.setDefaults()
	self := newState(conf)
	if err := self.Store.Init(); err != nil {
		t.Fatal(err)
	}
	catalog, err := OpenCatalog(conf.CatalogFile)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { catalog.Close() })
	self.Catalog = catalog
	pusher := &recordingPusher{down: map[string]bool{}}
	self.pusher = pusher
	return self, pusher
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 253)
	}
	return b
}

func storeFile(t *testing.T, dn *DataNodeState, name string, data []byte) {
	pending, err := dn.Store.CreateTemp(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pending.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := pending.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestReplicateThreeBlocks(t *testing.T) {
	dn, pusher := newTestState(t, "p3:1", "p1:1", "p2:1", "self:5000", "p1:1")
	data := pattern(2*mib + mib/2)
	storeFile(t, dn, "big.bin", data)

	pushed, err := dn.ReplicateFile("big.bin")
	if err != nil {
		t.Fatal(err)
	}
	if pushed != 6 || len(pusher.pushes) != 6 {
		t.Fatalf("%d pushes, %d recorded", pushed, len(pusher.pushes))
	}

	partners := []string{"p1:1", "p2:1", "p3:1"}
	var rebuilt []byte
	for i := 0; i < 3; i++ {
		leader, follower := pusher.pushes[2*i], pusher.pushes[2*i+1]
		if leader.block.Index != i || follower.block.Index != i {
			t.Fatalf("block %d pushed as %d and %d", i, leader.block.Index, follower.block.Index)
		}
		if leader.block.Role != Leader || follower.block.Role != Follower {
			t.Fatalf("block %d roles %s %s", i, leader.block.Role, follower.block.Role)
		}
		if leader.addr != partners[i%3] || follower.addr != partners[(i+1)%3] {
			t.Fatalf("block %d went to %s and %s", i, leader.addr, follower.addr)
		}
		if !bytes.Equal(leader.block.Payload, follower.block.Payload) {
			t.Fatalf("block %d differs between replicas", i)
		}
		rebuilt = append(rebuilt, leader.block.Payload...)
	}
	if len(pusher.pushes[4].block.Payload) != mib/2 {
		t.Fatalf("last block has %d bytes", len(pusher.pushes[4].block.Payload))
	}
	if !bytes.Equal(rebuilt, data) {
		t.Fatal("blocks do not add up to the file")
	}
}

func TestReplicationNeedsTwoPartners(t *testing.T) {
	dn, pusher := newTestState(t, "p1:1", "self:5000")
	storeFile(t, dn, "f", []byte("abc"))
	pushed, err := dn.ReplicateFile("f")
	if err != nil || pushed != 0 || len(pusher.pushes) != 0 {
		t.Fatalf("pushed %d, %v", pushed, err)
	}
}

func TestReplicationSurvivesDeadPartner(t *testing.T) {
	dn, pusher := newTestState(t, "p1:1", "p2:1")
	pusher.down["p1:1"] = true
	storeFile(t, dn, "f", pattern(mib+1))
	pushed, err := dn.ReplicateFile("f")
	if err != nil {
		t.Fatal(err)
	}
	if pushed != 2 {
		t.Fatalf("pushed %d", pushed)
	}
	for _, p := range pusher.pushes {
		if p.addr != "p2:1" {
			t.Fatalf("recorded push to %s", p.addr)
		}
	}
}

func TestChoosePartnersIsDeterministic(t *testing.T) {
	partners := []string{"a", "b", "c", "d"}
	for i := 0; i < 10; i++ {
		l1, f1, ok := ChoosePartners(partners, i)
		l2, f2, _ := ChoosePartners(partners, i)
		if !ok || l1 != l2 || f1 != f2 || l1 == f1 {
			t.Fatalf("index %d: %s/%s then %s/%s", i, l1, f1, l2, f2)
		}
	}
	if _, _, ok := ChoosePartners([]string{"a"}, 0); ok {
		t.Fatal("one partner accepted")
	}
}

func TestStoreBlockAndIntegrity(t *testing.T) {
	dn, _ := newTestState(t)
	good := Block{FileName: "f", Index: 0, Payload: []byte("good"), Role: Leader}
	bad := Block{FileName: "f", Index: 1, Payload: []byte("soon corrupt"), Role: Follower}
	for _, b := range []Block{good, bad} {
		if err := dn.StoreBlock(b); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := dn.Catalog.ListFile("f")
	if err != nil || len(entries) != 2 {
		t.Fatalf("catalog %v %v", entries, err)
	}

	if dropped := dn.CheckIntegrity(); len(dropped) != 0 {
		t.Fatalf("dropped healthy blocks %v", dropped)
	}
	if _, err := dn.Store.WriteBlock(BlockName("f", 1), []byte("tampered")); err != nil {
		t.Fatal(err)
	}
	dropped := dn.CheckIntegrity()
	if len(dropped) != 1 || dropped[0] != "f_block_1" {
		t.Fatalf("dropped %v", dropped)
	}
	if _, err := dn.Catalog.Get("f", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt block still catalogued: %v", err)
	}
}

func TestStoreBlockRejects(t *testing.T) {
	dn, _ := newTestState(t)
	cases := []Block{
		{FileName: "", Index: 0, Role: Leader},
		{FileName: "../etc", Index: 0, Role: Leader},
		{FileName: "f", Index: -1, Role: Leader},
		{FileName: "f", Index: 0, Role: "observer"},
		{FileName: "f", Index: 0, Payload: make([]byte, mib+1), Role: Leader},
	}
	for _, b := range cases {
		if err := dn.StoreBlock(b); StatusOf(err) != StatusBadRequest {
			t.Errorf("%v: got %v", b, err)
		}
	}
}

func TestAvailableSpace(t *testing.T) {
	dn, _ := newTestState(t)
	if dn.AvailableSpace() != 0 {
		t.Fatal("space reported without a capacity")
	}
	dn.capacity = 100
	storeFile(t, dn, "f", make([]byte, 30))
	if got := dn.AvailableSpace(); got != 70 {
		t.Fatalf("available %d", got)
	}
}

func TestPartnerAddress(t *testing.T) {
	cases := []struct{ ip, announced, want string }{
		{"10.0.0.7", "[::]:5001", "10.0.0.7:5001"},
		{"10.0.0.7", ":5001", "10.0.0.7:5001"},
		{"10.0.0.7", "node-b:5001", "node-b:5001"},
		{"10.0.0.7", "garbage", ""},
	}
	for _, c := range cases {
		if got := PartnerAddress(c.ip, c.announced); got != c.want {
			t.Errorf("%s %s: got %q", c.ip, c.announced, got)
		}
	}
}
