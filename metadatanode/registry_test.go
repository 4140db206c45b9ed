package metadatanode

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	. "github.com/tali0517/ST0263-p1/common"
)

type fakeClock struct {
	mutex sync.Mutex
	t     time.Time
}

func (self *fakeClock) Now() time.Time {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.t
}

func (self *fakeClock) Advance(d time.Duration) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.t = self.t.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(30 * time.Second)
	r.now = clock.Now
	r.rng = rand.New(rand.NewSource(1))
	return r, clock
}

func TestRegisterIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry()
	first, err := r.Register("10.0.0.1:5000", []string{"a.txt", "b.txt"}, 100)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Register("10.0.0.1:5000", []string{"a.txt", "b.txt"}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("name changed from %q to %q", first, second)
	}
	if r.Len() != 1 {
		t.Fatalf("got %d records", r.Len())
	}
	if got := r.ListFiles(); !reflect.DeepEqual(got, []string{"a.txt", "b.txt"}) {
		t.Fatalf("files %v", got)
	}
}

func TestRegisterReplacesInventory(t *testing.T) {
	r, _ := newTestRegistry()
	r.Register("n1", []string{"old"}, 0)
	r.Register("n1", []string{"new"}, 0)
	if _, err := r.FindFile("old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old file still listed: %v", err)
	}
	if holders, _ := r.FindFile("new"); !reflect.DeepEqual(holders, []string{"n1"}) {
		t.Fatalf("holders %v", holders)
	}
}

func TestRegisterRejectsEmptyAddress(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Register("", nil, 0)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("got %v", err)
	}
	if StatusOf(err) != StatusBadRequest {
		t.Fatalf("status %d", StatusOf(err))
	}
}

func TestUploadNeedsTwoNodes(t *testing.T) {
	r, _ := newTestRegistry()
	if _, err := r.ResolveUpload(); !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("empty cluster: %v", err)
	}
	r.Register("A", nil, 0)
	_, err := r.ResolveUpload()
	if !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("one node: %v", err)
	}
	if StatusOf(err) != StatusBadRequest {
		t.Fatalf("status %d", StatusOf(err))
	}
}

func TestListAndFindAcrossNodes(t *testing.T) {
	r, _ := newTestRegistry()
	r.Register("A", []string{"x.bin"}, 0)
	r.Register("B", []string{"x.bin", "y.bin"}, 0)
	r.Register("C", nil, 0)

	if got := r.ListFiles(); !reflect.DeepEqual(got, []string{"x.bin", "y.bin"}) {
		t.Fatalf("files %v", got)
	}
	if got, _ := r.FindFile("x.bin"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("holders %v", got)
	}
	for i := 0; i < 20; i++ {
		addr, err := r.ResolveDownload("y.bin")
		if err != nil || addr != "B" {
			t.Fatalf("download from %q: %v", addr, err)
		}
	}
	if _, err := r.ResolveDownload("z.bin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown file: %v", err)
	}
}

func TestSilentNodeIsEvicted(t *testing.T) {
	r, clock := newTestRegistry()
	r.Register("A", []string{"f"}, 0)
	r.Register("B", []string{"f"}, 0)

	clock.Advance(20 * time.Second)
	r.Register("A", []string{"f"}, 0)
	if evicted := r.Sweep(); len(evicted) != 0 {
		t.Fatalf("evicted early: %v", evicted)
	}

	clock.Advance(15 * time.Second)
	if r.State("B") != Stale {
		t.Fatalf("B is %v", r.State("B"))
	}
	if got, _ := r.FindFile("f"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("stale node still served: %v", got)
	}
	if evicted := r.Sweep(); !reflect.DeepEqual(evicted, []string{"B"}) {
		t.Fatalf("evicted %v", evicted)
	}
	if r.State("B") != Unknown || r.State("A") != Registered {
		t.Fatalf("states %v %v", r.State("A"), r.State("B"))
	}
}

func TestHeartbeatExactlyAtThreshold(t *testing.T) {
	r, clock := newTestRegistry()
	r.Register("A", nil, 0)
	clock.Advance(30 * time.Second)
	if r.State("A") != Registered {
		t.Fatal("evicted at the threshold")
	}
	clock.Advance(time.Nanosecond)
	if r.State("A") != Stale {
		t.Fatal("kept past the threshold")
	}
}

func TestEvictedNodeRejoins(t *testing.T) {
	r, clock := newTestRegistry()
	r.Register("A", []string{"f"}, 0)
	clock.Advance(time.Minute)
	r.Sweep()
	if _, err := r.FindFile("f"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	r.Register("A", []string{"f"}, 0)
	if r.State("A") != Registered {
		t.Fatal("rejoin not registered")
	}
}

func TestTwoNodesShareAFile(t *testing.T) {
	r, _ := newTestRegistry()
	r.Register("N1", []string{"a", "b"}, 0)
	r.Register("N2", []string{"b", "c"}, 0)
	if got := r.ListFiles(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("files %v", got)
	}
	if got, _ := r.FindFile("b"); !reflect.DeepEqual(got, []string{"N1", "N2"}) {
		t.Fatalf("holders %v", got)
	}
	addrs, err := r.ResolveUpload()
	if err != nil || len(addrs) != 2 || addrs[0] == addrs[1] {
		t.Fatalf("upload to %v: %v", addrs, err)
	}
}

func TestFilesVanishAfterSilence(t *testing.T) {
	r, clock := newTestRegistry()
	r.Register("N1", []string{"only-here"}, 0)
	r.Register("N2", []string{"elsewhere"}, 0)
	for elapsed := 10 * time.Second; elapsed <= 30*time.Second; elapsed += 10 * time.Second {
		clock.Advance(10 * time.Second)
		r.Register("N2", []string{"elsewhere"}, 0)
	}
	clock.Advance(time.Second)
	r.Sweep()
	if got := r.ListFiles(); !reflect.DeepEqual(got, []string{"elsewhere"}) {
		t.Fatalf("files %v", got)
	}
	if r.Len() != 1 {
		t.Fatalf("%d records", r.Len())
	}
}

func TestMonitorSweepsInBackground(t *testing.T) {
	r, clock := newTestRegistry()
	r.Register("N1", []string{"f"}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Monitor(ctx, time.Millisecond)

	clock.Advance(31 * time.Second)
	deadline := time.Now().Add(5 * time.Second)
	for r.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("monitor never swept")
		}
		time.Sleep(time.Millisecond)
	}
}
