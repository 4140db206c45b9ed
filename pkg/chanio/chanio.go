// In-memory network for tests. Connections are synchronous pipes.
package chanio

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

type Network struct {
	lock      sync.Mutex
	listeners map[string]*ChanListener
	sockID    uint64
}

const networkName = "[::chanio]"

func NewNetwork() *Network {
	return &Network{listeners: map[string]*ChanListener{}, sockID: 1}
}

func (self *Network) Listen() net.Listener {
	self.lock.Lock()
	defer self.lock.Unlock()
	addr := fmt.Sprintf("%s:%d", networkName, self.sockID)
	self.sockID++
	listener := &ChanListener{
		network:  self,
		addr:     addr,
		incoming: make(chan net.Conn),
		closed:   make(chan struct{}),
	}
	self.listeners[addr] = listener
	return listener
}

func (self *Network) Dial(addr string) (net.Conn, error) {
	self.lock.Lock()
	listener, present := self.listeners[addr]
	clientAddr := fmt.Sprintf("%s:%d", networkName, self.sockID)
	self.sockID++
	self.lock.Unlock()
	if !present {
		return nil, errors.New("chanio: address not found: " + addr)
	}

	client, server := net.Pipe()
	select {
	case listener.incoming <- &ChanConn{server, ChanAddr{addr}, ChanAddr{clientAddr}}:
		return &ChanConn{client, ChanAddr{clientAddr}, ChanAddr{addr}}, nil
	case <-listener.closed:
		client.Close()
		server.Close()
		return nil, errors.New("chanio: connection refused: " + addr)
	}
}

type ChanListener struct {
	network   *Network
	addr      string
	incoming  chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

func (self *ChanListener) Accept() (net.Conn, error) {
	select {
	case conn := <-self.incoming:
		return conn, nil
	case <-self.closed:
		return nil, net.ErrClosed
	}
}

func (self *ChanListener) Close() error {
	self.network.lock.Lock()
	defer self.network.lock.Unlock()
	delete(self.network.listeners, self.addr)
	self.closeOnce.Do(func() { close(self.closed) })
	return nil
}

func (self *ChanListener) Addr() net.Addr {
	return ChanAddr{self.addr}
}

// A pipe end that reports chanio addresses.
type ChanConn struct {
	net.Conn
	localAddr  ChanAddr
	remoteAddr ChanAddr
}

func (self *ChanConn) LocalAddr() net.Addr {
	return self.localAddr
}

func (self *ChanConn) RemoteAddr() net.Addr {
	return self.remoteAddr
}

type ChanAddr struct {
	addr string
}

func (self ChanAddr) Network() string {
	return networkName
}

func (self ChanAddr) String() string {
	return self.addr
}
