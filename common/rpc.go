package common

import (
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/tali0517/ST0263-p1/util"
)

// Lets tests swap TCP for pkg/chanio.
type NetworkAdapter interface {
	Dial(string) (net.Conn, error)
}

type TCPNetwork struct{}

func (*TCPNetwork) Dial(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}

// NewRPCClient dials addr and speaks jsonrpc over the connection. A dial
// failure is reported as ErrUnavailable.
func NewRPCClient(network NetworkAdapter, addr string, debug bool) (*rpc.Client, error) {
	conn, err := network.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, addr, err)
	}
	codec := jsonrpc.NewClientCodec(conn)
	if debug {
		codec = util.LoggingClientCodec(conn.RemoteAddr().String(), codec)
	}
	return rpc.NewClientWithCodec(codec), nil
}

// Registers the services for one connection. The returned func, if any, runs
// once the connection is gone.
type SessionFactory func(server *rpc.Server, conn net.Conn) func()

// Serve accepts connections until sock is closed. Every connection gets its
// own rpc.Server so that per-connection sessions can keep state.
func Serve(sock net.Listener, debug bool, sessions SessionFactory) {
	for {
		conn, err := sock.Accept()
		if err != nil {
			log.Println("Stopped accepting on", sock.Addr(), "->", err)
			return
		}
		go serveConn(conn, debug, sessions)
	}
}

func serveConn(conn net.Conn, debug bool, sessions SessionFactory) {
	defer conn.Close()

	server := rpc.NewServer()
	cleanup := sessions(server, conn)
	if cleanup != nil {
		defer cleanup()
	}

	codec := jsonrpc.NewServerCodec(conn)
	if debug {
		codec = util.LoggingServerCodec(conn.RemoteAddr().String(), codec)
	}
	server.ServeCodec(codec)
}
