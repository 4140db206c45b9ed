package chanio

import (
	"errors"
	"io"
	"net"
	"testing"
)

func TestDialAndAccept(t *testing.T) {
	network := NewNetwork()
	listener := network.Listen()
	defer listener.Close()

	done := make(chan string)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			done <- err.Error()
			return
		}
		defer conn.Close()
		b := make([]byte, 5)
		io.ReadFull(conn, b)
		conn.Write([]byte("pong"))
		done <- string(b) + " from " + conn.RemoteAddr().String()
	}()

	conn, err := network.Dial(listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("ping!"))
	b := make([]byte, 4)
	if _, err := io.ReadFull(conn, b); err != nil || string(b) != "pong" {
		t.Fatalf("read %q %v", b, err)
	}
	if got := <-done; got != "ping! from "+conn.LocalAddr().String() {
		t.Fatalf("server saw %q", got)
	}
}

func TestClosedListener(t *testing.T) {
	network := NewNetwork()
	listener := network.Listen()
	addr := listener.Addr().String()
	listener.Close()

	if _, err := listener.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("accept after close: %v", err)
	}
	if _, err := network.Dial(addr); err == nil {
		t.Fatal("dialed a closed listener")
	}
	if _, err := network.Dial("[::chanio]:999"); err == nil {
		t.Fatal("dialed an unknown address")
	}
}
