package util

import (
	"log"
	"net"
)

// Listen opens a TCP listener or exits. Only used at process startup.
func Listen(addr string) net.Listener {
	sock, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalln("Listen on", addr, "->", err)
	}
	return sock
}
