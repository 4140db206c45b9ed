package datanode

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/schollz/peerdiscovery"
)

// Discover finds partners on the LAN by multicast until ctx is done. Each
// node announces its RPC address as the payload.
func (self *DataNodeState) Discover(ctx context.Context, timeLimit time.Duration) {
	for ctx.Err() == nil {
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
			case <-time.After(timeLimit):
			}
			close(stop)
		}()
		discoveries, err := peerdiscovery.Discover(peerdiscovery.Settings{
			Limit:     -1,
			TimeLimit: timeLimit,
			Payload:   []byte(self.Addr),
			StopChan:  stop,
		})
		if err != nil {
			log.Println("Discovery error:", err)
			return
		}
		for _, d := range discoveries {
			self.AddPartners(PartnerAddress(d.Address, string(d.Payload)))
		}
	}
}

// PartnerAddress combines the IP a discovery came from with the port a peer
// announced, unless the peer announced a routable host itself.
func PartnerAddress(ip, announced string) string {
	host, port, err := net.SplitHostPort(announced)
	if err != nil {
		return ""
	}
	if parsed := net.ParseIP(host); host != "" && (parsed == nil || !parsed.IsUnspecified()) {
		return announced
	}
	return net.JoinHostPort(ip, port)
}
