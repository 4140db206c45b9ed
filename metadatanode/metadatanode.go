package metadatanode

import (
	"context"
	"log"

	. "github.com/tali0517/ST0263-p1/common"
)

type MetaDataNodeState struct {
	registry  *Registry
	directory *Directory
}

// Create starts the eviction sweep and the RPC server. Both stop once ctx is
// done.
func Create(ctx context.Context, conf Config) (*MetaDataNodeState, error) {
	conf.setDefaults()
	self := new(MetaDataNodeState)
	self.registry = NewRegistry(conf.DisconnectThreshold)
	self.directory = &Directory{self.registry}

	go self.registry.Monitor(ctx, conf.SweepInterval)

	log.Println("Accepting connections on", conf.Listener.Addr())
	go Serve(conf.Listener, conf.Debug, self.sessions)
	go func() {
		<-ctx.Done()
		conf.Listener.Close()
	}()

	return self, nil
}

func (self *MetaDataNodeState) Registry() *Registry {
	return self.registry
}
