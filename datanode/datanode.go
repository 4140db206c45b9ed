package datanode

import (
	"context"
	"log"

	. "github.com/tali0517/ST0263-p1/common"
)

// Create opens local storage and starts serving, heartbeating and checking
// block integrity. Everything stops once ctx is done.
func Create(ctx context.Context, conf Config) (*DataNodeState, error) {
	conf.setDefaults()
	self := newState(conf)

	log.Print("Storage in directory '" + conf.DataDir + "'")
	if err := self.Store.Init(); err != nil {
		log.Println("Making directories:", err)
		return nil, err
	}

	catalog, err := OpenCatalog(conf.CatalogFile)
	if err != nil {
		log.Println("Block catalog error:", err)
		return nil, err
	}
	self.Catalog = catalog
	log.Println("Block catalog at", conf.CatalogFile)

	log.Println("Accepting connections on", conf.Listener.Addr(), "as", self.Addr)
	go Serve(conf.Listener, conf.Debug, self.sessions)
	go func() {
		<-ctx.Done()
		conf.Listener.Close()
		self.Catalog.Close()
	}()

	go self.Heartbeat(ctx)
	go self.IntegrityChecker(ctx)
	if conf.Discover {
		go self.Discover(ctx, conf.DiscoveryTimeout)
	}

	return self, nil
}
