package datanode

import (
	"context"
	"fmt"
	"log"
	"time"

	. "github.com/tali0517/ST0263-p1/common"
)

// Heartbeat registers right away and then every heartbeat interval until ctx
// is done. Every heartbeat is a full registration.
func (self *DataNodeState) Heartbeat(ctx context.Context) {
	ticker := time.NewTicker(self.heartbeatInterval)
	defer ticker.Stop()
	for {
		if err := self.Register(); err != nil {
			log.Println("Heartbeat error:", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Register pushes the current inventory to the MetaDataNode.
func (self *DataNodeState) Register() error {
	files, err := self.Store.ListFiles()
	if err != nil {
		return err
	}

	client, err := NewRPCClient(self.Network, self.LeaderAddress, self.Debug)
	if err != nil {
		self.setName("")
		return err
	}
	defer client.Close()

	var resp RegistrationResponse
	err = client.Call("Directory.Register",
		&RegistrationMsg{Addr: self.Addr, Files: files, AvailableSpace: self.AvailableSpace()},
		&resp)
	if err != nil {
		return err
	}
	if resp.Status != StatusOK {
		return fmt.Errorf("registration refused: %w", resp.Status.Err())
	}
	if self.Name() != resp.Name {
		log.Println("Registered as '"+resp.Name+"' with", len(files), "files")
		self.setName(resp.Name)
	}
	return nil
}
