package datanode

import (
	"context"
	"log"
	"time"
)

func (self *DataNodeState) IntegrityChecker(ctx context.Context) {
	ticker := time.NewTicker(self.integrityInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if dropped := self.CheckIntegrity(); len(dropped) > 0 {
			log.Println("Dropped", len(dropped), "corrupt blocks")
		}
	}
}

// CheckIntegrity recomputes the checksum of every catalogued block and
// removes the ones that no longer match. Returns the removed block names.
func (self *DataNodeState) CheckIntegrity() []string {
	entries, err := self.Catalog.List()
	if err != nil {
		log.Println("Reading block catalog:", err)
		return nil
	}

	var dropped []string
	for _, entry := range entries {
		name := entry.Name()
		if self.Manager.Writing(name) {
			// Being replaced
			continue
		}
		self.Manager.LockWrite(name)
		current, err := self.Catalog.Get(entry.FileName, entry.Index)
		if err != nil {
			self.Manager.UnlockWrite(name)
			continue
		}
		localChecksum, err := self.Store.LocalChecksum(name)
		if err != nil || localChecksum != current.Checksum {
			log.Println("Checksum doesn't match block:", name, current.Checksum, localChecksum, err)
			self.RemoveBlock(current)
			dropped = append(dropped, name)
		}
		self.Manager.UnlockWrite(name)
	}
	return dropped
}

// Not concurrency safe, callers hold the write lock of the block.
func (self *DataNodeState) RemoveBlock(entry BlockEntry) {
	log.Println("Removing block '" + entry.Name() + "'")
	if err := self.Store.DeleteBlock(entry.Name()); err != nil {
		log.Println("Deleting block", entry.Name(), "->", err)
	}
	if err := self.Catalog.Delete(entry.FileName, entry.Index); err != nil {
		log.Println("Forgetting block", entry.Name(), "->", err)
	}
}
