package datanode

import (
	"fmt"
	"log"

	. "github.com/tali0517/ST0263-p1/common"
	"github.com/tali0517/ST0263-p1/transfer"
)

// Delivers one replica block to another DataNode.
type BlockPusher interface {
	PushBlock(addr string, block Block) error
}

type rpcPusher struct {
	network NetworkAdapter
	debug   bool
}

func (self *rpcPusher) PushBlock(addr string, block Block) error {
	client, err := NewRPCClient(self.network, addr, self.debug)
	if err != nil {
		return err
	}
	defer client.Close()

	var reply StatusResponse
	if err := client.Call("DataNode.UploadBlock", &block, &reply); err != nil {
		return err
	}
	return reply.Status.Err()
}

// ChoosePartners picks the leader and follower for block index. The same
// partner list and index always give the same pair.
func ChoosePartners(partners []string, index int) (leader, follower string, ok bool) {
	n := len(partners)
	if n < 2 {
		return "", "", false
	}
	return partners[index%n], partners[(index+1)%n], true
}

// ReplicateFile splits a stored file into blocks and pushes each block, in
// index order, to a leader and a follower partner. A failed push is logged
// and does not stop the others. Returns the number of successful pushes.
func (self *DataNodeState) ReplicateFile(name string) (int, error) {
	partners := self.Partners()
	if len(partners) < 2 {
		log.Println("Not replicating '"+name+"': need 2 partners, have", len(partners))
		return 0, nil
	}

	file, err := self.Store.OpenFile(name)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	pushed := 0
	index := 0
	_, err = transfer.Chunks(file, self.blockSize, func(payload []byte) error {
		leader, follower, _ := ChoosePartners(partners, index)
		for _, target := range []struct {
			addr string
			role Role
		}{{leader, Leader}, {follower, Follower}} {
			block := Block{FileName: name, Index: index, Payload: payload, Role: target.role}
			if err := self.pusher.PushBlock(target.addr, block); err != nil {
				log.Println("Pushing", BlockName(name, index), "to", target.role, target.addr, "->", err)
				continue
			}
			pushed++
		}
		index++
		return nil
	})
	if err != nil {
		return pushed, fmt.Errorf("%w: reading %s: %v", ErrInternalStorage, name, err)
	}
	log.Println("Replicated '"+name+"' as", index, "blocks,", pushed, "pushes succeeded")
	return pushed, nil
}

// StoreBlock keeps a replica block pushed by a partner.
func (self *DataNodeState) StoreBlock(block Block) error {
	if err := ValidName(block.FileName); err != nil {
		return err
	}
	switch {
	case block.Index < 0:
		return fmt.Errorf("%w: negative block index %d", ErrBadRequest, block.Index)
	case len(block.Payload) > self.blockSize:
		return fmt.Errorf("%w: block of %d bytes exceeds %d", ErrBadRequest, len(block.Payload), self.blockSize)
	case block.Role != Leader && block.Role != Follower:
		return fmt.Errorf("%w: unknown role %q", ErrBadRequest, block.Role)
	}

	name := BlockName(block.FileName, block.Index)
	self.Manager.LockWrite(name)
	defer self.Manager.UnlockWrite(name)

	checksum, err := self.Store.WriteBlock(name, block.Payload)
	if err != nil {
		return err
	}
	err = self.Catalog.Put(BlockEntry{block.FileName, block.Index, block.Role, int64(len(block.Payload)), checksum})
	if err != nil {
		self.Store.DeleteBlock(name)
		return fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	log.Println("Stored", block.Role, "block", name)
	return nil
}
