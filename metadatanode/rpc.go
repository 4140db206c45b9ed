package metadatanode

import (
	"log"
	"net"
	"net/rpc"

	. "github.com/tali0517/ST0263-p1/common"
)

// Directory is the RPC face of the registry, shared by DataNodes and clients.
// Domain failures travel as a Status in the reply; the returned error is
// reserved for transport problems.
type Directory struct {
	registry *Registry
}

func (self *Directory) Register(msg *RegistrationMsg, reply *RegistrationResponse) error {
	name, err := self.registry.Register(msg.Addr, msg.Files, msg.AvailableSpace)
	if err != nil {
		log.Println("Rejected registration:", err)
	}
	reply.Status = StatusOf(err)
	reply.Name = name
	return nil
}

func (self *Directory) ResolveDownload(req *FileRequest, reply *NodesResponse) error {
	addr, err := self.registry.ResolveDownload(req.FileName)
	reply.Status = StatusOf(err)
	if err == nil {
		reply.Addresses = []string{addr}
	}
	return nil
}

func (self *Directory) ResolveUpload(_ *int, reply *NodesResponse) error {
	addrs, err := self.registry.ResolveUpload()
	if err != nil {
		log.Println("Cannot place upload:", err)
	}
	reply.Status = StatusOf(err)
	reply.Addresses = addrs
	return nil
}

func (self *Directory) ListFiles(_ *int, reply *FilesResponse) error {
	reply.Status = StatusOK
	reply.Files = self.registry.ListFiles()
	return nil
}

func (self *Directory) FindFile(req *FileRequest, reply *NodesResponse) error {
	addrs, err := self.registry.FindFile(req.FileName)
	reply.Status = StatusOf(err)
	reply.Addresses = addrs
	return nil
}

func (self *MetaDataNodeState) sessions(server *rpc.Server, conn net.Conn) func() {
	if err := server.RegisterName("Directory", self.directory); err != nil {
		log.Fatalln(err)
	}
	return nil
}
