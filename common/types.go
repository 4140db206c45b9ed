// Network protocol and other communications issues.
package common

import "fmt"

// Status is a domain status code carried inside replies. It is never a
// transport error: a reply with StatusNotFound is a successful RPC.
type Status int

const (
	StatusOK            Status = 200
	StatusBadRequest    Status = 400
	StatusNotFound      Status = 404
	StatusInternalError Status = 500
)

// Replica role of a pushed block. The label is the only difference.
type Role string

const (
	Leader   Role = "leader"
	Follower Role = "follower"
)

// Sent by a DataNode on startup, on every heartbeat and after every upload.
type RegistrationMsg struct {
	Addr           string
	Files          []string
	AvailableSpace int64
}

type RegistrationResponse struct {
	Status Status
	Name   string
}

type FileRequest struct {
	FileName string
}

type NodesResponse struct {
	Status    Status
	Addresses []string
}

type FilesResponse struct {
	Status Status
	Files  []string
}

type StatusResponse struct {
	Status Status
}

// One fixed-size slice of a file, pushed node-to-node.
type Block struct {
	FileName string
	Index    int
	Payload  []byte
	Role     Role
}

// Keeps debug logging from dumping whole payloads.
func (self Block) String() string {
	return fmt.Sprintf("{FileName:%s Index:%d Role:%s Payload:%d bytes}",
		self.FileName, self.Index, self.Role, len(self.Payload))
}
