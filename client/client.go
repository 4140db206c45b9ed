// Library used by the command-line tools to talk to the cluster.
package client

import (
	"fmt"
	"io"
	"log"
	"net/rpc"

	. "github.com/tali0517/ST0263-p1/common"
	"github.com/tali0517/ST0263-p1/transfer"
)

type Client struct {
	LeaderAddress string
	Network       NetworkAdapter
	Debug         bool
	ChunkSize     int
}

func (self *Client) dial(addr string) (*rpc.Client, error) {
	network := self.Network
	if network == nil {
		network = &TCPNetwork{}
	}
	return NewRPCClient(network, addr, self.Debug)
}

func (self *Client) callLeader(method string, args interface{}, reply interface{}) error {
	client, err := self.dial(self.LeaderAddress)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Call("Directory."+method, args, reply)
}

func (self *Client) ListFiles() ([]string, error) {
	var reply FilesResponse
	if err := self.callLeader("ListFiles", 0, &reply); err != nil {
		return nil, err
	}
	return reply.Files, reply.Status.Err()
}

func (self *Client) FindFile(name string) ([]string, error) {
	var reply NodesResponse
	if err := self.callLeader("FindFile", &FileRequest{FileName: name}, &reply); err != nil {
		return nil, err
	}
	return reply.Addresses, reply.Status.Err()
}

func (self *Client) ResolveDownload(name string) (string, error) {
	var reply NodesResponse
	if err := self.callLeader("ResolveDownload", &FileRequest{FileName: name}, &reply); err != nil {
		return "", err
	}
	if err := reply.Status.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if len(reply.Addresses) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return reply.Addresses[0], nil
}

func (self *Client) ResolveUpload() ([]string, error) {
	var reply NodesResponse
	if err := self.callLeader("ResolveUpload", 0, &reply); err != nil {
		return nil, err
	}
	switch reply.Status {
	case StatusOK:
		return reply.Addresses, nil
	case StatusBadRequest:
		return nil, ErrInsufficientCapacity
	default:
		return nil, reply.Status.Err()
	}
}

// Upload stores the contents of r under name on both nodes the MetaDataNode
// picks. r is rewound before each copy. Returns the nodes that stored it.
func (self *Client) Upload(name string, r io.ReadSeeker) ([]string, error) {
	addrs, err := self.ResolveUpload()
	if err != nil {
		return nil, err
	}
	var stored []string
	for _, addr := range addrs {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return stored, err
		}
		n, err := self.UploadTo(addr, name, r)
		if err != nil {
			return stored, fmt.Errorf("upload to %s: %w", addr, err)
		}
		log.Println("Uploaded", n, "bytes of '"+name+"' to", addr)
		stored = append(stored, addr)
	}
	return stored, nil
}

type uploadStream struct {
	client *rpc.Client
}

func (self *uploadStream) Send(frame transfer.Frame) error {
	var reply StatusResponse
	if err := self.client.Call("UploadSession.Send", &frame, &reply); err != nil {
		return err
	}
	return reply.Status.Err()
}

// UploadTo streams r to one DataNode. It returns once the node acknowledged
// the whole file.
func (self *Client) UploadTo(addr, name string, r io.Reader) (int64, error) {
	client, err := self.dial(addr)
	if err != nil {
		return 0, err
	}
	defer client.Close()
	return transfer.SendFile(&uploadStream{client}, name, r, self.ChunkSize)
}

// Download fetches name from whichever node the MetaDataNode names.
func (self *Client) Download(name string, w io.Writer) (int64, error) {
	addr, err := self.ResolveDownload(name)
	if err != nil {
		return 0, err
	}
	return self.DownloadFrom(addr, name, w)
}

type downloadStream struct {
	client *rpc.Client
}

func (self *downloadStream) Recv() (transfer.Frame, error) {
	var frame transfer.Frame
	if err := self.client.Call("DownloadSession.Next", 0, &frame); err != nil {
		return frame, err
	}
	if frame.Kind == transfer.KindEnd {
		return frame, io.EOF
	}
	return frame, nil
}

// DownloadFrom copies name from the DataNode at addr into w. A stream cut
// short is indistinguishable from a shorter file.
func (self *Client) DownloadFrom(addr, name string, w io.Writer) (int64, error) {
	client, err := self.dial(addr)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	var reply StatusResponse
	if err := client.Call("DownloadSession.Open", &FileRequest{FileName: name}, &reply); err != nil {
		return 0, err
	}
	if err := reply.Status.Err(); err != nil {
		return 0, fmt.Errorf("%s on %s: %w", name, addr, err)
	}
	return transfer.Copy(&downloadStream{client}, w)
}

func (self *Client) ListInventory(addr string) ([]string, error) {
	client, err := self.dial(addr)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var reply FilesResponse
	if err := client.Call("DataNode.ListInventory", 0, &reply); err != nil {
		return nil, err
	}
	return reply.Files, reply.Status.Err()
}
