package datanode

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/rpc"
	"os"
	"sync"

	"github.com/nu7hatch/gouuid"

	. "github.com/tali0517/ST0263-p1/common"
	"github.com/tali0517/ST0263-p1/transfer"
)

// Calls that need no per-connection state.
type DataNode struct {
	state *DataNodeState
}

func (self *DataNode) ListInventory(_ *int, reply *FilesResponse) error {
	files, err := self.state.Store.ListFiles()
	reply.Status = StatusOf(err)
	reply.Files = files
	return nil
}

func (self *DataNode) UploadBlock(block *Block, reply *StatusResponse) error {
	err := self.state.StoreBlock(*block)
	if err != nil {
		log.Println("Rejected block", BlockName(block.FileName, block.Index), "->", err)
	}
	reply.Status = StatusOf(err)
	return nil
}

// Receives one file at a time, one frame per call. The reply to the End
// frame is the acknowledgement of the whole upload.
type UploadSession struct {
	mutex     sync.Mutex
	state     *DataNodeState
	remote    string
	id        string
	assembler *transfer.Assembler
	pending   *PendingFile
	locked    string
}

func (self *UploadSession) Send(frame *transfer.Frame, reply *StatusResponse) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.assembler == nil {
		self.assembler = transfer.NewAssembler(self.open)
	}
	err := self.assembler.Accept(*frame)
	if err == nil && self.assembler.Done() {
		err = self.finish()
		self.reset()
	}
	if err != nil {
		log.Println(self.id, "Upload from", self.remote, "failed:", err)
		self.abort()
	}
	reply.Status = frameStatus(err)
	return nil
}

func (self *UploadSession) open(name string) (io.Writer, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	u4, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	self.id = "[" + u4.String()[:8] + "]"
	self.state.Manager.LockWrite(name)
	self.locked = name
	pending, err := self.state.Store.CreateTemp(name)
	if err != nil {
		return nil, err
	}
	self.pending = pending
	log.Println(self.id, "Receiving '"+name+"' from", self.remote)
	return pending, nil
}

// Publish, tell the MetaDataNode, replicate, in that order.
func (self *UploadSession) finish() error {
	name := self.assembler.Name()
	err := self.pending.Commit()
	self.pending = nil
	if err != nil {
		return err
	}
	log.Println(self.id, "Stored '"+name+"',", self.assembler.Written(), "bytes")

	if err := self.state.Register(); err != nil {
		// The next heartbeat carries the file anyway.
		log.Println(self.id, "Registration after upload failed:", err)
	}
	if _, err := self.state.ReplicateFile(name); err != nil {
		log.Println(self.id, "Replicating '"+name+"':", err)
	}
	return nil
}

func (self *UploadSession) reset() {
	if self.locked != "" {
		self.state.Manager.UnlockWrite(self.locked)
		self.locked = ""
	}
	self.assembler = nil
}

// Drops a half received file. Also runs when the connection goes away.
func (self *UploadSession) abort() {
	if self.pending != nil {
		self.pending.Abort()
		self.pending = nil
	}
	self.reset()
}

func frameStatus(err error) Status {
	switch {
	case errors.Is(err, transfer.ErrMissingHeader),
		errors.Is(err, transfer.ErrUnexpectedHeader),
		errors.Is(err, transfer.ErrEmptyName),
		errors.Is(err, transfer.ErrStreamClosed),
		errors.Is(err, transfer.ErrUnknownKind):
		return StatusBadRequest
	}
	return StatusOf(err)
}

// Serves one file at a time. Open, then Next until an End frame.
type DownloadSession struct {
	mutex sync.Mutex
	state *DataNodeState
	file  *os.File
}

func (self *DownloadSession) Open(req *FileRequest, reply *StatusResponse) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.close()
	file, err := self.state.Store.OpenFile(req.FileName)
	reply.Status = StatusOf(err)
	if err != nil {
		return nil
	}
	self.file = file
	return nil
}

// Next after the end, or without Open, keeps answering End.
func (self *DownloadSession) Next(_ *int, frame *transfer.Frame) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	if self.file == nil {
		*frame = transfer.End()
		return nil
	}
	buf := make([]byte, self.state.chunkSize)
	n, err := io.ReadFull(self.file, buf)
	switch {
	case n > 0 && (err == nil || err == io.ErrUnexpectedEOF):
		*frame = transfer.Payload(buf[:n])
		return nil
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		self.close()
		*frame = transfer.End()
		return nil
	default:
		self.close()
		return fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
}

func (self *DownloadSession) close() {
	if self.file != nil {
		self.file.Close()
		self.file = nil
	}
}

func (self *DataNodeState) sessions(server *rpc.Server, conn net.Conn) func() {
	upload := &UploadSession{state: self, remote: conn.RemoteAddr().String()}
	download := &DownloadSession{state: self}
	if err := server.RegisterName("DataNode", &DataNode{self}); err != nil {
		log.Fatalln(err)
	}
	if err := server.Register(upload); err != nil {
		log.Fatalln(err)
	}
	if err := server.Register(download); err != nil {
		log.Fatalln(err)
	}
	return func() {
		upload.mutex.Lock()
		upload.abort()
		upload.mutex.Unlock()
		download.mutex.Lock()
		download.close()
		download.mutex.Unlock()
	}
}
