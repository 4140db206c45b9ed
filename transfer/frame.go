// Chunk streaming shared by whole-file transfers and block replication.
//
// A stream is one Header frame naming the file, then any number of Payload
// frames, then the end of the stream. Only the order of payload bytes
// matters; chunk boundaries mean nothing. There is no length field, so a
// truncated stream looks exactly like a short file.
package transfer

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindHeader Kind = iota + 1
	KindPayload
	// Wire rendition of the end of the stream.
	KindEnd
)

func (self Kind) String() string {
	switch self {
	case KindHeader:
		return "Header"
	case KindPayload:
		return "Payload"
	case KindEnd:
		return "End"
	default:
		return fmt.Sprintf("Kind(%d)", int(self))
	}
}

const (
	DefaultChunkSize = 64 * 1024
	DefaultBlockSize = 1024 * 1024
)

var (
	ErrMissingHeader    = errors.New("transfer: stream does not begin with a header")
	ErrUnexpectedHeader = errors.New("transfer: header in the middle of a stream")
	ErrEmptyName        = errors.New("transfer: header without a file name")
	ErrStreamClosed     = errors.New("transfer: frame after end of stream")
	ErrUnknownKind      = errors.New("transfer: unknown frame kind")
)

type Frame struct {
	Kind Kind
	Name string `json:",omitempty"`
	Data []byte `json:",omitempty"`
}

func Header(name string) Frame {
	return Frame{Kind: KindHeader, Name: name}
}

func Payload(data []byte) Frame {
	return Frame{Kind: KindPayload, Data: data}
}

func End() Frame {
	return Frame{Kind: KindEnd}
}

func (self Frame) String() string {
	switch self.Kind {
	case KindHeader:
		return fmt.Sprintf("Header(%s)", self.Name)
	case KindPayload:
		return fmt.Sprintf("Payload(%d bytes)", len(self.Data))
	default:
		return self.Kind.String()
	}
}

type Sender interface {
	Send(Frame) error
}

// Recv returns io.EOF once the stream has ended.
type Receiver interface {
	Recv() (Frame, error)
}
