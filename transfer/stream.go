package transfer

import (
	"errors"
	"io"
)

type assemblerState int

const (
	waitingHeader assemblerState = iota
	streaming
	finished
	failed
)

// Assembler is the receiving half of an upload. It is fed one frame at a
// time, so it works for push-style sessions where every frame arrives as a
// separate call.
type Assembler struct {
	open    func(name string) (io.Writer, error)
	state   assemblerState
	err     error
	name    string
	w       io.Writer
	written int64
}

// open is called once, with the name from the header, and returns where the
// payload bytes go.
func NewAssembler(open func(name string) (io.Writer, error)) *Assembler {
	return &Assembler{open: open}
}

// Accept consumes one frame. After the first error every later frame fails
// with that same error.
func (self *Assembler) Accept(f Frame) error {
	switch self.state {
	case finished:
		return ErrStreamClosed
	case failed:
		return self.err
	}
	if err := self.accept(f); err != nil {
		self.state = failed
		self.err = err
		return err
	}
	return nil
}

func (self *Assembler) accept(f Frame) error {
	if self.state == waitingHeader {
		if f.Kind != KindHeader {
			return ErrMissingHeader
		}
		if f.Name == "" {
			return ErrEmptyName
		}
		w, err := self.open(f.Name)
		if err != nil {
			return err
		}
		self.name = f.Name
		self.w = w
		self.state = streaming
		return nil
	}

	switch f.Kind {
	case KindPayload:
		n, err := self.w.Write(f.Data)
		self.written += int64(n)
		return err
	case KindEnd:
		self.state = finished
		return nil
	case KindHeader:
		return ErrUnexpectedHeader
	default:
		return ErrUnknownKind
	}
}

func (self *Assembler) Name() string {
	return self.name
}

func (self *Assembler) Written() int64 {
	return self.written
}

func (self *Assembler) Done() bool {
	return self.state == finished
}

// Receive drains r into the writer returned by open. io.EOF from r counts as
// the end of the stream.
func Receive(r Receiver, open func(name string) (io.Writer, error)) (string, int64, error) {
	a := NewAssembler(open)
	for !a.Done() {
		f, err := r.Recv()
		if errors.Is(err, io.EOF) {
			f, err = End(), nil
		}
		if err != nil {
			return a.Name(), a.Written(), err
		}
		if err := a.Accept(f); err != nil {
			return a.Name(), a.Written(), err
		}
	}
	return a.Name(), a.Written(), nil
}

// Copy drains a header-less stream, as served by a download, into w.
func Copy(r Receiver, w io.Writer) (int64, error) {
	var written int64
	for {
		f, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		switch f.Kind {
		case KindPayload:
			n, err := w.Write(f.Data)
			written += int64(n)
			if err != nil {
				return written, err
			}
		case KindEnd:
			return written, nil
		case KindHeader:
			return written, ErrUnexpectedHeader
		default:
			return written, ErrUnknownKind
		}
	}
}

// SendFile streams Header(name), the contents of r and the end marker.
func SendFile(s Sender, name string, r io.Reader, chunkSize int) (int64, error) {
	if name == "" {
		return 0, ErrEmptyName
	}
	if err := s.Send(Header(name)); err != nil {
		return 0, err
	}
	return SendPayload(s, r, chunkSize)
}

// SendPayload streams the contents of r followed by the end marker.
func SendPayload(s Sender, r io.Reader, chunkSize int) (int64, error) {
	n, err := Chunks(r, chunkSize, func(chunk []byte) error {
		return s.Send(Payload(chunk))
	})
	if err != nil {
		return n, err
	}
	return n, s.Send(End())
}

// Chunks reads r in pieces of exactly size bytes, the last one possibly
// shorter, and hands each to fn in order. Every piece is a fresh slice.
func Chunks(r io.Reader, size int, fn func([]byte) error) (int64, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var total int64
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return total, ferr
			}
			total += int64(n)
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return total, nil
		default:
			return total, err
		}
	}
}

// SplitBlocks cuts data into blockSize slices sharing data's backing array.
func SplitBlocks(data []byte, blockSize int) [][]byte {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	var blocks [][]byte
	for start := 0; start < len(data); start += blockSize {
		end := start + blockSize
		if end > len(data) {
			end = len(data)
		}
		blocks = append(blocks, data[start:end])
	}
	return blocks
}
