package datanode

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nu7hatch/gouuid"

	. "github.com/tali0517/ST0263-p1/common"
)

// Deals with filesystem. Whole files live in files/, replica blocks in
// blocks/, the block catalog in meta/.
type FileStore struct {
	DataDir string
}

func (self *FileStore) FilesDirectory() string {
	return path.Join(self.DataDir, "files")
}

func (self *FileStore) BlocksDirectory() string {
	return path.Join(self.DataDir, "blocks")
}

func (self *FileStore) MetaDirectory() string {
	return path.Join(self.DataDir, "meta")
}

func (self *FileStore) Init() error {
	for _, dir := range []string{self.FilesDirectory(), self.BlocksDirectory(), self.MetaDirectory()} {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return err
		}
	}
	return nil
}

// ValidName accepts plain file names only. Dot names are reserved for
// uploads in progress.
func ValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty file name", ErrBadRequest)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: file name %q starts with a dot", ErrBadRequest, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: file name %q contains a path separator", ErrBadRequest, name)
	}
	return nil
}

// ListFiles scans files/ every time. Uploads in progress are not listed.
func (self *FileStore) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(self.FilesDirectory())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// UsedSpace adds up the size of every file and block.
func (self *FileStore) UsedSpace() (int64, error) {
	var total int64
	for _, dir := range []string{self.FilesDirectory(), self.BlocksDirectory()} {
		err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (self *FileStore) OpenFile(name string) (*os.File, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	file, err := os.Open(path.Join(self.FilesDirectory(), name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	return file, nil
}

// A file being uploaded. Nothing is visible under its real name until Commit.
type PendingFile struct {
	*os.File
	final string
}

func (self *FileStore) CreateTemp(name string) (*PendingFile, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	u4, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	tmp := path.Join(self.FilesDirectory(), "."+u4.String()+".part")
	file, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	return &PendingFile{file, path.Join(self.FilesDirectory(), name)}, nil
}

// Commit moves the file into place, replacing any older version.
func (self *PendingFile) Commit() error {
	if err := self.File.Sync(); err != nil {
		self.Abort()
		return fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	if err := self.File.Close(); err != nil {
		os.Remove(self.File.Name())
		return fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	if err := os.Rename(self.File.Name(), self.final); err != nil {
		os.Remove(self.File.Name())
		return fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	return nil
}

func (self *PendingFile) Abort() {
	self.File.Close()
	os.Remove(self.File.Name())
}

func BlockName(file string, index int) string {
	return fmt.Sprintf("%s_block_%d", file, index)
}

func (self *FileStore) BlockFilename(block string) string {
	return path.Join(self.BlocksDirectory(), block)
}

// WriteBlock stores one replica block and returns its crc32.
func (self *FileStore) WriteBlock(block string, payload []byte) (string, error) {
	file, err := os.Create(self.BlockFilename(block))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	writer := NewHashingWriter(file, crc32.NewIEEE())
	if _, err := writer.Write(payload); err != nil {
		writer.Close()
		os.Remove(self.BlockFilename(block))
		return "", fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	if err := writer.Close(); err != nil {
		os.Remove(self.BlockFilename(block))
		return "", fmt.Errorf("%w: %v", ErrInternalStorage, err)
	}
	return writer.Checksum(), nil
}

func (self *FileStore) LocalChecksum(block string) (string, error) {
	file, err := os.Open(self.BlockFilename(block))
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := crc32.NewIEEE()
	if _, err = io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprint(hash.Sum32()), nil
}

func (self *FileStore) DeleteBlock(block string) error {
	err := os.Remove(self.BlockFilename(block))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

type HashingWriter struct {
	main io.WriteCloser
	hash hash.Hash32
}

func NewHashingWriter(main io.WriteCloser, hash hash.Hash32) *HashingWriter {
	return &HashingWriter{main, hash}
}

func (self *HashingWriter) Write(p []byte) (int, error) {
	return io.MultiWriter(self.main, self.hash).Write(p)
}

func (self *HashingWriter) Close() error {
	return self.main.Close()
}

func (self *HashingWriter) Checksum() string {
	return fmt.Sprint(self.hash.Sum32())
}
