package datanode

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	. "github.com/tali0517/ST0263-p1/common"
)

// A replica block this node holds for a partner.
type BlockEntry struct {
	FileName string
	Index    int
	Role     Role
	Size     int64
	Checksum string
}

func (self BlockEntry) Name() string {
	return BlockName(self.FileName, self.Index)
}

// BlockCatalog records which replica blocks are on disk.
type BlockCatalog struct {
	// SQLite3 connections are not safe to share
	mutex sync.Mutex
	conn  *sql.DB
}

func OpenCatalog(filename string) (*BlockCatalog, error) {
	conn, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}
	// Every new connection to ":memory:" would be a fresh, empty database.
	conn.SetMaxOpenConns(1)
	_, err = conn.Exec(`CREATE TABLE IF NOT EXISTS file_blocks(
		file TEXT NOT NULL,
		block INTEGER NOT NULL,
		role TEXT NOT NULL,
		size INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		PRIMARY KEY (file, block))`)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &BlockCatalog{conn: conn}, nil
}

func (self *BlockCatalog) Close() error {
	return self.conn.Close()
}

// Put records a block, replacing an earlier copy of the same index.
func (self *BlockCatalog) Put(entry BlockEntry) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	_, err := self.conn.Exec("INSERT OR REPLACE INTO file_blocks VALUES(?, ?, ?, ?, ?)",
		entry.FileName, entry.Index, string(entry.Role), entry.Size, entry.Checksum)
	return err
}

func (self *BlockCatalog) Get(file string, index int) (BlockEntry, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	row := self.conn.QueryRow(
		"SELECT file, block, role, size, checksum FROM file_blocks WHERE file=? AND block=?",
		file, index)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, fmt.Errorf("%w: block %d of %s", ErrNotFound, index, file)
	}
	return entry, err
}

func (self *BlockCatalog) List() ([]BlockEntry, error) {
	return self.query("SELECT file, block, role, size, checksum FROM file_blocks ORDER BY file, block")
}

func (self *BlockCatalog) ListFile(file string) ([]BlockEntry, error) {
	return self.query(
		"SELECT file, block, role, size, checksum FROM file_blocks WHERE file=? ORDER BY block", file)
}

func (self *BlockCatalog) Delete(file string, index int) error {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	_, err := self.conn.Exec("DELETE FROM file_blocks WHERE file=? AND block=?", file, index)
	return err
}

func (self *BlockCatalog) query(q string, args ...interface{}) ([]BlockEntry, error) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	rows, err := self.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BlockEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (BlockEntry, error) {
	var entry BlockEntry
	var role string
	err := row.Scan(&entry.FileName, &entry.Index, &role, &entry.Size, &entry.Checksum)
	entry.Role = Role(role)
	return entry, err
}
