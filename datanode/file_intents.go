package datanode

import (
	"sync"
)

// Linearizes writes to one file name. Readers are not blocked: a download
// sees either the old or the new version, never a mix, since uploads publish
// by rename.
type FileIntents struct {
	lock    sync.Mutex
	writing map[string]*writeLock
}

type writeLock struct {
	sync.Mutex
	waiters int
}

func (self *FileIntents) LockWrite(name string) {
	self.lock.Lock()
	if self.writing == nil {
		self.writing = map[string]*writeLock{}
	}
	l := self.writing[name]
	if l == nil {
		l = &writeLock{}
		self.writing[name] = l
	}
	l.waiters++
	self.lock.Unlock()

	l.Lock()
}

func (self *FileIntents) UnlockWrite(name string) {
	self.lock.Lock()
	defer self.lock.Unlock()

	l := self.writing[name]
	l.waiters--
	if l.waiters == 0 {
		delete(self.writing, name)
	}
	l.Unlock()
}

// Writing reports whether name has a writer or a writer waiting.
func (self *FileIntents) Writing(name string) bool {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.writing[name] != nil
}
