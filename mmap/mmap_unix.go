//go:build linux || darwin

package mmap

import (
	"fmt"
	"os"
	"syscall"
)

// mappedFile is a read-only mmap of one table file. Close unmaps it;
// the owning Timetable's Close walks every mappedFile it opened.
type mappedFile struct {
	data []byte
	f    *os.File
}

func mapFile(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting %s: %w", path, err)
	}
	if info.Size() == 0 {
		// syscall.Mmap rejects zero-length mappings; an empty table
		// (e.g. no transfers yet) is valid and should open to an
		// empty slice rather than fail.
		f.Close()
		return &mappedFile{data: []byte{}}, nil
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, int(info.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &mappedFile{data: data, f: f}, nil
}

func (m *mappedFile) close() error {
	var err error
	if m.data != nil && len(m.data) > 0 {
		err = syscall.Munmap(m.data)
	}
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
