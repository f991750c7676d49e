//go:build linux

package overlay

import (
	"os"

	"golang.org/x/sys/unix"
)

// spilledFile wraps a scratch file spilled to disk. On Linux it is opened
// with O_TMPFILE, so it never has a directory entry at all: there is nothing
// to unlink, and nothing for a concurrent process to observe or race with.
type spilledFile struct {
	f *os.File
}

func createScratchFile(dir string) (*spilledFile, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	fd, err := unix.Open(dir, unix.O_TMPFILE|unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return createScratchFileFallback(dir)
	}
	return &spilledFile{f: os.NewFile(uintptr(fd), "lledit-scratch")}, nil
}

func (s *spilledFile) Write(p []byte) (int, error)              { return s.f.Write(p) }
func (s *spilledFile) ReadAt(p []byte, off int64) (int, error)  { return s.f.ReadAt(p, off) }
func (s *spilledFile) Close() error                             { return s.f.Close() }

// createScratchFileFallback is used when the filesystem backing dir does not
// support O_TMPFILE (e.g. some overlay or network filesystems).
func createScratchFileFallback(dir string) (*spilledFile, error) {
	f, err := os.CreateTemp(dir, "lledit-scratch-")
	if err != nil {
		return nil, err
	}
	name := f.Name()
	if err := os.Remove(name); err != nil {
		f.Close()
		return nil, err
	}
	return &spilledFile{f: f}, nil
}
