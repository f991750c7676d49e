//go:build !linux

package overlay

import (
	"os"

	"github.com/lledit/lledit"
)

// spilledFile wraps a scratch file spilled to disk. Off Linux there is no
// O_TMPFILE, so the usual Unix trick is used instead: create a named temp
// file, then remove the directory entry immediately, keeping the open
// handle as the file's only reference. This does not work on Windows, where
// RegisterAtExit's cleanup path is the backstop that removes the file if
// Close is never reached (a leaked handle, or a process killed outright).
type spilledFile struct {
	f    *os.File
	name string
}

func createScratchFile(dir string) (*spilledFile, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "lledit-scratch-")
	if err != nil {
		return nil, err
	}
	name := f.Name()
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		// Likely Windows: the handle is still open, so Close is the primary
		// remover; register the backstop in case Close never runs.
		lledit.RegisterAtExit(func() error {
			if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) {
				return rmErr
			}
			return nil
		})
		return &spilledFile{f: f, name: name}, nil
	}
	return &spilledFile{f: f}, nil
}

func (s *spilledFile) Write(p []byte) (int, error)             { return s.f.Write(p) }
func (s *spilledFile) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }

func (s *spilledFile) Close() error {
	err := s.f.Close()
	if s.name != "" {
		if rmErr := os.Remove(s.name); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}
