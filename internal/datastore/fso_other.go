//go:build !windows

package datastore

import "github.com/lledit/lledit/internal/dsid"

// enumerateWindowsDrives is a no-op everywhere but Windows: POSIX systems
// have a single filesystem root, enumerated by reading it as an ordinary
// directory.
func enumerateWindowsDrives() []dsid.Key { return nil }
