//go:build windows

package datastore

import (
	"os"

	"github.com/lledit/lledit/internal/dsid"
)

// enumerateWindowsDrives lists the drive letters that currently exist, used
// in place of directory enumeration when a FileSystemObject's path is the
// root marker: Windows has no single directory standing in for "/" (spec.md
// §4's Windows drive-enumeration supplement).
func enumerateWindowsDrives() []dsid.Key {
	var keys []dsid.Key
	for c := 'A'; c <= 'Z'; c++ {
		drive := string(c) + `:\`
		if _, err := os.Stat(drive); err == nil {
			keys = append(keys, dsid.Name(string(c)+":"))
		}
	}
	return keys
}
