package main

import (
	"os"
)

// binaryFingerprint captures the running binary's mtime and size at daemon
// startup so the scheduler loop can later detect that the on-disk binary has
// since been replaced (spec §4.3 Config reload, "--restart-on-upgrades").
type binaryFingerprint struct {
	path    string
	size    int64
	modTime int64
}

func fingerprintRunningBinary() (binaryFingerprint, error) {
	path, err := os.Executable()
	if err != nil {
		return binaryFingerprint{}, err
	}
	return statFingerprint(path)
}

func statFingerprint(path string) (binaryFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return binaryFingerprint{}, err
	}
	return binaryFingerprint{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}, nil
}

// changed reports whether the binary at f.path has been replaced since f was
// taken: a cheap mtime/size comparison rather than a full content hash,
// since a rebuild or package upgrade always touches both.
func (f binaryFingerprint) changed() bool {
	current, err := statFingerprint(f.path)
	if err != nil {
		return false
	}
	return current.size != f.size || current.modTime != f.modTime
}
