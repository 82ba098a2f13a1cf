//go:build unix

package uff

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// lockForWrite takes an advisory exclusive flock for the duration of a
// write session, enforcing the single-mutator-per-image rule. It is a
// no-op for writers that are not backed by an *os.File (e.g. in-memory
// buffers used by tests).
func lockForWrite(w io.WriteSeeker) error {
	f, ok := w.(*os.File)
	if !ok {
		return nil
	}
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlockForWrite(w io.WriteSeeker, locked bool) {
	if !locked {
		return
	}
	if f, ok := w.(*os.File); ok {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}
}
