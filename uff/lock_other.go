//go:build !unix

package uff

import "io"

// lockForWrite is a no-op on platforms without flock semantics.
func lockForWrite(w io.WriteSeeker) error { return nil }

func unlockForWrite(w io.WriteSeeker, locked bool) {}
