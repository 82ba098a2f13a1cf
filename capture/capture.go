// Package capture defines the seam between the fusion kernel and whatever
// hardware collaborator feeds it flux revolutions. Nothing in this module
// talks to real capture hardware: a CLI or GUI caller implements Source,
// the way sergev/floppy's adapter layer talks to Greaseweazle/KryoFlux/
// SuperCard Pro devices outside this core.
package capture

import "github.com/retropreserve/uff/flux"

// Session is the shape a capture collaborator hands the fusion kernel: one
// physical track's revolutions, ready to Fuse.
type Session struct {
	Cylinder    int
	Head        int
	Revolutions []flux.Revolution
}

// Source is satisfied by an external capture collaborator. CaptureTrack
// blocks until the requested number of revolutions has been captured for
// (cylinder, head), or ctx-style cancellation is observed via the returned
// error.
type Source interface {
	CaptureTrack(cylinder, head, revolutions int) (Session, error)
}
