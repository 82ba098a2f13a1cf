// Package uffcore is the public façade: the one entry point a CLI, GUI, or
// batch-processing caller uses to probe, open, create, verify, and export
// preservation images, without reaching into the component packages
// directly.
package uffcore

import (
	"io"

	"github.com/pkg/errors"

	"github.com/retropreserve/uff/amigados"
	"github.com/retropreserve/uff/capture"
	"github.com/retropreserve/uff/commodore"
	"github.com/retropreserve/uff/config"
	"github.com/retropreserve/uff/flux"
	"github.com/retropreserve/uff/g64"
	"github.com/retropreserve/uff/primitive"
	"github.com/retropreserve/uff/uff"
	"github.com/retropreserve/uff/variant"
)

// Error wraps an inner error with a façade-level kind, following the
// error taxonomy: every failing façade call returns an error whose
// concrete type is *Error, so forensic logging gets a stack-aware Cause() chain
// across the d64/g64/amigados package boundary.
type Error struct {
	Kind string
	Op   string
	err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Kind + ": " + e.err.Error()
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// Cause returns the pkg/errors-style root cause, for callers that walk the
// chain explicitly.
func (e *Error) Cause() error { return errors.Cause(e.err) }

func wrap(kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.Wrap(err, op)}
}

// Probe runs the variant detector against data.
func Probe(data []byte) (variant.Info, error) {
	info, err := variant.Detect(data)
	if err != nil {
		return variant.Info{}, wrap("UnsupportedVariant", "Probe", err)
	}
	return info, nil
}

// OpenUFF opens an existing UFF container for reading.
func OpenUFF(r io.ReaderAt, size int64) (*uff.File, error) {
	f, err := uff.Open(r, size)
	if err != nil {
		return nil, wrap("BadMagic", "OpenUFF", err)
	}
	return f, nil
}

// CreateUFF begins a new write session against w, using geom for the
// container's geometry. A non-nil profile is validated first; its forensic
// examiner and case number, when either is set, become the container's
// forensic block.
func CreateUFF(w io.WriteSeeker, geom uff.Geometry, profile *config.Profile) (*uff.Writer, error) {
	if profile != nil {
		if err := profile.Validate(); err != nil {
			return nil, wrap("InvalidParameter", "CreateUFF", err)
		}
	}
	wr, err := uff.CreateWriter(w, geom)
	if err != nil {
		return nil, wrap("PermissionDenied", "CreateUFF", err)
	}
	if profile != nil && (profile.Forensic.Examiner != "" || profile.Forensic.CaseNumber != "") {
		wr.SetForensic(uff.ForensicBlock{Examiner: profile.Forensic.Examiner, CaseNumber: profile.Forensic.CaseNumber})
	}
	return wr, nil
}

// FuseTrack runs the full fusion kernel over revs: confidence-weighted
// sample fusion, weak-region and splice-point extraction at the profile's
// thresholds, and the per-track hash.
func FuseTrack(revs []flux.Revolution, profile *config.Profile) (*flux.Track, error) {
	return fuseOne(0, 0, revs, profile)
}

func fuseOne(cylinder, head int, revs []flux.Revolution, profile *config.Profile) (*flux.Track, error) {
	if len(revs) == 0 {
		return nil, wrap("InvalidParameter", "FuseTrack", errors.New("no revolutions supplied"))
	}
	threshold := flux.WeakThreshold
	maxSplices := flux.MaxSplices
	if profile != nil {
		if profile.Fusion.WeakThreshold > 0 {
			threshold = profile.Fusion.WeakThreshold
		}
		if profile.Fusion.MaxSplices > 0 {
			maxSplices = profile.Fusion.MaxSplices
		}
	}
	track := flux.Fuse(cylinder, head, revs)
	track.ExtractWeakRegionsThreshold(threshold)
	track.ExtractSplicePointsLimit(maxSplices)
	track.ComputeHash(0, 0)
	return track, nil
}

// FuseAll runs the fusion kernel over every capture session, checking the
// cancel signal at track boundaries. On cancellation the tracks fused so
// far are discarded and ErrCancelled surfaces.
func FuseAll(sessions []capture.Session, profile *config.Profile, cancel <-chan struct{}) ([]*flux.Track, error) {
	tracks := make([]*flux.Track, 0, len(sessions))
	for _, s := range sessions {
		if primitive.Cancelled(cancel) {
			return nil, wrap("Cancelled", "FuseAll", uff.ErrCancelled)
		}
		track, err := fuseOne(s.Cylinder, s.Head, s.Revolutions, profile)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// ExportD64 renders a decoded G64 image to a flat D64 byte buffer,
// including the trailing error-info block.
func ExportD64(g *g64.Image) ([]byte, error) {
	if g == nil {
		return nil, wrap("InvalidParameter", "ExportD64", errors.New("nil image"))
	}
	return g64.ExportD64(g, true), nil
}

// VerifyUFF recomputes and compares every track's CRC32 against its index
// entry. The cancel channel is observed at track boundaries; nil never
// cancels.
func VerifyUFF(f *uff.File, cancel <-chan struct{}) (uff.ValidationReport, error) {
	report, err := uff.Verify(f, cancel)
	if err != nil {
		return uff.ValidationReport{}, wrap("CorruptChunk", "VerifyUFF", err)
	}
	return report, nil
}

// OpenCommodore wraps img as a borrowed (read-only) Commodore sector
// image view.
func OpenCommodore(t commodore.Type, img []byte) (*commodore.Image, error) {
	ci, err := commodore.OpenImage(t, img)
	if err != nil {
		return nil, wrap("TruncatedInput", "OpenCommodore", err)
	}
	return ci, nil
}

// OpenAmigaDOS wraps img as a borrowed AmigaDOS filesystem view.
func OpenAmigaDOS(img []byte) (*amigados.Filesystem, error) {
	fs, err := amigados.Open(img)
	if err != nil {
		return nil, wrap("TruncatedInput", "OpenAmigaDOS", err)
	}
	return fs, nil
}
