// Package diagnosis models the append-only event log produced while parsing
// damaged or protected media. A diagnosis is a data value, never an error:
// callers decide what to do with it, the parser that emits it always keeps
// going.
package diagnosis

import "fmt"

// Severity classifies how serious a diagnosis is.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Protection
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Protection:
		return "PROTECTION"
	default:
		return "UNKNOWN"
	}
}

// Code identifies the kind of event, independent of its human-readable text.
type Code string

const (
	CodeLongSync        Code = "long_sync"
	CodeWrongTrackID    Code = "wrong_track_id"
	CodeChecksumError   Code = "checksum_error"
	CodeMissingSector   Code = "missing_sector"
	CodeExtraSectors    Code = "extra_sectors"
	CodeKillerTrack     Code = "killer_track"
	CodeWeakBits        Code = "weak_bits"
	CodeHalfTrackData   Code = "half_track_data"
	CodeCrossLink       Code = "cross_link"
	CodeOrphanBlock     Code = "orphan_block"
	CodeBrokenChain     Code = "broken_chain"
	CodeBadChecksum     Code = "bad_checksum"
	CodeBitmapCorrupt   Code = "bitmap_corrupt"
	CodeBootBlockBad    Code = "bootblock_bad"
	CodeRootBlockBad    Code = "root_bad"
	CodeCorruptHeader   Code = "corrupt_header"
	CodeCorruptChunk    Code = "corrupt_chunk"
	CodeUnsupportedSub  Code = "unsupported_sub_variant"
)

// remediation carries a one-line hint for each code, following the rule that
// the system never silently discards bytes: if it can't decode it emits a
// Diagnosis with guidance attached.
var remediation = map[Code]string{
	CodeLongSync:       "PRESERVE — common protection technique",
	CodeWrongTrackID:   "track identifies itself as a different cylinder; keep the raw flux",
	CodeChecksumError:  "checksum mismatch on decode; nibble/byte zeroed, recovery may be partial",
	CodeMissingSector:  "fewer sectors found than expected for this track",
	CodeExtraSectors:   "PRESERVE — extra sectors beyond the nominal layout, often protection",
	CodeKillerTrack:    "PRESERVE — track is deliberately unreadable, a protection marker",
	CodeWeakBits:       "PRESERVE — bits differ across captures, likely intentional weak-bit protection",
	CodeHalfTrackData:  "PRESERVE — data recorded on a half-track step, protection signature",
	CodeCrossLink:      "block referenced by more than one owner; run rebuild before trusting free space",
	CodeOrphanBlock:    "block marked allocated but unreachable; recoverable via undelete tooling",
	CodeBrokenChain:    "data or hash chain does not terminate cleanly",
	CodeBadChecksum:    "stored checksum does not match recomputed value",
	CodeBitmapCorrupt:  "free-space bitmap disagrees with the directory graph",
	CodeBootBlockBad:   "boot block lacks the DOS signature",
	CodeRootBlockBad:   "root block checksum failed",
	CodeCorruptHeader:  "header CRC mismatch; continuing in degraded mode for forensic recovery",
	CodeCorruptChunk:   "track chunk CRC mismatch",
	CodeUnsupportedSub: "sub-variant detected but not fully supported",
}

// Diagnosis is a single append-only event recorded while parsing an image.
type Diagnosis struct {
	Severity Severity
	Code     Code
	Track    uint8
	Sector   *uint8
	Message  string
}

// Remediation returns the one-line hint associated with the diagnosis code.
func (d Diagnosis) Remediation() string {
	if hint, ok := remediation[d.Code]; ok {
		return hint
	}
	return ""
}

func (d Diagnosis) String() string {
	sector := "-"
	if d.Sector != nil {
		sector = fmt.Sprintf("%d", *d.Sector)
	}
	return fmt.Sprintf("[%s] track=%d sector=%s %s: %s (%s)", d.Severity, d.Track, sector, d.Code, d.Message, d.Remediation())
}

// New builds a Diagnosis with no sector attached.
func New(sev Severity, code Code, track uint8, message string) Diagnosis {
	return Diagnosis{Severity: sev, Code: code, Track: track, Message: message}
}

// WithSector attaches a sector number to a diagnosis.
func WithSector(sev Severity, code Code, track, sector uint8, message string) Diagnosis {
	s := sector
	return Diagnosis{Severity: sev, Code: code, Track: track, Sector: &s, Message: message}
}

// Log collects diagnoses in emission order and computes aggregate quality.
type Log struct {
	Entries []Diagnosis
}

// Add appends a diagnosis to the log.
func (l *Log) Add(d Diagnosis) {
	l.Entries = append(l.Entries, d)
}

// Quality computes the overall parse quality as the product of 0.97 over
// every non-protection, non-Info entry.
func (l *Log) Quality() float64 {
	q := 1.0
	for _, d := range l.Entries {
		if d.Severity == Protection || d.Severity == Info {
			continue
		}
		q *= 0.97
	}
	return q
}

// CountBySeverity returns the number of entries with exactly the given
// severity.
func (l *Log) CountBySeverity(sev Severity) int {
	n := 0
	for _, d := range l.Entries {
		if d.Severity == sev {
			n++
		}
	}
	return n
}
