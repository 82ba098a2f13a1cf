// Package flux implements the confidence-weighted multi-revolution fusion
// kernel: turning several noisy flux captures of the same physical track
// into one fused sample stream, a per-sample confidence curve, weak-bit
// regions, splice points, and a per-track integrity hash.
package flux

import (
	"encoding/binary"
	"math"

	"github.com/retropreserve/uff/primitive"
)

// Sample is an unsigned tick count between two flux transitions. Zero means
// "no transition observed in this window".
type Sample uint32

// Revolution is one rotation's worth of captured flux, plus capture
// metadata.
type Revolution struct {
	Samples    []Sample
	IndexPulse int     // sample index nearest the index-pulse position
	RPM        float64 // measured RPM for this revolution
	Confidence int     // 0..100, capture-hardware-reported confidence
}

// FluxCount is the number of samples in this revolution.
func (r Revolution) FluxCount() int { return len(r.Samples) }

// WeakRegion is a contiguous span where fused confidence falls below the
// weak threshold, typically left verbatim as a protection feature.
type WeakRegion struct {
	FluxOffset  int
	BitCount    int
	Confidence  int // 0..100, aggregate over the region
	PatternHint string
}

// SplicePoint is a bit offset where the inter-sample interval suggests a
// write-splice or long sync.
type SplicePoint struct {
	BitOffset int
}

// WeakThreshold is the fused-confidence cutoff below which a sample belongs
// to a weak region (default: confidence < 0.85).
const WeakThreshold = 0.15

// MaxSplices caps the number of SplicePoints recorded per track.
const MaxSplices = 64

// Track holds everything derived from one or more Revolutions of a single
// (cylinder, head).
type Track struct {
	Cylinder int
	Head     int

	Revolutions []Revolution

	FusedFlux       []Sample
	FusedConfidence []float64

	WeakRegions  []WeakRegion
	SplicePoints []SplicePoint

	SHA256 [32]byte
	CRC32  uint32
}

// Fuse merges the given revolutions into a single fused sample stream with
// per-sample confidence, following the confidence-weighted averaging
// algorithm in the flux fusion kernel design. With a single revolution the
// samples are copied verbatim and every confidence is 0.5 (unknown).
func Fuse(cylinder, head int, revolutions []Revolution) *Track {
	track := &Track{Cylinder: cylinder, Head: head, Revolutions: revolutions}

	if len(revolutions) == 0 {
		return track
	}

	if len(revolutions) == 1 {
		rev := revolutions[0]
		track.FusedFlux = append([]Sample{}, rev.Samples...)
		track.FusedConfidence = make([]float64, len(rev.Samples))
		for i := range track.FusedConfidence {
			track.FusedConfidence[i] = 0.5
		}
		return track
	}

	n := minFluxCount(revolutions)
	fused := make([]Sample, n)
	confidence := make([]float64, n)

	for i := 0; i < n; i++ {
		var totalWeight, weightedSum float64
		type contributor struct {
			value  float64
			weight float64
		}
		contributors := make([]contributor, 0, len(revolutions))

		for _, rev := range revolutions {
			if i >= rev.FluxCount() {
				continue
			}
			w := float64(rev.Confidence) / 100.0
			totalWeight += w
			weightedSum += float64(rev.Samples[i]) * w
			contributors = append(contributors, contributor{value: float64(rev.Samples[i]), weight: w})
		}

		if totalWeight == 0 || len(contributors) == 0 {
			fused[i] = 0
			confidence[i] = 0
			continue
		}

		fusedValue := weightedSum / totalWeight
		fused[i] = Sample(math.Round(fusedValue))

		var variance float64
		for _, c := range contributors {
			d := c.value - fusedValue
			variance += c.weight * d * d
		}
		variance /= float64(len(contributors))

		sigma := math.Sqrt(variance)
		var relDeviation float64
		if fusedValue != 0 {
			relDeviation = sigma / fusedValue
		}
		conf := 1 - relDeviation/WeakThreshold
		confidence[i] = clamp01(conf)
	}

	track.FusedFlux = fused
	track.FusedConfidence = confidence
	return track
}

func minFluxCount(revolutions []Revolution) int {
	n := -1
	for _, rev := range revolutions {
		if n == -1 || rev.FluxCount() < n {
			n = rev.FluxCount()
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ExtractWeakRegions performs the two-pass scan over the fused confidence
// curve: a region opens when confidence drops below 1-WeakThreshold and
// closes on recovery (or at end of track). Running this twice on the same
// Track yields an identical region set.
func (t *Track) ExtractWeakRegions() []WeakRegion {
	return t.ExtractWeakRegionsThreshold(WeakThreshold)
}

// ExtractWeakRegionsThreshold is ExtractWeakRegions with an explicit weak
// threshold, for callers carrying a tuned preservation profile.
func (t *Track) ExtractWeakRegionsThreshold(threshold float64) []WeakRegion {
	floor := 1 - threshold
	var regions []WeakRegion

	open := false
	start := 0
	var sum float64
	count := 0

	flush := func(end int) {
		if !open {
			return
		}
		meanConfidence := sum / float64(count)
		regions = append(regions, WeakRegion{
			FluxOffset: start,
			BitCount:   end - start,
			Confidence: int(math.Round((1 - meanConfidence) * 100)),
		})
		open = false
		sum = 0
		count = 0
	}

	for i, c := range t.FusedConfidence {
		if c < floor {
			if !open {
				open = true
				start = i
			}
			sum += c
			count++
		} else {
			flush(i)
		}
	}
	flush(len(t.FusedConfidence))

	t.WeakRegions = regions
	return regions
}

// ExtractSplicePoints records a SplicePoint for every fused sample more than
// 3x the track average, up to MaxSplices, at an approximate bit offset of
// 2*sampleIndex (GCR emits roughly two bits per flux interval).
func (t *Track) ExtractSplicePoints() []SplicePoint {
	return t.ExtractSplicePointsLimit(MaxSplices)
}

// ExtractSplicePointsLimit is ExtractSplicePoints with an explicit cap.
func (t *Track) ExtractSplicePointsLimit(maxSplices int) []SplicePoint {
	if len(t.FusedFlux) == 0 {
		t.SplicePoints = nil
		return nil
	}

	var total float64
	for _, s := range t.FusedFlux {
		total += float64(s)
	}
	avg := total / float64(len(t.FusedFlux))

	var splices []SplicePoint
	for i, s := range t.FusedFlux {
		if float64(s) > 3*avg {
			splices = append(splices, SplicePoint{BitOffset: 2 * i})
			if len(splices) >= maxSplices {
				break
			}
		}
	}

	t.SplicePoints = splices
	return splices
}

// ComputeHash computes the SHA-256 and CRC32 of the fused track data:
// sha256(metadata ∥ fused samples as LE u32 ∥ serialized weak regions),
// crc32(fused samples as LE u32). It stores and returns both.
func (t *Track) ComputeHash(flags, encoding byte) ([32]byte, uint32) {
	var buf []byte

	meta := make([]byte, 4)
	meta[0] = byte(t.Cylinder)
	meta[1] = byte(t.Head)
	meta[2] = flags
	meta[3] = encoding
	buf = append(buf, meta...)

	sampleBytes := serializeSamplesLE(t.FusedFlux)
	buf = append(buf, sampleBytes...)
	buf = append(buf, serializeWeakRegions(t.WeakRegions)...)

	t.SHA256 = primitive.SHA256(buf)
	t.CRC32 = primitive.CRC32(sampleBytes)
	return t.SHA256, t.CRC32
}

func serializeSamplesLE(samples []Sample) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(s))
	}
	return buf
}

func serializeWeakRegions(regions []WeakRegion) []byte {
	buf := make([]byte, 0, 12*len(regions))
	for _, r := range regions {
		entry := make([]byte, 12)
		binary.LittleEndian.PutUint32(entry[0:], uint32(r.FluxOffset))
		binary.LittleEndian.PutUint32(entry[4:], uint32(r.BitCount))
		binary.LittleEndian.PutUint32(entry[8:], uint32(r.Confidence))
		buf = append(buf, entry...)
	}
	return buf
}
