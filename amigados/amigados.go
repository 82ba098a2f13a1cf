// Package amigados implements the AmigaDOS block-graph filesystem engine:
// block checksums, bitmap semantics, hash-chained directory walking, file
// data chains, a validation pass detecting cross-links/orphans/broken
// chains, bitmap rebuild, and fresh-image formatting.
package amigados

import (
	"encoding/binary"
	"fmt"

	"github.com/retropreserve/uff/diagnosis"
	"github.com/retropreserve/uff/primitive"
)

const blockSize = 512

// Filesystem is an opened AmigaDOS image: either an owned buffer (created
// via Format) or a borrowed one (opened via Open), which rejects mutation.
type Filesystem struct {
	blocks      []byte
	readOnly    bool
	rootBlock   uint32
	totalBlocks uint32
}

// ErrReadOnly is returned by a mutating call on a borrowed image.
var ErrReadOnly = fmt.Errorf("amigados: mutating call on a read-only (borrowed) image")

// ErrCancelled is returned when a long operation observes its cancel
// signal at a block boundary.
var ErrCancelled = fmt.Errorf("amigados: operation cancelled")

// Open wraps img as a borrowed, read-only Filesystem.
func Open(img []byte) (*Filesystem, error) {
	if len(img) < blockSize*3 || len(img)%blockSize != 0 {
		return nil, fmt.Errorf("amigados: image size %d is not a valid block multiple", len(img))
	}
	total := uint32(len(img) / blockSize)
	return &Filesystem{blocks: img, readOnly: true, totalBlocks: total, rootBlock: total / 2}, nil
}

// OpenMutable copies img into an owned buffer so repair operations are
// permitted without touching the caller's bytes.
func OpenMutable(img []byte) (*Filesystem, error) {
	fs, err := Open(img)
	if err != nil {
		return nil, err
	}
	owned := make([]byte, len(img))
	copy(owned, img)
	fs.blocks = owned
	fs.readOnly = false
	return fs, nil
}

func (fs *Filesystem) block(n uint32) []byte {
	return fs.blocks[n*blockSize : (n+1)*blockSize]
}

func readBE32(b []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(b[offset:])
}

func writeBE32(b []byte, offset int, v uint32) {
	binary.BigEndian.PutUint32(b[offset:], v)
}

// BlockChecksum computes the AmigaDOS checksum: the negated sum of all
// big-endian longwords in the block, with the checksum slot itself
// excluded from the sum.
func BlockChecksum(block []byte, checksumOffset int) uint32 {
	var sum uint32
	for off := 0; off+4 <= len(block); off += 4 {
		if off == checksumOffset {
			continue
		}
		sum += readBE32(block, off)
	}
	return -sum
}

// VerifyChecksum recomputes and compares a block's checksum.
func VerifyChecksum(block []byte, checksumOffset int) bool {
	stored := readBE32(block, checksumOffset)
	return BlockChecksum(block, checksumOffset) == stored
}

// StampChecksum zeroes the checksum slot, computes the checksum, and
// writes it back.
func StampChecksum(block []byte, checksumOffset int) {
	writeBE32(block, checksumOffset, 0)
	sum := BlockChecksum(block, checksumOffset)
	writeBE32(block, checksumOffset, sum)
}

const (
	headerChecksumOffset = 20
	bitmapChecksumOffset = 0
	bitsPerBitmapBlock   = 32 * 127
	hashTableSize        = 72
	hashTableOffset      = 24
	hashNextOffset       = 432
	dataPointersOffset   = 308
	dataPointerCount     = 72
	extensionOffset      = 496
	maxDirectoryDepth    = 100

	rootNameOffset  = 432 // volume name; the root is never hash-chained
	entryNameOffset = 436 // entry names follow the hash_next pointer
	maxNameLen      = 30

	secTypeOffset = 508
)

// Secondary block types, stored big-endian at the block's last longword.
const (
	SecTypeRoot    uint32 = 1
	SecTypeUserDir uint32 = 2
	SecTypeFile    uint32 = 0xFFFFFFFD // -3
)

func (fs *Filesystem) secondaryType(b uint32) uint32 {
	return readBE32(fs.block(b), secTypeOffset)
}

func (fs *Filesystem) isDirectory(b uint32) bool {
	t := fs.secondaryType(b)
	return t == SecTypeRoot || t == SecTypeUserDir
}

// BitmapPosition returns (bitmapBlockIndex, word, bit) for block b (b>=2),
// per the fixed 32-bits-per-word/127-words-per-block layout.
func BitmapPosition(b uint32) (bitmapIndex, word, bit int) {
	rel := int(b) - 2
	bitmapIndex = rel / bitsPerBitmapBlock
	word = (rel % bitsPerBitmapBlock) / 32
	bit = 31 - (rel % 32)
	return
}

// IsFree reports whether bitmapBlock marks block b as free (bit set = free).
// Blocks 0 and 1 precede the bitmap and always read as allocated.
func IsFree(bitmapBlock []byte, b uint32) bool {
	if b < 2 {
		return false
	}
	_, word, bit := BitmapPosition(b)
	wordOffset := 4 + word*4
	if wordOffset+4 > len(bitmapBlock) {
		return false
	}
	v := binary.BigEndian.Uint32(bitmapBlock[wordOffset:])
	return v&(1<<uint(bit)) != 0
}

// SetFree sets or clears the free bit for block b within bitmapBlock. The
// boot blocks have no bitmap position and are ignored.
func SetFree(bitmapBlock []byte, b uint32, free bool) {
	if b < 2 {
		return
	}
	_, word, bit := BitmapPosition(b)
	wordOffset := 4 + word*4
	if wordOffset+4 > len(bitmapBlock) {
		return
	}
	v := binary.BigEndian.Uint32(bitmapBlock[wordOffset:])
	if free {
		v |= 1 << uint(bit)
	} else {
		v &^= 1 << uint(bit)
	}
	binary.BigEndian.PutUint32(bitmapBlock[wordOffset:], v)
}

// NameHash computes the 72-bucket directory hash of name: start from the
// length, multiply-accumulate each upper-cased character by 13 modulo
// 2^11, then reduce to the table size. With intl set, the ISO-8859-1
// letters 0xE0..0xFE (except 0xF7) fold the way the international
// filesystem variants do.
func NameHash(name string, intl bool) uint32 {
	hash := uint32(len(name))
	for i := 0; i < len(name); i++ {
		hash = (hash*13 + uint32(upperChar(name[i], intl))) & 0x7FF
	}
	return hash % hashTableSize
}

func upperChar(c byte, intl bool) byte {
	if c >= 'a' && c <= 'z' {
		return c - 32
	}
	if intl && c >= 0xE0 && c <= 0xFE && c != 0xF7 {
		return c - 32
	}
	return c
}

// Lookup resolves name inside the directory at dirBlock by walking only
// its hash bucket's chain. Returns the entry's block number, or 0.
func (fs *Filesystem) Lookup(dirBlock uint32, name string, intl bool) uint32 {
	if dirBlock >= fs.totalBlocks {
		return 0
	}
	bucket := NameHash(name, intl)
	entryBlock := readBE32(fs.block(dirBlock), hashTableOffset+int(bucket)*4)

	for depth := 0; entryBlock != 0 && entryBlock < fs.totalBlocks && depth < maxDirectoryDepth; depth++ {
		if foldEqual(fs.blockName(entryBlock), name, intl) {
			return entryBlock
		}
		entryBlock = readBE32(fs.block(entryBlock), hashNextOffset)
	}
	return 0
}

func foldEqual(a, b string, intl bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if upperChar(a[i], intl) != upperChar(b[i], intl) {
			return false
		}
	}
	return true
}

// DirEntry is one resolved directory entry: a block number plus its name,
// read from the hash-chained directory structure.
type DirEntry struct {
	Block uint32
	Name  string
}

// WalkDirectory recursively descends the hash table of the block at
// dirBlock, following hash_next chains within each bucket, depth-limited
// to defeat cycles.
func (fs *Filesystem) WalkDirectory(dirBlock uint32, log *diagnosis.Log) []DirEntry {
	return fs.walkDirectoryDepth(dirBlock, 0, log)
}

func (fs *Filesystem) walkDirectoryDepth(dirBlock uint32, depth int, log *diagnosis.Log) []DirEntry {
	if depth > maxDirectoryDepth || dirBlock >= fs.totalBlocks {
		return nil
	}
	block := fs.block(dirBlock)

	var entries []DirEntry
	for i := 0; i < hashTableSize; i++ {
		off := hashTableOffset + i*4
		entryBlock := readBE32(block, off)
		for steps := uint32(0); entryBlock != 0 && entryBlock < fs.totalBlocks && steps < fs.totalBlocks; steps++ {
			entries = append(entries, DirEntry{Block: entryBlock, Name: fs.blockName(entryBlock)})
			if fs.isDirectory(entryBlock) {
				entries = append(entries, fs.walkDirectoryDepth(entryBlock, depth+1, log)...)
			}
			entryBlock = readBE32(fs.block(entryBlock), hashNextOffset)
		}
	}
	return entries
}

// blockName reads the BCPL string name field of a header block. The root
// block keeps its volume name at the hash_next slot (the root is never
// chained into a bucket); file and directory headers store theirs right
// after the chain pointer.
func (fs *Filesystem) blockName(b uint32) string {
	block := fs.block(b)
	nameOffset := entryNameOffset
	if b == fs.rootBlock {
		nameOffset = rootNameOffset
	}
	length := int(block[nameOffset])
	if length <= 0 || length > maxNameLen || nameOffset+1+length > len(block) {
		return ""
	}
	return string(block[nameOffset+1 : nameOffset+1+length])
}

// DataChain builds the full list of data-block pointers for a file header
// block, following descending pointers 308,304,...,0 and then extension
// blocks at offset 496.
func (fs *Filesystem) DataChain(headerBlock uint32) ([]uint32, error) {
	var chain []uint32
	current := headerBlock
	visited := map[uint32]bool{}

	for current != 0 {
		if visited[current] {
			return chain, fmt.Errorf("amigados: data chain cycle at block %d", current)
		}
		visited[current] = true
		if current >= fs.totalBlocks {
			return chain, fmt.Errorf("amigados: data chain references out-of-range block %d", current)
		}
		block := fs.block(current)

		for i := 0; i < dataPointerCount; i++ {
			off := dataPointersOffset - i*4
			if off < 0 {
				break
			}
			ptr := readBE32(block, off)
			if ptr != 0 {
				chain = append(chain, ptr)
			}
		}

		current = readBE32(block, extensionOffset)
	}

	return chain, nil
}

// ValidationReport is the aggregate result of Validate.
type ValidationReport struct {
	Errors        int
	Warnings      int
	CrossLinked   int
	OrphanBlocks  int
	BrokenChains  int
	BadChecksums  int
	BitmapCorrupt bool
	BootBlockBad  bool
	RootBlockBad  bool
	Diagnoses     []diagnosis.Diagnosis
}

// Validate walks the directory and data-block graph, stamping a usage
// vector, then cross-checks it against the bitmap blocks.
func (fs *Filesystem) Validate(bitmapBlocks []uint32) ValidationReport {
	var report ValidationReport
	log := &diagnosis.Log{}

	usage := make([]uint8, fs.totalBlocks)
	usage[0] = 1
	usage[1] = 1
	usage[fs.rootBlock] = 1
	for _, bb := range bitmapBlocks {
		if bb < fs.totalBlocks {
			usage[bb] = 1
		}
	}

	// The boot block carries no header checksum; a filesystem is present
	// when block 0 starts with the DOS signature. Unbootable disks leave
	// the boot code area zeroed and are still valid volumes.
	if string(fs.block(0)[0:3]) != "DOS" {
		report.BootBlockBad = true
		log.Add(diagnosis.New(diagnosis.Error, diagnosis.CodeBootBlockBad, 0, "boot block DOS signature missing"))
	}
	if !VerifyChecksum(fs.block(fs.rootBlock), headerChecksumOffset) {
		report.RootBlockBad = true
		log.Add(diagnosis.New(diagnosis.Error, diagnosis.CodeRootBlockBad, 0, "root block checksum failed"))
	}

	fs.markReachable(fs.rootBlock, 0, usage, &report, log)

	for b := uint32(2); b < fs.totalBlocks; b++ {
		bitmapSaysFree := fs.bitmapStatus(b, bitmapBlocks)
		if !bitmapSaysFree && usage[b] == 0 {
			report.OrphanBlocks++
			report.BitmapCorrupt = true
			log.Add(diagnosis.New(diagnosis.Warning, diagnosis.CodeOrphanBlock, 0,
				fmt.Sprintf("block %d marked allocated but unreachable", b)))
		}
	}

	report.Errors = report.BrokenChains + report.BadChecksums
	if report.BootBlockBad || report.RootBlockBad {
		report.Errors++
	}
	report.Warnings = report.OrphanBlocks
	report.Diagnoses = log.Entries
	return report
}

func (fs *Filesystem) bitmapStatus(b uint32, bitmapBlocks []uint32) bool {
	bmIndex, _, _ := BitmapPosition(b)
	if bmIndex < 0 || bmIndex >= len(bitmapBlocks) {
		return false
	}
	bb := bitmapBlocks[bmIndex]
	if bb >= fs.totalBlocks {
		return false
	}
	return IsFree(fs.block(bb), b)
}

func (fs *Filesystem) markReachable(dirBlock uint32, depth int, usage []uint8, report *ValidationReport, log *diagnosis.Log) {
	if depth > maxDirectoryDepth || dirBlock >= fs.totalBlocks {
		return
	}
	block := fs.block(dirBlock)

	for i := 0; i < hashTableSize; i++ {
		entryBlock := readBE32(block, hashTableOffset+i*4)
		for steps := uint32(0); entryBlock != 0 && entryBlock < fs.totalBlocks && steps < fs.totalBlocks; steps++ {
			if usage[entryBlock] > 0 {
				report.CrossLinked++
				log.Add(diagnosis.New(diagnosis.Warning, diagnosis.CodeCrossLink, 0,
					fmt.Sprintf("block %d referenced by more than one owner", entryBlock)))
			} else {
				usage[entryBlock] = 1
			}

			if !VerifyChecksum(fs.block(entryBlock), headerChecksumOffset) {
				report.BadChecksums++
				log.Add(diagnosis.New(diagnosis.Error, diagnosis.CodeBadChecksum, 0,
					fmt.Sprintf("block %d checksum mismatch", entryBlock)))
			}

			if fs.secondaryType(entryBlock) == SecTypeFile {
				chain, err := fs.DataChain(entryBlock)
				if err != nil {
					report.BrokenChains++
					log.Add(diagnosis.New(diagnosis.Error, diagnosis.CodeBrokenChain, 0, err.Error()))
				}
				for _, db := range chain {
					if db >= fs.totalBlocks {
						continue
					}
					if usage[db] > 0 {
						report.CrossLinked++
					} else {
						usage[db] = 1
					}
				}
			}

			if fs.isDirectory(entryBlock) {
				fs.markReachable(entryBlock, depth+1, usage, report, log)
			}

			entryBlock = readBE32(fs.block(entryBlock), hashNextOffset)
		}
	}
}

// RebuildBitmap performs a stack-based DFS from the root, marking every
// reachable block used, resetting all bitmap blocks to "all free", then
// stamping used blocks as allocated. Orphan blocks are left free,
// recoverable by undelete tooling.
func (fs *Filesystem) RebuildBitmap(bitmapBlocks []uint32, cancel <-chan struct{}) error {
	if fs.readOnly {
		return ErrReadOnly
	}

	used := map[uint32]bool{0: true, 1: true, fs.rootBlock: true}
	for _, bb := range bitmapBlocks {
		used[bb] = true
	}

	stack := []uint32{fs.rootBlock}
	visited := map[uint32]bool{}
	for len(stack) > 0 {
		if primitive.Cancelled(cancel) {
			return ErrCancelled
		}
		n := len(stack) - 1
		current := stack[n]
		stack = stack[:n]
		if visited[current] || current >= fs.totalBlocks {
			continue
		}
		visited[current] = true
		used[current] = true

		if !fs.isDirectory(current) {
			continue
		}
		block := fs.block(current)
		for i := 0; i < hashTableSize; i++ {
			entryBlock := readBE32(block, hashTableOffset+i*4)
			for steps := uint32(0); entryBlock != 0 && entryBlock < fs.totalBlocks && steps < fs.totalBlocks; steps++ {
				used[entryBlock] = true
				if fs.isDirectory(entryBlock) {
					stack = append(stack, entryBlock)
				}
				if fs.secondaryType(entryBlock) == SecTypeFile {
					chain, _ := fs.DataChain(entryBlock)
					for _, db := range chain {
						if db < fs.totalBlocks {
							used[db] = true
						}
					}
				}
				entryBlock = readBE32(fs.block(entryBlock), hashNextOffset)
			}
		}
	}

	for _, bb := range bitmapBlocks {
		if bb >= fs.totalBlocks {
			continue
		}
		bmBlock := fs.block(bb)
		for off := 4; off+4 <= blockSize; off += 4 {
			binary.BigEndian.PutUint32(bmBlock[off:], 0xFFFFFFFF)
		}
	}

	for b := range used {
		bmIndex, _, _ := BitmapPosition(b)
		if bmIndex < 0 || bmIndex >= len(bitmapBlocks) {
			continue
		}
		bb := bitmapBlocks[bmIndex]
		if bb >= fs.totalBlocks {
			continue
		}
		SetFree(fs.block(bb), b, false)
	}

	for _, bb := range bitmapBlocks {
		if bb >= fs.totalBlocks {
			continue
		}
		StampChecksum(fs.block(bb), bitmapChecksumOffset)
	}

	return nil
}

// Format zeroes a fresh image of size totalBlocks*512, writes the boot
// block signature, and initialises the root block and bitmap blocks.
func Format(totalBlocks uint32, fsType byte, volumeName string) (*Filesystem, []uint32) {
	buf := make([]byte, int(totalBlocks)*blockSize)
	fs := &Filesystem{blocks: buf, readOnly: false, totalBlocks: totalBlocks, rootBlock: totalBlocks / 2}

	copy(buf[0:3], []byte("DOS"))
	buf[3] = fsType

	root := fs.block(fs.rootBlock)
	writeBE32(root, 0, 2) // T_HEADER
	writeBE32(root, 12, hashTableSize)
	writeBE32(root, 312, 0xFFFFFFFF) // bm_flag: bitmap valid

	bitmapBlocks := []uint32{fs.rootBlock + 1}
	writeBE32(root, 316, bitmapBlocks[0])

	name := []byte(volumeName)
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	root[rootNameOffset] = byte(len(name))
	copy(root[rootNameOffset+1:], name)

	writeBE32(root, 508, 1) // secondary_type: ST_ROOT

	StampChecksum(root, headerChecksumOffset)

	for _, bb := range bitmapBlocks {
		bmBlock := fs.block(bb)
		for off := 4; off+4 <= blockSize; off += 4 {
			binary.BigEndian.PutUint32(bmBlock[off:], 0xFFFFFFFF)
		}
		SetFree(bmBlock, 0, false)
		SetFree(bmBlock, 1, false)
		SetFree(bmBlock, fs.rootBlock, false)
		for _, other := range bitmapBlocks {
			SetFree(bmBlock, other, false)
		}
		StampChecksum(bmBlock, bitmapChecksumOffset)
	}

	return fs, bitmapBlocks
}

// Bytes returns the owned backing buffer (only meaningful for a
// Filesystem created via Format).
func (fs *Filesystem) Bytes() []byte { return fs.blocks }
