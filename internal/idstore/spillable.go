package idstore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// recordSize is the on-disk layout of one journal entry: source id (8),
// local id (8), offset of the previous entry in the same bucket's chain
// (8), or -1 if none.
const recordSize = 24

const noNext = int64(-1)

// SpillableMap starts as a plain in-memory HashMap and, once its entry
// count crosses spillThreshold, migrates to a memory-mapped, append-only
// journal with an in-memory bucket-head directory sized independently of
// the entry count — generalizing internal/nodeindex.MmapIndex's
// offset-by-id sparse file technique to arbitrary, possibly negative,
// non-dense source ids via hashed chaining instead of direct indexing.
type SpillableMap struct {
	dir            string
	spillThreshold int

	// pre-spill phase
	small *HashMap

	// post-spill phase
	spilled     bool
	file        *os.File
	data        mmap.MMap
	capacity    int64
	writeOffset int64
	buckets     []int64
	numBuckets  int
	count       int
}

// NewSpillableMap creates a Map that stays in memory until it holds more
// than spillThreshold entries, then migrates to an mmap-backed journal
// under dir (the OS default temp directory if dir is empty).
func NewSpillableMap(dir string, spillThreshold int) (*SpillableMap, error) {
	if spillThreshold <= 0 {
		spillThreshold = 1 << 20
	}
	return &SpillableMap{
		dir:            dir,
		spillThreshold: spillThreshold,
		small:          NewHashMap(),
	}, nil
}

func (s *SpillableMap) Put(source, local int64) {
	if !s.spilled {
		s.small.Put(source, local)
		if s.small.Len() > s.spillThreshold {
			if err := s.spill(); err != nil {
				// Spilling is a memory-pressure optimization, not a
				// correctness requirement; fall back to staying in
				// memory rather than losing data.
				return
			}
		}
		return
	}
	s.putSpilled(source, local)
}

func (s *SpillableMap) Get(source int64) (int64, bool) {
	if !s.spilled {
		return s.small.Get(source)
	}
	return s.getSpilled(source)
}

func (s *SpillableMap) Len() int {
	if !s.spilled {
		return s.small.Len()
	}
	return s.count
}

// Close releases the journal file, if one was created.
func (s *SpillableMap) Close() error {
	if !s.spilled {
		return nil
	}
	var firstErr error
	if err := s.data.Unmap(); err != nil {
		firstErr = err
	}
	path := s.file.Name()
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := os.Remove(path); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *SpillableMap) spill() error {
	f, err := os.CreateTemp(s.dir, "idstore-journal-*.bin")
	if err != nil {
		return fmt.Errorf("idstore: create journal file: %w", err)
	}

	const initialCapacity = 64 << 20 // 64MiB, grown by doubling as needed
	if err := f.Truncate(initialCapacity); err != nil {
		f.Close()
		return fmt.Errorf("idstore: size journal file: %w", err)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("idstore: mmap journal file: %w", err)
	}

	s.file = f
	s.data = data
	s.capacity = initialCapacity
	s.numBuckets = bucketCount(s.spillThreshold)
	s.buckets = make([]int64, s.numBuckets)
	for i := range s.buckets {
		s.buckets[i] = noNext
	}
	s.spilled = true

	for source, local := range s.small.m {
		s.putSpilled(source, local)
	}
	s.small = nil

	return nil
}

func bucketCount(spillThreshold int) int {
	n := 1024
	for n < spillThreshold {
		n <<= 1
	}
	return n
}

func mixHash(source int64) uint64 {
	// splitmix64 finalizer, a standard integer hash mix.
	x := uint64(source)
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func (s *SpillableMap) bucketFor(source int64) int {
	return int(mixHash(source) % uint64(s.numBuckets))
}

func (s *SpillableMap) putSpilled(source, local int64) {
	bucket := s.bucketFor(source)
	offset := s.buckets[bucket]
	for offset != noNext {
		if s.recordSource(offset) == source {
			s.setLocal(offset, local)
			return
		}
		offset = s.recordNext(offset)
	}

	newOffset := s.appendRecord(source, local, s.buckets[bucket])
	s.buckets[bucket] = newOffset
	s.count++
}

func (s *SpillableMap) getSpilled(source int64) (int64, bool) {
	bucket := s.bucketFor(source)
	offset := s.buckets[bucket]
	for offset != noNext {
		if s.recordSource(offset) == source {
			return s.recordLocal(offset), true
		}
		offset = s.recordNext(offset)
	}
	return 0, false
}

func (s *SpillableMap) appendRecord(source, local, next int64) int64 {
	s.ensureCapacity(s.writeOffset + recordSize)
	offset := s.writeOffset
	binary.LittleEndian.PutUint64(s.data[offset:], uint64(source))
	binary.LittleEndian.PutUint64(s.data[offset+8:], uint64(local))
	binary.LittleEndian.PutUint64(s.data[offset+16:], uint64(next))
	s.writeOffset += recordSize
	return offset
}

func (s *SpillableMap) recordSource(offset int64) int64 {
	return int64(binary.LittleEndian.Uint64(s.data[offset:]))
}

func (s *SpillableMap) recordLocal(offset int64) int64 {
	return int64(binary.LittleEndian.Uint64(s.data[offset+8:]))
}

func (s *SpillableMap) setLocal(offset, local int64) {
	binary.LittleEndian.PutUint64(s.data[offset+8:], uint64(local))
}

func (s *SpillableMap) recordNext(offset int64) int64 {
	return int64(binary.LittleEndian.Uint64(s.data[offset+16:]))
}

// ensureCapacity grows the backing file and re-maps it if the journal is
// about to outgrow its current mapping, doubling capacity each time.
func (s *SpillableMap) ensureCapacity(need int64) {
	if need <= s.capacity {
		return
	}
	newCapacity := s.capacity
	for newCapacity < need {
		newCapacity *= 2
	}

	if err := s.data.Unmap(); err != nil {
		return
	}
	if err := s.file.Truncate(newCapacity); err != nil {
		return
	}
	data, err := mmap.Map(s.file, mmap.RDWR, 0)
	if err != nil {
		return
	}
	s.data = data
	s.capacity = newCapacity
}
