// Package publish turns tracker snapshots into self-contained binary
// messages and hands them to consumers without ever blocking the
// acquisition loop.
package publish

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Wire layout of one snapshot message (little-endian):
//
//	offset 0  magic "AMTK"
//	offset 4  version (currently 1)
//	offset 5  reserved
//	offset 6  record count, uint16
//	offset 8  frame sequence, uint32
//	offset 12 timestamp, int64 unix nanos
//	offset 20 epoch UUID, 16 bytes
//	offset 36 records, 16 bytes each
//
// The epoch identifies one publisher lifetime; track IDs are unique
// within an epoch.
const (
	snapshotVersion    = 1
	snapshotHeaderSize = 36
	recordSize         = 16
)

var snapshotMagic = [4]byte{'A', 'M', 'T', 'K'}

// Record is one published track.
type Record struct {
	ID       uint32
	RangeM   float32
	AngleDeg float32 // NaN when the track has no bearing
	Strength float32 // normalised 0..1
}

// Snapshot is the full per-frame output: every reportable track,
// ordered by ascending range.
type Snapshot struct {
	Epoch     uuid.UUID
	Seq       uint32
	Timestamp time.Time
	Records   []Record
}

// Encode serialises the snapshot into a single message.
func (s *Snapshot) Encode() []byte {
	buf := make([]byte, snapshotHeaderSize+len(s.Records)*recordSize)
	copy(buf[0:4], snapshotMagic[:])
	buf[4] = snapshotVersion
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(s.Records)))
	binary.LittleEndian.PutUint32(buf[8:12], s.Seq)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(s.Timestamp.UnixNano()))
	copy(buf[20:36], s.Epoch[:])

	off := snapshotHeaderSize
	for _, r := range s.Records {
		binary.LittleEndian.PutUint32(buf[off:], r.ID)
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(r.RangeM))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(r.AngleDeg))
		binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(r.Strength))
		off += recordSize
	}
	return buf
}

// DecodeSnapshot parses a snapshot message.
func DecodeSnapshot(buf []byte) (*Snapshot, error) {
	if len(buf) < snapshotHeaderSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(buf))
	}
	if [4]byte(buf[0:4]) != snapshotMagic {
		return nil, fmt.Errorf("bad snapshot magic % x", buf[0:4])
	}
	if buf[4] != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", buf[4])
	}
	count := int(binary.LittleEndian.Uint16(buf[6:8]))
	if want := snapshotHeaderSize + count*recordSize; len(buf) != want {
		return nil, fmt.Errorf("snapshot length %d, want %d for %d records", len(buf), want, count)
	}

	s := &Snapshot{
		Seq:       binary.LittleEndian.Uint32(buf[8:12]),
		Timestamp: time.Unix(0, int64(binary.LittleEndian.Uint64(buf[12:20]))),
		Records:   make([]Record, count),
	}
	copy(s.Epoch[:], buf[20:36])

	off := snapshotHeaderSize
	for i := range s.Records {
		s.Records[i] = Record{
			ID:       binary.LittleEndian.Uint32(buf[off:]),
			RangeM:   math.Float32frombits(binary.LittleEndian.Uint32(buf[off+4:])),
			AngleDeg: math.Float32frombits(binary.LittleEndian.Uint32(buf[off+8:])),
			Strength: math.Float32frombits(binary.LittleEndian.Uint32(buf[off+12:])),
		}
		off += recordSize
	}
	return s, nil
}
