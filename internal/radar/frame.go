package radar

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// Wire format: a 20-byte little-endian header followed by packed 12-bit
// unsigned ADC samples, two samples per three bytes.
//
//	offset 0  magic "AMT1"
//	offset 4  version (currently 1)
//	offset 5  flags
//	offset 6  reserved (2 bytes, zero)
//	offset 8  sequence number, uint32
//	offset 12 payload length in bytes, uint32
//	offset 16 CRC32 (IEEE) of the payload, uint32
//	offset 20 payload
//
// The payload holds samples in channel-major order: all chirps of
// channel 0, then channel 1, and so on.
const (
	wireVersion = 1
	headerSize  = 20

	// FlagSaturated indicates the front end clipped during this frame.
	FlagSaturated = 1 << 0
)

var frameMagic = [4]byte{'A', 'M', 'T', '1'}

// adcMid is the zero level of the 12-bit unsigned ADC.
const adcMid = 2048

// FrameFormat describes the fixed geometry of every frame in a session.
type FrameFormat struct {
	Channels        int
	ChirpsPerFrame  int
	SamplesPerChirp int
}

// SamplesPerFrame returns the total sample count across all channels.
func (f FrameFormat) SamplesPerFrame() int {
	return f.Channels * f.ChirpsPerFrame * f.SamplesPerChirp
}

// PayloadSize returns the packed payload size in bytes.
func (f FrameFormat) PayloadSize() int {
	return f.SamplesPerFrame() * 3 / 2
}

// Validate checks the geometry is usable.
func (f FrameFormat) Validate() error {
	if f.Channels < 1 || f.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", f.Channels)
	}
	if f.ChirpsPerFrame < 1 {
		return fmt.Errorf("chirps_per_frame must be at least 1, got %d", f.ChirpsPerFrame)
	}
	n := f.SamplesPerChirp
	if n < 8 || n&(n-1) != 0 {
		return fmt.Errorf("samples_per_chirp must be a power of two >= 8, got %d", n)
	}
	return nil
}

// WireFrame is a decoded on-the-wire frame: raw 12-bit ADC counts, not
// yet normalised or timestamped.
type WireFrame struct {
	Seq     uint32
	Flags   uint8
	Samples []uint16
}

// Encode serialises the frame into a single self-contained message.
func (w *WireFrame) Encode() ([]byte, error) {
	if len(w.Samples)%2 != 0 {
		return nil, fmt.Errorf("sample count must be even, got %d", len(w.Samples))
	}
	payload := PackSamples(w.Samples)

	buf := make([]byte, headerSize+len(payload))
	copy(buf[0:4], frameMagic[:])
	buf[4] = wireVersion
	buf[5] = w.Flags
	binary.LittleEndian.PutUint32(buf[8:12], w.Seq)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[16:20], crc32.ChecksumIEEE(payload))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// DecodeFrame parses and validates a wire message against the expected
// frame geometry. All validation failures wrap ErrAcquisitionFault.
func DecodeFrame(buf []byte, format FrameFormat) (*WireFrame, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: message too short (%d bytes)", ErrAcquisitionFault, len(buf))
	}
	if [4]byte(buf[0:4]) != frameMagic {
		return nil, fmt.Errorf("%w: bad magic % x", ErrAcquisitionFault, buf[0:4])
	}
	if buf[4] != wireVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrAcquisitionFault, buf[4])
	}

	payloadLen := binary.LittleEndian.Uint32(buf[12:16])
	if want := format.PayloadSize(); payloadLen != uint32(want) {
		return nil, fmt.Errorf("%w: payload length %d, want %d", ErrAcquisitionFault, payloadLen, want)
	}
	if len(buf) != headerSize+int(payloadLen) {
		return nil, fmt.Errorf("%w: message length %d, want %d", ErrAcquisitionFault, len(buf), headerSize+int(payloadLen))
	}

	payload := buf[headerSize:]
	if sum := crc32.ChecksumIEEE(payload); sum != binary.LittleEndian.Uint32(buf[16:20]) {
		return nil, fmt.Errorf("%w: CRC mismatch", ErrAcquisitionFault)
	}

	return &WireFrame{
		Seq:     binary.LittleEndian.Uint32(buf[8:12]),
		Flags:   buf[5],
		Samples: UnpackSamples(payload, format.SamplesPerFrame()),
	}, nil
}

// PackSamples packs 12-bit samples two per three bytes. The sample count
// must be even; values above 4095 are truncated to 12 bits.
func PackSamples(samples []uint16) []byte {
	out := make([]byte, len(samples)*3/2)
	for i := 0; i+1 < len(samples); i += 2 {
		s0 := samples[i] & 0x0FFF
		s1 := samples[i+1] & 0x0FFF
		j := i / 2 * 3
		out[j] = byte(s0)
		out[j+1] = byte(s0>>8) | byte(s1&0x0F)<<4
		out[j+2] = byte(s1 >> 4)
	}
	return out
}

// UnpackSamples reverses PackSamples.
func UnpackSamples(data []byte, n int) []uint16 {
	out := make([]uint16, n)
	for i := 0; i+1 < n; i += 2 {
		j := i / 2 * 3
		out[i] = uint16(data[j]) | uint16(data[j+1]&0x0F)<<8
		out[i+1] = uint16(data[j+1])>>4 | uint16(data[j+2])<<4
	}
	return out
}

// RawFrame is an acquired frame with samples normalised to [-1, 1),
// still in channel-major order.
type RawFrame struct {
	Seq       uint32
	Timestamp time.Time
	Flags     uint8
	Format    FrameFormat
	Samples   []float64
}

// Chirp returns the samples for one chirp of one channel. The returned
// slice aliases the frame's sample buffer.
func (f *RawFrame) Chirp(channel, chirp int) []float64 {
	n := f.Format.SamplesPerChirp
	off := (channel*f.Format.ChirpsPerFrame + chirp) * n
	return f.Samples[off : off+n]
}

// Normalize converts raw ADC counts to floats centred on zero.
func Normalize(raw []uint16) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)/adcMid - 1.0
	}
	return out
}
