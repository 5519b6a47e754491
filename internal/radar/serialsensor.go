package radar

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/RobSmithDev/alienmotiontracker/internal/monitoring"
)

// SerialSensor reads a framed byte stream from a serial port, resyncing
// on the header magic after any corruption.
type SerialSensor struct {
	port   serial.Port
	format FrameFormat
}

// NewSerialSensor opens portName at the given baud rate.
func NewSerialSensor(portName string, baudRate int, format FrameFormat) (*SerialSensor, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %q: %w", portName, err)
	}
	return &SerialSensor{port: port, format: format}, nil
}

// ReadFrame hunts for the next header magic in the stream, then reads
// and validates a complete frame. A CRC or length failure consumes the
// bad bytes; the next call resyncs on the following magic.
func (s *SerialSensor) ReadFrame(ctx context.Context) (*WireFrame, error) {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrAcquisitionTimeout
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return nil, err
		}
	}

	if err := s.syncToMagic(ctx); err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize+s.format.PayloadSize())
	copy(buf[0:4], frameMagic[:])
	if err := s.readFull(ctx, buf[4:headerSize]); err != nil {
		return nil, err
	}

	// Reject an implausible payload length before committing to a large
	// read; the stream is resynced on the next call.
	payloadLen := binary.LittleEndian.Uint32(buf[12:16])
	if payloadLen != uint32(s.format.PayloadSize()) {
		monitoring.Logf("serial: resyncing after bad payload length %d", payloadLen)
		return nil, fmt.Errorf("%w: payload length %d", ErrAcquisitionFault, payloadLen)
	}

	if err := s.readFull(ctx, buf[headerSize:]); err != nil {
		return nil, err
	}
	return DecodeFrame(buf, s.format)
}

// syncToMagic discards stream bytes until the four magic bytes appear.
func (s *SerialSensor) syncToMagic(ctx context.Context) error {
	var window [4]byte
	b := make([]byte, 1)
	for {
		if err := s.readFull(ctx, b); err != nil {
			return err
		}
		window[0], window[1], window[2] = window[1], window[2], window[3]
		window[3] = b[0]
		if window == frameMagic {
			return nil
		}
	}
}

// readFull fills p from the port. The serial library signals an expired
// read timeout with a zero-byte read and no error.
func (s *SerialSensor) readFull(ctx context.Context, p []byte) error {
	off := 0
	for off < len(p) {
		if ctx.Err() != nil {
			return ErrAcquisitionTimeout
		}
		n, err := s.port.Read(p[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAcquisitionTimeout
		}
		off += n
	}
	return nil
}

// Close closes the serial port.
func (s *SerialSensor) Close() error {
	return s.port.Close()
}
