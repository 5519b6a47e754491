package radar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/timeutil"
)

// Sensor delivers raw frames from some transport. ReadFrame blocks until
// a frame arrives, the context expires (ErrAcquisitionTimeout), or the
// transport fails. Implementations are not safe for concurrent use.
type Sensor interface {
	ReadFrame(ctx context.Context) (*WireFrame, error)
	Close() error
}

// Acquirer wraps a Sensor with the per-frame policy the pipeline needs:
// read timeouts, consecutive-timeout escalation, stale-sequence discard
// and sample normalisation.
type Acquirer struct {
	sensor      Sensor
	format      FrameFormat
	readTimeout time.Duration
	maxTimeouts int

	timeouts int
	lastSeq  uint32
	haveSeq  bool

	clock timeutil.Clock
}

// NewAcquirer builds an Acquirer. maxTimeouts is the number of
// consecutive timeouts tolerated before the sensor is declared lost.
func NewAcquirer(sensor Sensor, format FrameFormat, readTimeout time.Duration, maxTimeouts int) *Acquirer {
	return &Acquirer{
		sensor:      sensor,
		format:      format,
		readTimeout: readTimeout,
		maxTimeouts: maxTimeouts,
		clock:       timeutil.RealClock{},
	}
}

// Next blocks for up to the read timeout and returns the next frame.
// Timeouts and faults are recoverable: the caller should count them and
// call Next again. ErrSensorLost and transport errors are terminal.
func (a *Acquirer) Next(ctx context.Context) (*RawFrame, error) {
	readCtx, cancel := context.WithTimeout(ctx, a.readTimeout)
	defer cancel()

	wf, err := a.sensor.ReadFrame(readCtx)
	if err != nil {
		if errors.Is(err, ErrAcquisitionTimeout) {
			// Distinguish parent cancellation from a genuine read timeout.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.timeouts++
			if a.timeouts >= a.maxTimeouts {
				return nil, fmt.Errorf("%w: %d consecutive timeouts", ErrSensorLost, a.timeouts)
			}
			return nil, err
		}
		return nil, err
	}
	a.timeouts = 0

	if a.haveSeq && wf.Seq == a.lastSeq {
		return nil, fmt.Errorf("%w: stale frame seq %d", ErrAcquisitionFault, wf.Seq)
	}
	a.lastSeq = wf.Seq
	a.haveSeq = true

	if got, want := len(wf.Samples), a.format.SamplesPerFrame(); got != want {
		return nil, fmt.Errorf("%w: %d samples, want %d", ErrAcquisitionFault, got, want)
	}

	return &RawFrame{
		Seq:       wf.Seq,
		Timestamp: a.clock.Now(),
		Flags:     wf.Flags,
		Format:    a.format,
		Samples:   Normalize(wf.Samples),
	}, nil
}

// Close closes the underlying sensor.
func (a *Acquirer) Close() error {
	return a.sensor.Close()
}
