package capture

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
	"github.com/RobSmithDev/alienmotiontracker/internal/timeutil"
)

// ReplaySensor plays a recorded session back through the Sensor
// interface. With throttling on (the default) frames are delivered on
// the recorded timeline; off, as fast as the consumer pulls them.
// ReadFrame returns io.EOF when the session is exhausted.
type ReplaySensor struct {
	format   radar.FrameFormat
	frames   []StoredFrame
	i        int
	throttle bool
	clock    timeutil.Clock
	started  time.Time
}

// NewReplaySensor loads a session from the store.
func NewReplaySensor(store *Store, sessionID string) (*ReplaySensor, error) {
	meta, err := store.Session(sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	frames, err := store.Frames(sessionID)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("session %s has no frames", sessionID)
	}
	return &ReplaySensor{
		format:   meta.Format,
		frames:   frames,
		throttle: true,
		clock:    timeutil.RealClock{},
	}, nil
}

// Format returns the recorded frame geometry.
func (s *ReplaySensor) Format() radar.FrameFormat {
	return s.format
}

// SetThrottle disables timeline pacing when false.
func (s *ReplaySensor) SetThrottle(throttle bool) {
	s.throttle = throttle
}

// ReadFrame delivers the next recorded frame.
func (s *ReplaySensor) ReadFrame(ctx context.Context) (*radar.WireFrame, error) {
	if s.i >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.i]

	if s.throttle {
		if s.started.IsZero() {
			s.started = s.clock.Now()
		}
		due := s.started.Add(f.Timestamp.Sub(s.frames[0].Timestamp))
		if wait := s.clock.Until(due); wait > 0 {
			timer := s.clock.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, radar.ErrAcquisitionTimeout
			case <-timer.C():
			}
		}
	}
	s.i++

	// A truncated row would panic in UnpackSamples; surface it as a
	// recoverable fault so replay skips the frame and carries on.
	if want := s.format.PayloadSize(); len(f.Payload) < want {
		return nil, fmt.Errorf("%w: frame %d payload %d bytes, want %d",
			radar.ErrAcquisitionFault, f.Seq, len(f.Payload), want)
	}

	return &radar.WireFrame{
		Seq:     f.Seq,
		Flags:   f.Flags,
		Samples: radar.UnpackSamples(f.Payload, s.format.SamplesPerFrame()),
	}, nil
}

// Close is a no-op; the store is owned by the caller.
func (s *ReplaySensor) Close() error {
	return nil
}
