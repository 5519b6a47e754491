package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/monitoring"
	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
)

// recorderQueueDepth buffers enough frames to ride out a sqlite write
// stall of a few seconds at 10 Hz.
const recorderQueueDepth = 64

type queuedFrame struct {
	seq     uint32
	ts      time.Time
	flags   uint8
	payload []byte
}

// Recorder tees frames into a capture session on its own goroutine.
// Enqueueing never blocks; frames are dropped (and counted) if the
// writer cannot keep up.
type Recorder struct {
	store     *Store
	sessionID string
	channel   chan queuedFrame
	drops     atomic.Uint64
}

// NewRecorder creates a capture session and a recorder feeding it.
func NewRecorder(store *Store, format radar.FrameFormat, frameRateHz float64) (*Recorder, error) {
	sessionID, err := store.CreateSession(format, frameRateHz, time.Now())
	if err != nil {
		return nil, err
	}
	return &Recorder{
		store:     store,
		sessionID: sessionID,
		channel:   make(chan queuedFrame, recorderQueueDepth),
	}, nil
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Start begins the writer goroutine.
func (r *Recorder) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-r.channel:
				if err := r.store.AppendFrame(r.sessionID, f.seq, f.ts, f.flags, f.payload); err != nil {
					monitoring.Logf("recorder: %v", err)
				}
			}
		}
	}()
	monitoring.Logf("recording frames to session %s", r.sessionID)
}

// Record enqueues one frame without blocking.
func (r *Recorder) Record(wf *radar.WireFrame, ts time.Time) {
	f := queuedFrame{
		seq:     wf.Seq,
		ts:      ts,
		flags:   wf.Flags,
		payload: radar.PackSamples(wf.Samples),
	}
	select {
	case r.channel <- f:
	default:
		r.drops.Add(1)
	}
}

// Drops returns the number of frames lost to writer backpressure.
func (r *Recorder) Drops() uint64 {
	return r.drops.Load()
}

// RecordingSensor decorates a Sensor, teeing every frame it delivers
// into a recorder.
type RecordingSensor struct {
	radar.Sensor
	recorder *Recorder
}

// NewRecordingSensor wraps sensor so its frames are also recorded.
func NewRecordingSensor(sensor radar.Sensor, recorder *Recorder) *RecordingSensor {
	return &RecordingSensor{Sensor: sensor, recorder: recorder}
}

// ReadFrame reads from the wrapped sensor and records successes.
func (s *RecordingSensor) ReadFrame(ctx context.Context) (*radar.WireFrame, error) {
	wf, err := s.Sensor.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(wf, time.Now())
	return wf, nil
}
