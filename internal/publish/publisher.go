package publish

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RobSmithDev/alienmotiontracker/internal/track"
)

// gainDecay is the per-frame retention of the running amplitude
// reference used to normalise strengths. At 10 Hz the reference halves
// in roughly two minutes of silence.
const gainDecay = 0.995

// gainFloor keeps the reference away from zero so an empty room does
// not blow the first detection up to full strength noise.
const gainFloor = 1e-6

// Sink consumes encoded snapshot messages. TryPublish must never
// block; it reports whether the message was accepted.
type Sink interface {
	TryPublish(msg []byte) bool
}

// Publisher converts tracker snapshots into Records, keeps the
// overwrite-latest buffer current and fans encoded messages out to
// sinks. Dropped sink handoffs are counted, never waited on.
type Publisher struct {
	epoch   uuid.UUID
	gainRef float64
	latest  Latest
	sinks   []Sink

	mu    sync.Mutex
	drops uint64
}

// NewPublisher starts a fresh epoch.
func NewPublisher(sinks ...Sink) *Publisher {
	return &Publisher{
		epoch:   uuid.New(),
		gainRef: gainFloor,
		sinks:   sinks,
	}
}

// Epoch returns the publisher's epoch ID.
func (p *Publisher) Epoch() uuid.UUID {
	return p.epoch
}

// Publish builds and distributes the snapshot for one frame. tracks
// must already be the reportable set in ascending range order, as
// returned by the tracker's Snapshot.
func (p *Publisher) Publish(seq uint32, ts time.Time, tracks []track.Track) *Snapshot {
	// Automatic gain: ride the loudest recent track, decay slowly.
	p.gainRef *= gainDecay
	for _, tr := range tracks {
		if tr.Amplitude > p.gainRef {
			p.gainRef = tr.Amplitude
		}
	}
	if p.gainRef < gainFloor {
		p.gainRef = gainFloor
	}

	s := &Snapshot{
		Epoch:     p.epoch,
		Seq:       seq,
		Timestamp: ts,
		Records:   make([]Record, 0, len(tracks)),
	}
	for _, tr := range tracks {
		strength := tr.Amplitude / p.gainRef
		if strength > 1 {
			strength = 1
		} else if strength < 0 {
			strength = 0
		}
		s.Records = append(s.Records, Record{
			ID:       tr.ID,
			RangeM:   float32(tr.RangeM),
			AngleDeg: float32(tr.AngleDeg),
			Strength: float32(strength),
		})
	}

	p.latest.Store(s)

	if len(p.sinks) > 0 {
		msg := s.Encode()
		for _, sink := range p.sinks {
			if !sink.TryPublish(msg) {
				p.mu.Lock()
				p.drops++
				p.mu.Unlock()
			}
		}
	}
	return s
}

// Latest returns the overwrite-latest buffer for pull consumers.
func (p *Publisher) Latest() *Latest {
	return &p.latest
}

// Drops returns the number of sink handoffs dropped to backpressure.
func (p *Publisher) Drops() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drops
}

// strengthValid reports whether a strength survived normalisation as a
// sane value; used by tests and the monitor.
func strengthValid(s float32) bool {
	return !math.IsNaN(float64(s)) && s >= 0 && s <= 1
}
