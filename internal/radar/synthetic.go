package radar

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/timeutil"
)

// SyntheticTarget is a simulated mover for dev mode and tests.
type SyntheticTarget struct {
	RangeM     float64
	VelocityMS float64 // positive = receding
	AngleDeg   float64
	Amplitude  float64 // ADC counts of beat-tone amplitude
}

// SyntheticSensor generates frames containing the beat tones that real
// targets would produce: one sinusoid per target whose frequency maps to
// its range bin, with a per-channel phase shift encoding its bearing.
type SyntheticSensor struct {
	format    FrameFormat
	maxRangeM float64
	frameRate float64
	targets   []SyntheticTarget

	seq      uint32
	next     time.Time
	throttle bool
	clock    timeutil.Clock
	rng      *rand.Rand
}

// NewSyntheticSensor builds a sensor emitting frames at frameRate with
// the given targets. Targets advance by their velocity each frame.
func NewSyntheticSensor(format FrameFormat, maxRangeM, frameRate float64, targets []SyntheticTarget) *SyntheticSensor {
	return &SyntheticSensor{
		format:    format,
		maxRangeM: maxRangeM,
		frameRate: frameRate,
		targets:   append([]SyntheticTarget(nil), targets...),
		throttle:  true,
		clock:     timeutil.RealClock{},
		rng:       rand.New(rand.NewSource(42)),
	}
}

// SetThrottle disables frame pacing when false; tests use this to pull
// frames as fast as they can.
func (s *SyntheticSensor) SetThrottle(throttle bool) {
	s.throttle = throttle
}

// ReadFrame waits for the next frame slot and synthesises a frame.
func (s *SyntheticSensor) ReadFrame(ctx context.Context) (*WireFrame, error) {
	if s.throttle {
		now := s.clock.Now()
		if s.next.IsZero() {
			s.next = now
		}
		if wait := s.next.Sub(now); wait > 0 {
			timer := s.clock.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ErrAcquisitionTimeout
			case <-timer.C():
			}
		}
		s.next = s.next.Add(time.Duration(float64(time.Second) / s.frameRate))
	}

	wf := &WireFrame{Seq: s.seq, Samples: s.synthesize()}
	s.seq++
	s.advance()
	return wf, nil
}

// synthesize renders all channels of one frame as 12-bit ADC counts.
func (s *SyntheticSensor) synthesize() []uint16 {
	n := s.format.SamplesPerChirp
	binCount := n / 2
	binWidth := s.maxRangeM / float64(binCount)

	samples := make([]uint16, s.format.SamplesPerFrame())
	idx := 0
	for ch := 0; ch < s.format.Channels; ch++ {
		for chirp := 0; chirp < s.format.ChirpsPerFrame; chirp++ {
			for i := 0; i < n; i++ {
				v := float64(adcMid)
				for _, t := range s.targets {
					if t.RangeM <= 0 || t.RangeM >= s.maxRangeM {
						continue
					}
					bin := t.RangeM / binWidth
					// Half-wavelength element spacing: the bearing shows
					// up as pi*sin(angle) of phase per channel.
					phase := float64(ch) * math.Pi * math.Sin(t.AngleDeg*math.Pi/180)
					v += t.Amplitude * math.Cos(2*math.Pi*bin*float64(i)/float64(n)+phase)
				}
				v += s.rng.NormFloat64() * 2.0
				if v < 0 {
					v = 0
				}
				if v > 4095 {
					v = 4095
				}
				samples[idx] = uint16(v)
				idx++
			}
		}
	}
	return samples
}

// advance moves every target by one frame interval.
func (s *SyntheticSensor) advance() {
	dt := 1.0 / s.frameRate
	for i := range s.targets {
		s.targets[i].RangeM += s.targets[i].VelocityMS * dt
	}
}

// Format returns the sensor's frame geometry.
func (s *SyntheticSensor) Format() FrameFormat {
	return s.format
}

// Close is a no-op.
func (s *SyntheticSensor) Close() error {
	return nil
}
