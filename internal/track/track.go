// Package track maintains multi-target track state across frames: the
// only cross-frame state in the pipeline besides the background
// estimate.
package track

import (
	"math"
	"time"
)

// State is the lifecycle state of a track.
type State uint8

const (
	StateTentative State = iota // new track, needs confirmation
	StateConfirmed              // stable track with sufficient history
	StateCoasting               // confirmed track currently unmatched
	StateDropped                // slot is free
)

func (s State) String() string {
	switch s {
	case StateTentative:
		return "tentative"
	case StateConfirmed:
		return "confirmed"
	case StateCoasting:
		return "coasting"
	case StateDropped:
		return "dropped"
	}
	return "unknown"
}

// smoothing factor for the EWMA on angle and amplitude
const featureRetention = 0.7

// Track is one tracked mover. The filter state is a constant-velocity
// model on (range, range-rate); bearing and amplitude are smoothed
// observations, not filter states.
type Track struct {
	ID    uint32
	State State

	Hits   int // consecutive successful associations
	Misses int // consecutive missed associations

	FirstSeen time.Time
	LastSeen  time.Time

	// Kalman state: [range, range-rate]
	RangeM float64
	RateMS float64

	// Kalman covariance (2x2, row-major)
	P [4]float64

	AngleDeg  float64 // NaN until a bearing has been observed
	Amplitude float64
}

// predict advances the constant-velocity model by dt seconds.
func (tr *Track) predict(dt, qPos, qVel float64) {
	tr.RangeM += tr.RateMS * dt

	// P' = F P F^T + Q with F = [1 dt; 0 1]
	p00, p01, p10, p11 := tr.P[0], tr.P[1], tr.P[2], tr.P[3]
	tr.P[0] = p00 + dt*(p10+p01) + dt*dt*p11 + qPos
	tr.P[1] = p01 + dt*p11
	tr.P[2] = p10 + dt*p11
	tr.P[3] = p11 + qVel
}

// correct folds a range measurement into the filter.
func (tr *Track) correct(z, measurementNoise float64) {
	y := z - tr.RangeM
	s := tr.P[0] + measurementNoise
	if s <= 0 {
		return
	}
	k0 := tr.P[0] / s
	k1 := tr.P[2] / s

	tr.RangeM += k0 * y
	tr.RateMS += k1 * y

	p00, p01 := tr.P[0], tr.P[1]
	tr.P[0] = (1 - k0) * p00
	tr.P[1] = (1 - k0) * p01
	tr.P[2] = tr.P[2] - k1*p00
	tr.P[3] = tr.P[3] - k1*p01
}

// resync re-anchors a coasting track on a fresh measurement: position
// snaps to the measurement, velocity carries over, covariance restarts.
func (tr *Track) resync(z, pInit float64) {
	tr.RangeM = z
	tr.P = [4]float64{pInit, 0, 0, pInit}
}

// observe smooths the non-filter features from a matched detection.
func (tr *Track) observe(angleDeg, amplitude float64) {
	if !math.IsNaN(angleDeg) {
		if math.IsNaN(tr.AngleDeg) {
			tr.AngleDeg = angleDeg
		} else {
			tr.AngleDeg = featureRetention*tr.AngleDeg + (1-featureRetention)*angleDeg
		}
	}
	tr.Amplitude = featureRetention*tr.Amplitude + (1-featureRetention)*amplitude
}
