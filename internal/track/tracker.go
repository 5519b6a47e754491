package track

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/detect"
)

// Association strategies.
const (
	AssociateGreedy    = "greedy"
	AssociateHungarian = "hungarian"
)

// initialCovariance seeds P for new and re-synced tracks.
const initialCovariance = 1.0

// Config holds the tracker's tuning parameters.
type Config struct {
	MaxTracks         int
	HitsToConfirm     int     // consecutive hits to promote tentative -> confirmed
	MaxCoastingMisses int     // misses beyond which a coasting track is dropped
	GatingDistanceM   float64 // maximum association cost, in metres
	AngleWeight       float64 // metres of cost per degree of bearing difference
	ProcessNoisePos   float64
	ProcessNoiseVel   float64
	MeasurementNoise  float64
	MaxRangeM         float64 // measurements beyond this never seed a track
	Association       string  // AssociateGreedy or AssociateHungarian
}

// Tracker runs the per-frame track lifecycle: predict, associate,
// correct, coast, seed, drop. Not safe for concurrent use; the pipeline
// owns it.
type Tracker struct {
	cfg   Config
	arena *Arena

	lastUpdate time.Time
	scratch    []*Track
}

// NewTracker validates the config and builds a tracker.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.MaxTracks < 1 {
		return nil, fmt.Errorf("max tracks must be at least 1, got %d", cfg.MaxTracks)
	}
	if cfg.HitsToConfirm < 1 {
		return nil, fmt.Errorf("hits to confirm must be at least 1, got %d", cfg.HitsToConfirm)
	}
	if cfg.GatingDistanceM <= 0 {
		return nil, fmt.Errorf("gating distance must be positive, got %f", cfg.GatingDistanceM)
	}
	if cfg.Association != AssociateGreedy && cfg.Association != AssociateHungarian {
		return nil, fmt.Errorf("association must be %q or %q, got %q", AssociateGreedy, AssociateHungarian, cfg.Association)
	}
	return &Tracker{
		cfg:   cfg,
		arena: NewArena(cfg.MaxTracks),
	}, nil
}

// Update consumes one frame's detections.
func (t *Tracker) Update(detections []detect.Detection, now time.Time) {
	var dt float64
	if !t.lastUpdate.IsZero() {
		dt = now.Sub(t.lastUpdate).Seconds()
	} else {
		dt = 0.1
	}
	t.lastUpdate = now

	t.scratch = t.arena.Live(t.scratch[:0])
	live := t.scratch

	// Step 1: predict all live tracks to current time. Coasting tracks
	// advance on their last velocity; a zero-velocity track holds
	// position exactly.
	for _, tr := range live {
		tr.predict(dt, t.cfg.ProcessNoisePos, t.cfg.ProcessNoiseVel)
	}

	// Step 2: gated association.
	assignments := t.associate(detections, live)

	// Step 3: fold matched measurements in and promote.
	matched := make([]bool, len(live))
	for di, ti := range assignments {
		if ti < 0 {
			continue
		}
		tr := live[ti]
		matched[ti] = true
		det := detections[di]

		if tr.State == StateCoasting {
			// A coasting track's covariance no longer reflects reality;
			// re-anchor on the measurement rather than blending with a
			// stale prediction.
			tr.resync(det.RangeM, initialCovariance)
			tr.State = StateConfirmed
		} else {
			tr.correct(det.RangeM, t.cfg.MeasurementNoise)
		}
		tr.observe(det.AngleDeg, det.Amplitude)
		tr.Hits++
		tr.Misses = 0
		tr.LastSeen = now

		if tr.State == StateTentative && tr.Hits >= t.cfg.HitsToConfirm {
			tr.State = StateConfirmed
		}
	}

	// Step 4: unmatched tracks miss.
	for ti, tr := range live {
		if matched[ti] {
			continue
		}
		tr.Hits = 0
		tr.Misses++
		switch tr.State {
		case StateTentative:
			// A tentative track gets no grace: one miss and it is gone.
			t.arena.Release(tr)
		case StateConfirmed:
			tr.State = StateCoasting
		case StateCoasting:
			if tr.Misses > t.cfg.MaxCoastingMisses {
				t.arena.Release(tr)
			}
		}
	}

	// Step 5: seed new tracks from unmatched detections.
	for di, ti := range assignments {
		if ti >= 0 {
			continue
		}
		det := detections[di]
		if det.RangeM < 0 || det.RangeM > t.cfg.MaxRangeM {
			continue
		}
		tr := t.arena.Alloc()
		if tr == nil {
			break // arena full
		}
		tr.RangeM = det.RangeM
		tr.AngleDeg = det.AngleDeg
		tr.Amplitude = det.Amplitude
		tr.P = [4]float64{initialCovariance, 0, 0, initialCovariance}
		tr.Hits = 1
		tr.FirstSeen = now
		tr.LastSeen = now
	}
}

// associate assigns detections to live tracks under the gate. Returns
// assignments[detection] = live-track index or -1.
func (t *Tracker) associate(detections []detect.Detection, live []*Track) []int {
	if t.cfg.Association == AssociateHungarian {
		return t.associateHungarian(detections, live)
	}
	return t.associateGreedy(detections, live)
}

// cost is the gated association metric: range distance plus a weighted
// bearing term when both sides carry one.
func (t *Tracker) cost(det detect.Detection, tr *Track) float64 {
	c := math.Abs(det.RangeM - tr.RangeM)
	if !math.IsNaN(det.AngleDeg) && !math.IsNaN(tr.AngleDeg) {
		c += t.cfg.AngleWeight * math.Abs(det.AngleDeg-tr.AngleDeg)
	}
	return c
}

type candidate struct {
	cost      float64
	det       int
	track     int
	amplitude float64
}

// associateGreedy assigns candidate pairs in ascending cost order,
// breaking ties in favour of the stronger detection.
func (t *Tracker) associateGreedy(detections []detect.Detection, live []*Track) []int {
	assignments := make([]int, len(detections))
	for i := range assignments {
		assignments[i] = -1
	}

	var candidates []candidate
	for di, det := range detections {
		for ti, tr := range live {
			if c := t.cost(det, tr); c <= t.cfg.GatingDistanceM {
				candidates = append(candidates, candidate{c, di, ti, det.Amplitude})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].cost != candidates[j].cost {
			return candidates[i].cost < candidates[j].cost
		}
		return candidates[i].amplitude > candidates[j].amplitude
	})

	detUsed := make([]bool, len(detections))
	trackUsed := make([]bool, len(live))
	for _, c := range candidates {
		if detUsed[c.det] || trackUsed[c.track] {
			continue
		}
		assignments[c.det] = c.track
		detUsed[c.det] = true
		trackUsed[c.track] = true
	}
	return assignments
}

// associateHungarian builds the gated cost matrix and solves it
// optimally.
func (t *Tracker) associateHungarian(detections []detect.Detection, live []*Track) []int {
	if len(detections) == 0 {
		return nil
	}
	cost := make([][]float64, len(detections))
	for di, det := range detections {
		row := make([]float64, len(live))
		for ti, tr := range live {
			if c := t.cost(det, tr); c <= t.cfg.GatingDistanceM {
				row[ti] = c
			} else {
				row[ti] = forbiddenCost
			}
		}
		cost[di] = row
	}
	return hungarianAssign(cost)
}

// Snapshot copies the reportable tracks (confirmed and coasting),
// ordered by ascending range.
func (t *Tracker) Snapshot() []Track {
	var out []Track
	for _, tr := range t.arena.Live(nil) {
		if tr.State == StateConfirmed || tr.State == StateCoasting {
			out = append(out, *tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RangeM < out[j].RangeM })
	return out
}

// Counts returns the number of live tracks per state.
func (t *Tracker) Counts() (tentative, confirmed, coasting int) {
	for _, tr := range t.arena.Live(nil) {
		switch tr.State {
		case StateTentative:
			tentative++
		case StateConfirmed:
			confirmed++
		case StateCoasting:
			coasting++
		}
	}
	return
}
