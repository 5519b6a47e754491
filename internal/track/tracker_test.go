package track

import (
	"math"
	"testing"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/detect"
)

func testTrackerConfig() Config {
	return Config{
		MaxTracks:         16,
		HitsToConfirm:     3,
		MaxCoastingMisses: 5,
		GatingDistanceM:   0.6,
		AngleWeight:       0.02,
		ProcessNoisePos:   0.05,
		ProcessNoiseVel:   0.2,
		MeasurementNoise:  0.1,
		MaxRangeM:         12.0,
		Association:       AssociateGreedy,
	}
}

func newTestTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tr, err := NewTracker(cfg)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tr
}

// stepper hands out frame timestamps 100ms apart.
type stepper struct{ now time.Time }

func newStepper() *stepper {
	return &stepper{now: time.Unix(1000, 0)}
}

func (s *stepper) next() time.Time {
	s.now = s.now.Add(100 * time.Millisecond)
	return s.now
}

func det(rangeM float64) detect.Detection {
	return detect.Detection{RangeM: rangeM, AngleDeg: math.NaN(), Amplitude: 1.0}
}

func TestTrackerConfirmsAfterKHits(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()

	for i := 0; i < 2; i++ {
		tk.Update([]detect.Detection{det(5.0)}, clock.next())
		tentative, confirmed, _ := tk.Counts()
		if confirmed != 0 {
			t.Fatalf("frame %d: confirmed = %d, want 0", i, confirmed)
		}
		if tentative != 1 {
			t.Fatalf("frame %d: tentative = %d, want 1", i, tentative)
		}
	}
	tk.Update([]detect.Detection{det(5.0)}, clock.next())
	_, confirmed, _ := tk.Counts()
	if confirmed != 1 {
		t.Fatalf("confirmed = %d, want 1 after 3 hits", confirmed)
	}
}

func TestTrackerTentativeDroppedOnOneMiss(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()

	tk.Update([]detect.Detection{det(5.0)}, clock.next())
	tk.Update(nil, clock.next())

	tentative, confirmed, coasting := tk.Counts()
	if tentative+confirmed+coasting != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero", tentative, confirmed, coasting)
	}
}

func confirmTrack(tk *Tracker, clock *stepper, rangeM float64) {
	for i := 0; i < 3; i++ {
		tk.Update([]detect.Detection{det(rangeM)}, clock.next())
	}
}

func TestTrackerCoastingLifecycle(t *testing.T) {
	cfg := testTrackerConfig()
	tk := newTestTracker(t, cfg)
	clock := newStepper()
	confirmTrack(tk, clock, 5.0)

	// First miss: confirmed -> coasting.
	tk.Update(nil, clock.next())
	_, confirmed, coasting := tk.Counts()
	if confirmed != 0 || coasting != 1 {
		t.Fatalf("after miss: confirmed=%d coasting=%d, want 0/1", confirmed, coasting)
	}

	// Up to MaxCoastingMisses total misses the track survives.
	for i := 1; i < cfg.MaxCoastingMisses; i++ {
		tk.Update(nil, clock.next())
	}
	if _, _, coasting := tk.Counts(); coasting != 1 {
		t.Fatalf("track dropped too early")
	}

	// One more miss exceeds the budget.
	tk.Update(nil, clock.next())
	tentative, confirmed, coasting := tk.Counts()
	if tentative+confirmed+coasting != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero", tentative, confirmed, coasting)
	}
}

func TestTrackerCoastingRecovery(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()
	confirmTrack(tk, clock, 5.0)

	tk.Update(nil, clock.next())
	tk.Update(nil, clock.next())

	// The mover reappears near its last position: same track resumes
	// immediately, no fresh confirmation needed.
	before := tk.Snapshot()
	tk.Update([]detect.Detection{det(5.1)}, clock.next())
	after := tk.Snapshot()

	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("snapshots = %d/%d tracks, want 1/1", len(before), len(after))
	}
	if before[0].ID != after[0].ID {
		t.Errorf("recovery changed track ID %d -> %d", before[0].ID, after[0].ID)
	}
	if after[0].State != StateConfirmed {
		t.Errorf("state = %v, want confirmed", after[0].State)
	}
	// Re-sync anchors position on the measurement.
	if math.Abs(after[0].RangeM-5.1) > 1e-9 {
		t.Errorf("range = %f, want re-synced to 5.1", after[0].RangeM)
	}
}

func TestTrackerCoastingHoldsStationaryPosition(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()
	confirmTrack(tk, clock, 5.0)

	snap := tk.Snapshot()
	startRange := snap[0].RangeM

	for i := 0; i < 3; i++ {
		tk.Update(nil, clock.next())
	}
	snap = tk.Snapshot()
	// The track never saw motion, so its velocity estimate is ~0 and
	// coasting must hold position.
	if math.Abs(snap[0].RangeM-startRange) > 0.05 {
		t.Errorf("coasting drifted from %f to %f", startRange, snap[0].RangeM)
	}
}

func TestTrackerFollowsMovingTarget(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()

	// Approaching at 0.5 m/s sampled at 10 Hz: 5 cm per frame, well
	// inside the gate.
	r := 8.0
	for i := 0; i < 20; i++ {
		tk.Update([]detect.Detection{det(r)}, clock.next())
		r -= 0.05
	}
	snap := tk.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("tracks = %d, want 1 (no splitting)", len(snap))
	}
	if math.Abs(snap[0].RangeM-(r+0.05)) > 0.2 {
		t.Errorf("range = %f, want ~%f", snap[0].RangeM, r+0.05)
	}
	if snap[0].RateMS >= 0 {
		t.Errorf("range rate = %f, want negative (approaching)", snap[0].RateMS)
	}
}

func TestTrackerSeparateTargets(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()

	for i := 0; i < 3; i++ {
		tk.Update([]detect.Detection{det(3.0), det(9.0)}, clock.next())
	}
	snap := tk.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("tracks = %d, want 2", len(snap))
	}
	if snap[0].ID == snap[1].ID {
		t.Error("both targets share a track ID")
	}
	if snap[0].RangeM > snap[1].RangeM {
		t.Error("snapshot not ordered by ascending range")
	}
}

func TestTrackerOutOfRangeNeverSeeds(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()

	tk.Update([]detect.Detection{det(15.0)}, clock.next())
	tentative, confirmed, coasting := tk.Counts()
	if tentative+confirmed+coasting != 0 {
		t.Errorf("out-of-range detection seeded a track")
	}
}

func TestTrackerMaxTracksBound(t *testing.T) {
	cfg := testTrackerConfig()
	cfg.MaxTracks = 2
	tk := newTestTracker(t, cfg)
	clock := newStepper()

	tk.Update([]detect.Detection{det(2.0), det(5.0), det(8.0)}, clock.next())
	tentative, _, _ := tk.Counts()
	if tentative != 2 {
		t.Errorf("tentative = %d, want 2 (arena bound)", tentative)
	}
}

func TestTrackerGreedyAmplitudeTieBreak(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()
	confirmTrack(tk, clock, 5.0)
	id := tk.Snapshot()[0].ID

	// Two detections equidistant from the track; the stronger one wins
	// the association, the weaker seeds a new track.
	strong := detect.Detection{RangeM: 5.2, AngleDeg: math.NaN(), Amplitude: 2.0}
	weak := detect.Detection{RangeM: 4.8, AngleDeg: math.NaN(), Amplitude: 0.5}
	tk.Update([]detect.Detection{weak, strong}, clock.next())

	snap := tk.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("confirmed tracks = %d, want 1", len(snap))
	}
	if snap[0].ID != id {
		t.Fatalf("track ID changed")
	}
	// The track moved towards the strong detection, not the weak one.
	if snap[0].RangeM <= 5.0 {
		t.Errorf("range = %f, want pulled above 5.0 by the stronger detection", snap[0].RangeM)
	}
}

func TestTrackerGreedyHungarianAgreeUncontended(t *testing.T) {
	clock1, clock2 := newStepper(), newStepper()

	greedy := newTestTracker(t, testTrackerConfig())
	cfg := testTrackerConfig()
	cfg.Association = AssociateHungarian
	optimal := newTestTracker(t, cfg)

	frames := [][]detect.Detection{
		{det(2.0), det(6.0), det(10.0)},
		{det(2.1), det(6.0), det(9.9)},
		{det(2.2), det(6.1), det(9.8)},
		{det(2.3), det(6.1), det(9.7)},
	}
	for _, dets := range frames {
		greedy.Update(dets, clock1.next())
		optimal.Update(dets, clock2.next())
	}

	g, o := greedy.Snapshot(), optimal.Snapshot()
	if len(g) != len(o) {
		t.Fatalf("track counts differ: greedy %d, hungarian %d", len(g), len(o))
	}
	for i := range g {
		if math.Abs(g[i].RangeM-o[i].RangeM) > 0.05 {
			t.Errorf("track %d: greedy range %f, hungarian %f", i, g[i].RangeM, o[i].RangeM)
		}
	}
}

func TestTrackerAngleSmoothing(t *testing.T) {
	tk := newTestTracker(t, testTrackerConfig())
	clock := newStepper()

	d := detect.Detection{RangeM: 5.0, AngleDeg: 10.0, Amplitude: 1.0}
	for i := 0; i < 5; i++ {
		tk.Update([]detect.Detection{d}, clock.next())
	}
	snap := tk.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("tracks = %d, want 1", len(snap))
	}
	if math.Abs(snap[0].AngleDeg-10.0) > 1e-9 {
		t.Errorf("angle = %f, want 10.0", snap[0].AngleDeg)
	}

	// A NaN bearing leaves the smoothed angle untouched.
	tk.Update([]detect.Detection{det(5.0)}, clock.next())
	snap = tk.Snapshot()
	if math.Abs(snap[0].AngleDeg-10.0) > 1e-9 {
		t.Errorf("angle after NaN observation = %f, want 10.0", snap[0].AngleDeg)
	}
}

func TestNewTrackerRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max tracks", func(c *Config) { c.MaxTracks = 0 }},
		{"zero hits", func(c *Config) { c.HitsToConfirm = 0 }},
		{"zero gate", func(c *Config) { c.GatingDistanceM = 0 }},
		{"bad association", func(c *Config) { c.Association = "jpda" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTrackerConfig()
			tt.mutate(&cfg)
			if _, err := NewTracker(cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
