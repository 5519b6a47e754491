package detect

import (
	"math"
	"testing"

	"github.com/RobSmithDev/alienmotiontracker/internal/dsp"
)

func testDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(Config{
		NoiseMultiplier: 3.0,
		NoiseQuantile:   0.75,
		MinThreshold:    0.05,
		WarmupBoost:     3.0,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

// profileWith builds a quiet profile with the given (bin, energy) spikes.
func profileWith(binCount int, spikes map[int]float64) *dsp.RangeProfile {
	bins := make([]float64, binCount)
	angles := make([]float64, binCount)
	for k := range bins {
		bins[k] = 0.01 // flat noise floor
		angles[k] = math.NaN()
	}
	for k, v := range spikes {
		bins[k] = v
	}
	return &dsp.RangeProfile{Bins: bins, Angles: angles, BinWidthM: 0.375}
}

func TestDetectSingleTarget(t *testing.T) {
	d := testDetector(t)
	profile := profileWith(32, map[int]float64{20: 1.0})

	got := d.Detect(profile)
	if len(got) != 1 {
		t.Fatalf("detections = %d, want 1", len(got))
	}
	want := 20 * 0.375
	if math.Abs(got[0].RangeM-want) > 0.375/2 {
		t.Errorf("range = %f, want ~%f", got[0].RangeM, want)
	}
	if got[0].Amplitude != 1.0 {
		t.Errorf("amplitude = %f, want 1.0", got[0].Amplitude)
	}
	if !math.IsNaN(got[0].AngleDeg) {
		t.Errorf("angle = %f, want NaN", got[0].AngleDeg)
	}
}

func TestDetectQuietProfile(t *testing.T) {
	d := testDetector(t)
	if got := d.Detect(profileWith(32, nil)); len(got) != 0 {
		t.Errorf("detections = %d, want 0", len(got))
	}
}

func TestDetectMergesContiguousRun(t *testing.T) {
	d := testDetector(t)
	// One target smeared over three adjacent bins is one detection.
	profile := profileWith(32, map[int]float64{14: 0.4, 15: 1.0, 16: 0.4})

	got := d.Detect(profile)
	if len(got) != 1 {
		t.Fatalf("detections = %d, want 1", len(got))
	}
	if got[0].Amplitude != 1.0 {
		t.Errorf("amplitude = %f, want the run peak 1.0", got[0].Amplitude)
	}
}

func TestDetectOrderedByRange(t *testing.T) {
	d := testDetector(t)
	profile := profileWith(64, map[int]float64{40: 0.8, 10: 0.5, 25: 1.2})

	got := d.Detect(profile)
	if len(got) != 3 {
		t.Fatalf("detections = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].RangeM < got[i-1].RangeM {
			t.Fatalf("detections not ordered by range: %v", got)
		}
	}
}

func TestDetectSubBinInterpolation(t *testing.T) {
	d := testDetector(t)
	// Asymmetric shoulders pull the refined peak towards the heavier side.
	profile := profileWith(32, map[int]float64{19: 0.2, 20: 1.0, 21: 0.6})

	got := d.Detect(profile)
	if len(got) != 1 {
		t.Fatalf("detections = %d, want 1", len(got))
	}
	center := 20 * 0.375
	if got[0].RangeM <= center {
		t.Errorf("range = %f, want > bin centre %f", got[0].RangeM, center)
	}
	if got[0].RangeM >= 21*0.375 {
		t.Errorf("range = %f, drifted past the next bin", got[0].RangeM)
	}
}

func TestDetectWarmupBoost(t *testing.T) {
	d := testDetector(t)
	// A spike that clears the normal threshold but not the boosted one.
	profile := profileWith(32, map[int]float64{20: 0.1})

	if got := d.Detect(profile); len(got) != 1 {
		t.Fatalf("pre-warmup check: detections = %d, want 1", len(got))
	}
	profile.WarmingUp = true
	if got := d.Detect(profile); len(got) != 0 {
		t.Errorf("warming up: detections = %d, want 0", len(got))
	}
}

func TestDetectCarriesBearing(t *testing.T) {
	d := testDetector(t)
	profile := profileWith(32, map[int]float64{20: 1.0})
	profile.Angles[20] = -12.5

	got := d.Detect(profile)
	if len(got) != 1 {
		t.Fatalf("detections = %d, want 1", len(got))
	}
	if got[0].AngleDeg != -12.5 {
		t.Errorf("angle = %f, want -12.5", got[0].AngleDeg)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	bad := []Config{
		{NoiseMultiplier: 0, NoiseQuantile: 0.75, WarmupBoost: 3},
		{NoiseMultiplier: 3, NoiseQuantile: 1.0, WarmupBoost: 3},
		{NoiseMultiplier: 3, NoiseQuantile: 0.75, WarmupBoost: 0.5},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("config %d: expected error, got nil", i)
		}
	}
}
