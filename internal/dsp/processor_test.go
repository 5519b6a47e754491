package dsp

import (
	"math"
	"testing"

	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
)

func testConfig(channels int) ProcessorConfig {
	return ProcessorConfig{
		Format:       radar.FrameFormat{Channels: channels, ChirpsPerFrame: 4, SamplesPerChirp: 64},
		Alpha:        0.9,
		WarmupFrames: 3,
		Combine:      CombineSum,
		MaxRangeM:    12.0,
		DeadZoneM:    0.95,
	}
}

// toneFrame builds a frame containing a single beat tone at the given
// bin, with an optional per-channel phase step for bearing tests.
func toneFrame(format radar.FrameFormat, seq uint32, bin float64, amp, phaseStep float64) *radar.RawFrame {
	n := format.SamplesPerChirp
	samples := make([]float64, format.SamplesPerFrame())
	idx := 0
	for ch := 0; ch < format.Channels; ch++ {
		for chirp := 0; chirp < format.ChirpsPerFrame; chirp++ {
			for i := 0; i < n; i++ {
				samples[idx] = amp * math.Cos(2*math.Pi*bin*float64(i)/float64(n)+float64(ch)*phaseStep)
				idx++
			}
		}
	}
	return &radar.RawFrame{Seq: seq, Format: format, Samples: samples}
}

func peakBin(bins []float64) int {
	best := 0
	for k, v := range bins {
		if v > bins[best] {
			best = k
		}
	}
	return best
}

func TestProcessorProfileShape(t *testing.T) {
	cfg := testConfig(1)
	p, err := NewProcessor(cfg)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	profile := p.Process(toneFrame(cfg.Format, 0, 20, 0.5, 0))
	if len(profile.Bins) != p.BinCount() {
		t.Fatalf("bins = %d, want %d", len(profile.Bins), p.BinCount())
	}
	if len(profile.Angles) != p.BinCount() {
		t.Fatalf("angles = %d, want %d", len(profile.Angles), p.BinCount())
	}
	for k, v := range profile.Bins {
		if v < 0 {
			t.Fatalf("bin %d is negative: %f", k, v)
		}
	}
	if profile.BinWidthM != 12.0/float64(p.BinCount()) {
		t.Errorf("BinWidthM = %f", profile.BinWidthM)
	}
}

func TestProcessorFindsTone(t *testing.T) {
	cfg := testConfig(1)
	p, _ := NewProcessor(cfg)

	// First frame seeds the background; follow it with an empty frame so
	// the clutter estimate settles at zero, then inject the tone.
	empty := toneFrame(cfg.Format, 0, 0, 0, 0)
	p.Process(empty)
	profile := p.Process(toneFrame(cfg.Format, 1, 20, 0.5, 0))

	if got := peakBin(profile.Bins); got != 20 {
		t.Errorf("peak bin = %d, want 20", got)
	}
}

func TestProcessorBackgroundConvergence(t *testing.T) {
	cfg := testConfig(1)
	p, _ := NewProcessor(cfg)

	// A static tone is clutter: after enough frames the subtracted
	// profile at the tone bin decays towards zero.
	var last *RangeProfile
	for i := 0; i < 60; i++ {
		last = p.Process(toneFrame(cfg.Format, uint32(i), 20, 0.5, 0))
	}
	first := p2Energy(cfg, 20)
	if last.Bins[20] > first*0.05 {
		t.Errorf("static tone not absorbed: residual %f of %f", last.Bins[20], first)
	}
}

// p2Energy measures what the tone produces with no background at all.
func p2Energy(cfg ProcessorConfig, bin int) float64 {
	p, _ := NewProcessor(cfg)
	p.Process(toneFrame(cfg.Format, 0, 0, 0, 0))
	profile := p.Process(toneFrame(cfg.Format, 1, float64(bin), 0.5, 0))
	return profile.Bins[bin]
}

func TestProcessorWarmupFlag(t *testing.T) {
	cfg := testConfig(1)
	p, _ := NewProcessor(cfg)

	for i := 0; i < cfg.WarmupFrames; i++ {
		profile := p.Process(toneFrame(cfg.Format, uint32(i), 10, 0.1, 0))
		if !profile.WarmingUp {
			t.Fatalf("frame %d: WarmingUp = false during warmup", i)
		}
	}
	profile := p.Process(toneFrame(cfg.Format, 99, 10, 0.1, 0))
	if profile.WarmingUp {
		t.Error("WarmingUp still set after warmup frames")
	}
}

func TestProcessorDeadZone(t *testing.T) {
	cfg := testConfig(1)
	p, _ := NewProcessor(cfg)

	// Tone in bin 1 sits well inside the 0.95 m dead zone at 0.375 m/bin.
	p.Process(toneFrame(cfg.Format, 0, 0, 0, 0))
	profile := p.Process(toneFrame(cfg.Format, 1, 1, 0.8, 0))

	deadBins := int(cfg.DeadZoneM / profile.BinWidthM)
	for k := 0; k <= deadBins; k++ {
		if profile.Bins[k] != 0 {
			t.Errorf("dead-zone bin %d = %f, want 0", k, profile.Bins[k])
		}
	}
}

func TestProcessorBearing(t *testing.T) {
	cfg := testConfig(2)
	p, _ := NewProcessor(cfg)

	// 30 degrees off boresight: phase step of pi*sin(30deg) = pi/2.
	wantDeg := 30.0
	phase := math.Pi * math.Sin(wantDeg*math.Pi/180)
	p.Process(toneFrame(cfg.Format, 0, 0, 0, 0))
	profile := p.Process(toneFrame(cfg.Format, 1, 20, 0.5, phase))

	got := profile.Angles[20]
	if math.IsNaN(got) {
		t.Fatal("bearing is NaN at the tone bin")
	}
	if math.Abs(got-wantDeg) > 2.0 {
		t.Errorf("bearing = %f deg, want ~%f", got, wantDeg)
	}
}

func TestProcessorSingleChannelAnglesNaN(t *testing.T) {
	cfg := testConfig(1)
	p, _ := NewProcessor(cfg)

	profile := p.Process(toneFrame(cfg.Format, 0, 20, 0.5, 0))
	for k, a := range profile.Angles {
		if !math.IsNaN(a) {
			t.Fatalf("angle at bin %d = %f, want NaN with one channel", k, a)
		}
	}
}

func TestNewProcessorRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProcessorConfig)
	}{
		{"bad alpha", func(c *ProcessorConfig) { c.Alpha = 1.0 }},
		{"bad combine", func(c *ProcessorConfig) { c.Combine = "median" }},
		{"bad max range", func(c *ProcessorConfig) { c.MaxRangeM = 0 }},
		{"bad format", func(c *ProcessorConfig) { c.Format.SamplesPerChirp = 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(1)
			tt.mutate(&cfg)
			if _, err := NewProcessor(cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
