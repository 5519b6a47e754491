// Package detect extracts point detections from range profiles by
// adaptive thresholding against the profile's own noise floor.
package detect

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/RobSmithDev/alienmotiontracker/internal/dsp"
)

// Detection is one resolved target return.
type Detection struct {
	RangeM    float64
	AngleDeg  float64 // NaN when no bearing was available
	Amplitude float64
}

// Config holds the detector's thresholding parameters.
type Config struct {
	NoiseMultiplier float64 // threshold = multiplier * noise floor
	NoiseQuantile   float64 // noise floor quantile of the profile, [0, 1)
	MinThreshold    float64 // absolute floor for the threshold
	WarmupBoost     float64 // extra threshold factor while warming up
}

// Detector is stateless across frames; every decision is made from the
// profile it is handed.
type Detector struct {
	cfg     Config
	scratch []float64
}

// New validates the config and returns a Detector.
func New(cfg Config) (*Detector, error) {
	if cfg.NoiseMultiplier <= 0 {
		return nil, fmt.Errorf("noise multiplier must be positive, got %f", cfg.NoiseMultiplier)
	}
	if cfg.NoiseQuantile < 0 || cfg.NoiseQuantile >= 1 {
		return nil, fmt.Errorf("noise quantile must be in [0, 1), got %f", cfg.NoiseQuantile)
	}
	if cfg.WarmupBoost < 1 {
		return nil, fmt.Errorf("warmup boost must be at least 1, got %f", cfg.WarmupBoost)
	}
	return &Detector{cfg: cfg}, nil
}

// Detect returns the frame's detections ordered by ascending range.
func (d *Detector) Detect(profile *dsp.RangeProfile) []Detection {
	threshold := d.threshold(profile)

	var out []Detection
	bins := profile.Bins
	maxRange := profile.MaxRangeM()
	for k := 0; k < len(bins); {
		if bins[k] <= threshold {
			k++
			continue
		}
		// Walk the contiguous super-threshold run and keep its peak.
		peak := k
		end := k
		for end < len(bins) && bins[end] > threshold {
			if bins[end] > bins[peak] {
				peak = end
			}
			end++
		}
		k = end

		r := (float64(peak) + subBinOffset(bins, peak)) * profile.BinWidthM
		if r < 0 || r > maxRange {
			continue
		}
		out = append(out, Detection{
			RangeM:    r,
			AngleDeg:  angleAt(profile, peak),
			Amplitude: bins[peak],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RangeM < out[j].RangeM })
	return out
}

// threshold computes the adaptive detection threshold for one profile.
func (d *Detector) threshold(profile *dsp.RangeProfile) float64 {
	if cap(d.scratch) < len(profile.Bins) {
		d.scratch = make([]float64, len(profile.Bins))
	}
	d.scratch = d.scratch[:len(profile.Bins)]
	copy(d.scratch, profile.Bins)
	sort.Float64s(d.scratch)

	floor := stat.Quantile(d.cfg.NoiseQuantile, stat.Empirical, d.scratch, nil)
	threshold := d.cfg.NoiseMultiplier * floor
	if threshold < d.cfg.MinThreshold {
		threshold = d.cfg.MinThreshold
	}
	if profile.WarmingUp {
		threshold *= d.cfg.WarmupBoost
	}
	return threshold
}

// subBinOffset refines the peak position by fitting a parabola through
// the peak bin and its neighbours. Returns an offset in [-0.5, 0.5].
func subBinOffset(bins []float64, k int) float64 {
	if k <= 0 || k >= len(bins)-1 {
		return 0
	}
	y0, y1, y2 := bins[k-1], bins[k], bins[k+1]
	denom := y0 - 2*y1 + y2
	if denom == 0 {
		return 0
	}
	off := 0.5 * (y0 - y2) / denom
	if off > 0.5 {
		off = 0.5
	} else if off < -0.5 {
		off = -0.5
	}
	return off
}

// angleAt returns the profile's bearing at a bin, or NaN.
func angleAt(profile *dsp.RangeProfile, k int) float64 {
	if k >= len(profile.Angles) {
		return math.NaN()
	}
	return profile.Angles[k]
}
