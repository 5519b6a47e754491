// Package dsp turns raw ADC frames into background-subtracted range
// profiles: per-chirp windowed FFTs, chirp averaging, channel
// combination, and a rolling clutter estimate.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
)

// CombineSum and CombineMax select how per-channel profiles merge.
const (
	CombineSum = "sum"
	CombineMax = "max"
)

// ProcessorConfig holds the static processing parameters.
type ProcessorConfig struct {
	Format       radar.FrameFormat
	Alpha        float64 // background EWMA retention, in (0, 1)
	WarmupFrames int
	Combine      string
	MaxRangeM    float64
	DeadZoneM    float64
}

// RangeProfile is the processor's per-frame output. Bins holds exactly
// binCount non-negative energies. Angles holds a bearing in degrees per
// bin, NaN where no bearing could be formed.
type RangeProfile struct {
	Seq        uint32
	Timestamp  time.Time
	Bins       []float64
	Raw        []float64
	Background []float64
	Angles     []float64
	BinWidthM  float64
	WarmingUp  bool
}

// MaxRangeM returns the range of the last bin edge.
func (p *RangeProfile) MaxRangeM() float64 {
	return p.BinWidthM * float64(len(p.Bins))
}

// Processor converts frames to range profiles. It owns the only
// cross-frame state outside the tracker: the per-bin background
// estimate. Not safe for concurrent use.
type Processor struct {
	cfg      ProcessorConfig
	binCount int

	fft *fourier.FFT
	win []float64

	background []float64
	seeded     bool
	frames     int

	// scratch buffers reused between frames
	work    []float64
	coeffs  []complex128
	chanMag [][]float64
	chanSum [][]complex128
}

// NewProcessor validates the config and allocates working state.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return nil, fmt.Errorf("alpha must be in (0, 1), got %f", cfg.Alpha)
	}
	if cfg.Combine != CombineSum && cfg.Combine != CombineMax {
		return nil, fmt.Errorf("combine must be %q or %q, got %q", CombineSum, CombineMax, cfg.Combine)
	}
	if cfg.MaxRangeM <= 0 {
		return nil, fmt.Errorf("max range must be positive, got %f", cfg.MaxRangeM)
	}

	n := cfg.Format.SamplesPerChirp
	binCount := n / 2
	p := &Processor{
		cfg:        cfg,
		binCount:   binCount,
		fft:        fourier.NewFFT(n),
		win:        window.NewValues(window.Hann, n),
		background: make([]float64, binCount),
		work:       make([]float64, n),
		coeffs:     make([]complex128, n/2+1),
		chanMag:    make([][]float64, cfg.Format.Channels),
		chanSum:    make([][]complex128, cfg.Format.Channels),
	}
	for ch := range p.chanMag {
		p.chanMag[ch] = make([]float64, binCount)
		p.chanSum[ch] = make([]complex128, binCount)
	}
	return p, nil
}

// BinCount returns the number of usable range bins.
func (p *Processor) BinCount() int {
	return p.binCount
}

// BinWidthM returns the range covered by one bin.
func (p *Processor) BinWidthM() float64 {
	return p.cfg.MaxRangeM / float64(p.binCount)
}

// Process consumes one frame and emits its range profile.
func (p *Processor) Process(frame *radar.RawFrame) *RangeProfile {
	format := p.cfg.Format
	chirps := float64(format.ChirpsPerFrame)

	for ch := 0; ch < format.Channels; ch++ {
		mag := p.chanMag[ch]
		sum := p.chanSum[ch]
		for i := range mag {
			mag[i] = 0
			sum[i] = 0
		}
		for chirp := 0; chirp < format.ChirpsPerFrame; chirp++ {
			p.chirpSpectrum(frame.Chirp(ch, chirp))
			for k := 0; k < p.binCount; k++ {
				mag[k] += cmplx.Abs(p.coeffs[k])
				sum[k] += p.coeffs[k]
			}
		}
		for k := range mag {
			mag[k] /= chirps
		}
	}

	raw := p.combine()
	p.clearDeadZone(raw)

	// Subtract against the pre-update estimate so a fresh target is not
	// partially absorbed into the clutter it is being compared with.
	sub := make([]float64, p.binCount)
	if p.seeded {
		for k, v := range raw {
			d := v - p.background[k]
			if d < 0 {
				d = 0
			}
			sub[k] = d
		}
		for k, v := range raw {
			p.background[k] = p.cfg.Alpha*p.background[k] + (1-p.cfg.Alpha)*v
		}
	} else {
		copy(p.background, raw)
		p.seeded = true
	}

	warming := p.frames < p.cfg.WarmupFrames
	p.frames++

	return &RangeProfile{
		Seq:        frame.Seq,
		Timestamp:  frame.Timestamp,
		Bins:       sub,
		Raw:        raw,
		Background: append([]float64(nil), p.background...),
		Angles:     p.bearings(),
		BinWidthM:  p.BinWidthM(),
		WarmingUp:  warming,
	}
}

// chirpSpectrum fills p.coeffs with the windowed spectrum of one chirp.
func (p *Processor) chirpSpectrum(samples []float64) {
	mean := 0.0
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))
	for i, s := range samples {
		p.work[i] = (s - mean) * p.win[i]
	}
	p.fft.Coefficients(p.coeffs, p.work)
}

// combine merges the per-channel magnitude profiles.
func (p *Processor) combine() []float64 {
	out := make([]float64, p.binCount)
	copy(out, p.chanMag[0])
	for ch := 1; ch < len(p.chanMag); ch++ {
		for k, v := range p.chanMag[ch] {
			if p.cfg.Combine == CombineMax {
				if v > out[k] {
					out[k] = v
				}
			} else {
				out[k] += v
			}
		}
	}
	return out
}

// clearDeadZone zeroes the bins swamped by TX/RX leakage.
func (p *Processor) clearDeadZone(bins []float64) {
	width := p.BinWidthM()
	for k := range bins {
		if float64(k)*width < p.cfg.DeadZoneM {
			bins[k] = 0
		} else {
			break
		}
	}
}

// bearings estimates a per-bin bearing from the phase difference of the
// first two channels' chirp-summed spectra. With one channel every bin
// is NaN.
func (p *Processor) bearings() []float64 {
	angles := make([]float64, p.binCount)
	if p.cfg.Format.Channels < 2 {
		for k := range angles {
			angles[k] = math.NaN()
		}
		return angles
	}
	for k := 0; k < p.binCount; k++ {
		s0, s1 := p.chanSum[0][k], p.chanSum[1][k]
		if cmplx.Abs(s0) == 0 || cmplx.Abs(s1) == 0 {
			angles[k] = math.NaN()
			continue
		}
		// Half-wavelength spacing: phase difference is pi*sin(bearing).
		delta := cmplx.Phase(s1 * cmplx.Conj(s0))
		sin := delta / math.Pi
		if sin > 1 {
			sin = 1
		} else if sin < -1 {
			sin = -1
		}
		angles[k] = math.Asin(sin) * 180 / math.Pi
	}
	return angles
}
