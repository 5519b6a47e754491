// Package pipeline runs the per-frame processing loop: acquire,
// process, detect, track, publish. The four stages run sequentially on
// one goroutine; only the publisher handoff crosses a goroutine
// boundary.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/config"
	"github.com/RobSmithDev/alienmotiontracker/internal/detect"
	"github.com/RobSmithDev/alienmotiontracker/internal/dsp"
	"github.com/RobSmithDev/alienmotiontracker/internal/publish"
	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
	"github.com/RobSmithDev/alienmotiontracker/internal/track"
)

// Stats holds the pipeline's frame counters. All fields are updated
// atomically by the pipeline goroutine and safe to read concurrently.
type Stats struct {
	FramesProcessed     atomic.Uint64
	AcquisitionTimeouts atomic.Uint64
	AcquisitionFaults   atomic.Uint64
	Detections          atomic.Uint64

	TracksTentative atomic.Int64
	TracksConfirmed atomic.Int64
	TracksCoasting  atomic.Int64

	StartedAt time.Time
}

// Pipeline wires the stages together and owns all their state.
type Pipeline struct {
	acquirer  *radar.Acquirer
	processor *dsp.Processor
	detector  *detect.Detector
	tracker   *track.Tracker
	publisher *publish.Publisher

	stats Stats

	profileMu sync.Mutex
	profile   *dsp.RangeProfile
}

// New assembles a pipeline from the tuning config, a sensor and any
// publish sinks.
func New(cfg *config.TuningConfig, sensor radar.Sensor, sinks ...publish.Sink) (*Pipeline, error) {
	format := radar.FrameFormat{
		Channels:        cfg.GetChannels(),
		ChirpsPerFrame:  cfg.GetChirpsPerFrame(),
		SamplesPerChirp: cfg.GetSamplesPerChirp(),
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	processor, err := dsp.NewProcessor(dsp.ProcessorConfig{
		Format:       format,
		Alpha:        cfg.GetBackgroundAlpha(),
		WarmupFrames: cfg.GetWarmupFrames(),
		Combine:      cfg.GetChannelCombine(),
		MaxRangeM:    cfg.GetMaxRangeM(),
		DeadZoneM:    cfg.GetDeadZoneM(),
	})
	if err != nil {
		return nil, err
	}

	detector, err := detect.New(detect.Config{
		NoiseMultiplier: cfg.GetNoiseMultiplier(),
		NoiseQuantile:   cfg.GetNoiseQuantile(),
		MinThreshold:    cfg.GetMinThreshold(),
		WarmupBoost:     cfg.GetWarmupBoost(),
	})
	if err != nil {
		return nil, err
	}

	tracker, err := track.NewTracker(track.Config{
		MaxTracks:         cfg.GetMaxTracks(),
		HitsToConfirm:     cfg.GetHitsToConfirm(),
		MaxCoastingMisses: cfg.GetMaxCoastingMisses(),
		GatingDistanceM:   cfg.GetGatingDistanceM(),
		AngleWeight:       cfg.GetAngleWeight(),
		ProcessNoisePos:   cfg.GetProcessNoisePos(),
		ProcessNoiseVel:   cfg.GetProcessNoiseVel(),
		MeasurementNoise:  cfg.GetMeasurementNoise(),
		MaxRangeM:         cfg.GetMaxRangeM(),
		Association:       cfg.GetAssociation(),
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		acquirer:  radar.NewAcquirer(sensor, format, cfg.GetReadTimeout(), cfg.GetMaxConsecutiveTimeouts()),
		processor: processor,
		detector:  detector,
		tracker:   tracker,
		publisher: publish.NewPublisher(sinks...),
	}, nil
}

// Stats returns the pipeline's counters.
func (p *Pipeline) Stats() *Stats {
	return &p.stats
}

// Publisher exposes the publisher for pull consumers.
func (p *Pipeline) Publisher() *publish.Publisher {
	return p.publisher
}

// LatestProfile returns the most recent range profile, or nil before
// the first frame.
func (p *Pipeline) LatestProfile() *dsp.RangeProfile {
	p.profileMu.Lock()
	defer p.profileMu.Unlock()
	return p.profile
}

// Step acquires and processes exactly one frame. Acquisition errors are
// returned unfiltered so tests can drive the pipeline frame by frame.
func (p *Pipeline) Step(ctx context.Context) error {
	frame, err := p.acquirer.Next(ctx)
	if err != nil {
		return err
	}

	profile := p.processor.Process(frame)
	detections := p.detector.Detect(profile)
	p.tracker.Update(detections, frame.Timestamp)
	snapshot := p.tracker.Snapshot()
	p.publisher.Publish(frame.Seq, frame.Timestamp, snapshot)

	p.stats.FramesProcessed.Add(1)
	p.stats.Detections.Add(uint64(len(detections)))
	tentative, confirmed, coasting := p.tracker.Counts()
	p.stats.TracksTentative.Store(int64(tentative))
	p.stats.TracksConfirmed.Store(int64(confirmed))
	p.stats.TracksCoasting.Store(int64(coasting))

	p.profileMu.Lock()
	p.profile = profile
	p.profileMu.Unlock()

	tracef("frame %d: %d detections, %d/%d/%d tracks",
		frame.Seq, len(detections), tentative, confirmed, coasting)
	return nil
}

// Run processes frames until the context is cancelled, the sensor is
// lost, or a replay source is exhausted. Recoverable acquisition errors
// are counted and never cross the frame boundary.
func (p *Pipeline) Run(ctx context.Context) error {
	p.stats.StartedAt = time.Now()
	defer p.acquirer.Close()

	for {
		if ctx.Err() != nil {
			diagf("shutting down: %v", ctx.Err())
			return nil
		}
		err := p.Step(ctx)
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			diagf("shutting down: %v", err)
			return nil
		case errors.Is(err, io.EOF):
			opsf("frame source exhausted")
			return nil
		case errors.Is(err, radar.ErrSensorLost):
			opsf("%v", err)
			return err
		case errors.Is(err, radar.ErrAcquisitionTimeout):
			p.stats.AcquisitionTimeouts.Add(1)
			diagf("%v", err)
		case errors.Is(err, radar.ErrAcquisitionFault):
			p.stats.AcquisitionFaults.Add(1)
			diagf("%v", err)
		default:
			opsf("acquisition failed: %v", err)
			return err
		}
	}
}
