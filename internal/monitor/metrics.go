package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/RobSmithDev/alienmotiontracker/internal/pipeline"
)

// metrics exposes the pipeline's counters through a Prometheus
// registry. The pipeline already keeps everything in atomics, so the
// collectors read them directly instead of maintaining parallel state.
type metrics struct {
	registry *prometheus.Registry
}

func newMetrics(pipe *pipeline.Pipeline) *metrics {
	registry := prometheus.NewRegistry()
	stats := pipe.Stats()

	registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracker_frames_processed_total",
			Help: "Frames acquired and fully processed",
		}, func() float64 { return float64(stats.FramesProcessed.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracker_acquisition_timeouts_total",
			Help: "Recoverable frame read timeouts",
		}, func() float64 { return float64(stats.AcquisitionTimeouts.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracker_acquisition_faults_total",
			Help: "Malformed or stale frames discarded",
		}, func() float64 { return float64(stats.AcquisitionFaults.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracker_detections_total",
			Help: "Detections emitted by the range detector",
		}, func() float64 { return float64(stats.Detections.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tracker_snapshots_dropped_total",
			Help: "Snapshots dropped by saturated publish sinks",
		}, func() float64 { return float64(pipe.Publisher().Drops()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tracker_tracks_tentative",
			Help: "Tracks awaiting confirmation",
		}, func() float64 { return float64(stats.TracksTentative.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tracker_tracks_confirmed",
			Help: "Confirmed tracks",
		}, func() float64 { return float64(stats.TracksConfirmed.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tracker_tracks_coasting",
			Help: "Confirmed tracks coasting through missed detections",
		}, func() float64 { return float64(stats.TracksCoasting.Load()) }),
	)

	return &metrics{registry: registry}
}
