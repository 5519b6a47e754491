package monitor

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RobSmithDev/alienmotiontracker/internal/httputil"
	"github.com/RobSmithDev/alienmotiontracker/internal/pipeline"
	"github.com/RobSmithDev/alienmotiontracker/internal/version"
)

// WebServer handles the HTTP interface for monitoring the tracker.
// It provides endpoints for health checks, live status, the published
// track list, debug charts and Prometheus metrics.
type WebServer struct {
	address string
	pipe    *pipeline.Pipeline
	server  *http.Server
	metrics *metrics
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	Pipeline *pipeline.Pipeline
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		pipe:    config.Pipeline,
		metrics: newMetrics(config.Pipeline),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/tracks", ws.handleTracks)
	mux.HandleFunc("/debug/profile", ws.handleProfileChart)
	mux.Handle("/metrics", promhttp.HandlerFor(ws.metrics.registry, promhttp.HandlerOpts{}))

	return mux
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "motion-tracker", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// statusResponse is the JSON body returned by /api/status.
type statusResponse struct {
	Version             string    `json:"version"`
	Epoch               string    `json:"epoch"`
	StartedAt           time.Time `json:"started_at"`
	UptimeSeconds       float64   `json:"uptime_seconds"`
	FramesProcessed     uint64    `json:"frames_processed"`
	AcquisitionTimeouts uint64    `json:"acquisition_timeouts"`
	AcquisitionFaults   uint64    `json:"acquisition_faults"`
	Detections          uint64    `json:"detections"`
	TracksTentative     int64     `json:"tracks_tentative"`
	TracksConfirmed     int64     `json:"tracks_confirmed"`
	TracksCoasting      int64     `json:"tracks_coasting"`
	SnapshotsDropped    uint64    `json:"snapshots_dropped"`
}

// handleStatus returns live pipeline counters as JSON.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	stats := ws.pipe.Stats()
	resp := statusResponse{
		Version:             version.Version,
		Epoch:               ws.pipe.Publisher().Epoch().String(),
		StartedAt:           stats.StartedAt,
		FramesProcessed:     stats.FramesProcessed.Load(),
		AcquisitionTimeouts: stats.AcquisitionTimeouts.Load(),
		AcquisitionFaults:   stats.AcquisitionFaults.Load(),
		Detections:          stats.Detections.Load(),
		TracksTentative:     stats.TracksTentative.Load(),
		TracksConfirmed:     stats.TracksConfirmed.Load(),
		TracksCoasting:      stats.TracksCoasting.Load(),
		SnapshotsDropped:    ws.pipe.Publisher().Drops(),
	}
	if !stats.StartedAt.IsZero() {
		resp.UptimeSeconds = time.Since(stats.StartedAt).Seconds()
	}

	httputil.WriteJSONOK(w, resp)
}

// trackResponse is one entry in the /api/tracks JSON array. Bearing is
// omitted when the sensor cannot resolve one.
type trackResponse struct {
	ID       uint32   `json:"id"`
	RangeM   float32  `json:"range_m"`
	AngleDeg *float32 `json:"angle_deg,omitempty"`
	Strength float32  `json:"strength"`
}

// handleTracks returns the most recently published snapshot as JSON.
func (ws *WebServer) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	snap, generation := ws.pipe.Publisher().Latest().Load()
	if snap == nil {
		httputil.NotFound(w, "no snapshot published yet")
		return
	}

	tracks := make([]trackResponse, 0, len(snap.Records))
	for _, rec := range snap.Records {
		t := trackResponse{ID: rec.ID, RangeM: rec.RangeM, Strength: rec.Strength}
		if !math.IsNaN(float64(rec.AngleDeg)) {
			angle := rec.AngleDeg
			t.AngleDeg = &angle
		}
		tracks = append(tracks, t)
	}

	httputil.WriteJSONOK(w, map[string]any{
		"epoch":      snap.Epoch.String(),
		"seq":        snap.Seq,
		"timestamp":  snap.Timestamp.UTC(),
		"generation": generation,
		"tracks":     tracks,
	})
}
