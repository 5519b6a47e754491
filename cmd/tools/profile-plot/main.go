// Command profile-plot replays a recorded session through the range
// processor and saves PNG plots of the resulting profiles, for tuning
// the background subtraction offline.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/RobSmithDev/alienmotiontracker/internal/capture"
	"github.com/RobSmithDev/alienmotiontracker/internal/config"
	"github.com/RobSmithDev/alienmotiontracker/internal/dsp"
	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
)

var (
	dbPath     = flag.String("db", "", "Capture database to read")
	sessionID  = flag.String("session", "", "Session to plot (empty lists sessions)")
	outputDir  = flag.String("out", "plots", "Directory to write PNGs into")
	configPath = flag.String("config", "", "Tuning config JSON (defaults apply when empty)")
	every      = flag.Int("every", 10, "Plot every Nth frame")
)

func main() {
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("-db is required")
	}

	store, err := capture.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open capture store: %v", err)
	}
	defer store.Close()

	if *sessionID == "" {
		listSessions(store)
		return
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if err := plotSession(store, cfg); err != nil {
		log.Fatal(err)
	}
}

func listSessions(store *capture.Store) {
	sessions, err := store.Sessions()
	if err != nil {
		log.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return
	}
	for _, s := range sessions {
		count, err := store.FrameCount(s.ID)
		if err != nil {
			log.Fatalf("failed to count frames: %v", err)
		}
		fmt.Printf("%s  %s  %dx%dx%d @ %.1fHz  %d frames\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"),
			s.Format.Channels, s.Format.ChirpsPerFrame, s.Format.SamplesPerChirp,
			s.FrameRateHz, count)
	}
}

func plotSession(store *capture.Store, cfg *config.TuningConfig) error {
	meta, err := store.Session(*sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	frames, err := store.Frames(*sessionID)
	if err != nil {
		return fmt.Errorf("loading frames: %w", err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("session %s has no frames", *sessionID)
	}

	processor, err := dsp.NewProcessor(dsp.ProcessorConfig{
		Format:       meta.Format,
		Alpha:        cfg.GetBackgroundAlpha(),
		WarmupFrames: cfg.GetWarmupFrames(),
		Combine:      cfg.GetChannelCombine(),
		MaxRangeM:    cfg.GetMaxRangeM(),
		DeadZoneM:    cfg.GetDeadZoneM(),
	})
	if err != nil {
		return fmt.Errorf("building processor: %w", err)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	plotted := 0
	for i, stored := range frames {
		if len(stored.Payload) < meta.Format.PayloadSize() {
			return fmt.Errorf("frame %d: truncated payload (%d bytes)", stored.Seq, len(stored.Payload))
		}
		samples := radar.UnpackSamples(stored.Payload, meta.Format.SamplesPerFrame())
		raw := &radar.RawFrame{
			Seq:       stored.Seq,
			Timestamp: stored.Timestamp,
			Flags:     stored.Flags,
			Format:    meta.Format,
			Samples:   radar.Normalize(samples),
		}

		profile := processor.Process(raw)
		if i%*every != 0 {
			continue
		}
		if err := savePlot(profile); err != nil {
			return fmt.Errorf("frame %d: %w", stored.Seq, err)
		}
		plotted++
	}

	fmt.Printf("wrote %d plots to %s\n", plotted, *outputDir)
	return nil
}

// savePlot writes one PNG with raw, background and subtracted lines.
func savePlot(profile *dsp.RangeProfile) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Range Profile - frame %d", profile.Seq)
	p.X.Label.Text = "Range (m)"
	p.Y.Label.Text = "Magnitude"

	series := []struct {
		name string
		bins []float64
	}{
		{"raw", profile.Raw},
		{"background", profile.Background},
		{"subtracted", profile.Bins},
	}
	colors := []color.Color{
		color.RGBA{R: 120, G: 120, B: 120, A: 255}, // raw
		color.RGBA{R: 66, G: 135, B: 245, A: 255},  // background
		color.RGBA{R: 235, G: 64, B: 52, A: 255},   // subtracted
	}

	for i, s := range series {
		pts := make(plotter.XYs, len(s.bins))
		for j, v := range s.bins {
			pts[j] = plotter.XY{X: float64(j) * profile.BinWidthM, Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i%len(colors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(*outputDir, fmt.Sprintf("profile_%06d.png", profile.Seq))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
