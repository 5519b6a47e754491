package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/RobSmithDev/alienmotiontracker/internal/capture"
	"github.com/RobSmithDev/alienmotiontracker/internal/config"
	"github.com/RobSmithDev/alienmotiontracker/internal/monitor"
	"github.com/RobSmithDev/alienmotiontracker/internal/pipeline"
	"github.com/RobSmithDev/alienmotiontracker/internal/publish"
	"github.com/RobSmithDev/alienmotiontracker/internal/radar"
	"github.com/RobSmithDev/alienmotiontracker/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode with a synthetic sensor (no hardware)")
	listen     = flag.String("listen", "", "HTTP listen address for the monitor server (empty disables it)")
	port       = flag.String("port", "/dev/ttyUSB0", "Serial port for the radar front end")
	baud       = flag.Int("baud", 921600, "Serial baud rate")
	udpListen  = flag.String("udp", "", "UDP listen address for a networked sensor (overrides -port)")
	publishTo  = flag.String("publish", "", "UDP address to publish track snapshots to (empty disables)")
	configPath = flag.String("config", "", "Tuning config JSON (defaults apply when empty)")
	recordDB   = flag.String("record", "", "SQLite file to record raw frames into")
	replayDB   = flag.String("replay", "", "SQLite file to replay raw frames from (overrides all sensors)")
	replaySess = flag.String("session", "", "Session ID to replay (required with -replay)")
	noThrottle = flag.Bool("no-throttle", false, "Replay or synthesize frames as fast as possible")
	debugLevel = flag.String("debug", "", "Pipeline debug streams on stderr: ops, diag, or trace (each includes the previous)")
)

func main() {
	flag.Parse()

	log.Printf("motion tracker %s", version.String())

	if err := pipeline.SetLogLevel(*debugLevel, os.Stderr); err != nil {
		log.Fatalf("invalid -debug: %v", err)
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	format := radar.FrameFormat{
		Channels:        cfg.GetChannels(),
		ChirpsPerFrame:  cfg.GetChirpsPerFrame(),
		SamplesPerChirp: cfg.GetSamplesPerChirp(),
	}

	sensor, err := buildSensor(cfg, format)
	if err != nil {
		log.Fatalf("failed to open sensor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder *capture.Recorder
	if *recordDB != "" {
		if *replayDB != "" {
			log.Fatal("-record and -replay are mutually exclusive")
		}
		store, err := capture.Open(*recordDB)
		if err != nil {
			log.Fatalf("failed to open capture store: %v", err)
		}
		defer store.Close()
		recorder, err = capture.NewRecorder(store, format, cfg.GetFrameRateHz())
		if err != nil {
			log.Fatalf("failed to create recorder: %v", err)
		}
		recorder.Start(ctx)
		sensor = capture.NewRecordingSensor(sensor, recorder)
		log.Printf("recording session %s to %s", recorder.SessionID(), *recordDB)
	}

	var sinks []publish.Sink
	if *publishTo != "" {
		sink, err := publish.NewUDPSink(*publishTo)
		if err != nil {
			log.Fatalf("failed to create UDP sink: %v", err)
		}
		defer sink.Close()
		sink.Start(ctx)
		sinks = append(sinks, sink)
		log.Printf("publishing track snapshots to %s", *publishTo)
	}

	pipe, err := pipeline.New(cfg, sensor, sinks...)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}
	log.Printf("tracker epoch %s", pipe.Publisher().Epoch())

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx); err != nil {
			log.Printf("pipeline terminated: %v", err)
		}
		// Stop the monitor server and any sinks once the pipeline is done.
		stop()
		log.Print("pipeline routine terminated")
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server := monitor.NewWebServer(monitor.WebServerConfig{
				Address:  *listen,
				Pipeline: pipe,
			})
			if err := server.Start(ctx); err != nil {
				log.Printf("monitor server error: %v", err)
			}
		}()
	}

	wg.Wait()
	if recorder != nil {
		log.Printf("recorded frames, %d dropped at the queue", recorder.Drops())
	}
	log.Printf("Graceful shutdown complete")
}

// buildSensor selects the frame source: replay beats UDP beats dev mode
// beats serial hardware.
func buildSensor(cfg *config.TuningConfig, format radar.FrameFormat) (radar.Sensor, error) {
	switch {
	case *replayDB != "":
		if *replaySess == "" {
			log.Fatal("-replay requires -session")
		}
		store, err := capture.Open(*replayDB)
		if err != nil {
			return nil, err
		}
		replay, err := capture.NewReplaySensor(store, *replaySess)
		if err != nil {
			return nil, err
		}
		if *noThrottle {
			replay.SetThrottle(false)
		}
		log.Printf("replaying session %s from %s", *replaySess, *replayDB)
		return replay, nil

	case *udpListen != "":
		log.Printf("listening for sensor frames on %s", *udpListen)
		return radar.NewUDPSensor(*udpListen, format)

	case *devMode:
		log.Print("dev mode: synthesizing frames")
		synth := radar.NewSyntheticSensor(format, cfg.GetMaxRangeM(), cfg.GetFrameRateHz(), []radar.SyntheticTarget{
			{RangeM: 5.0, VelocityMS: -0.3, AngleDeg: 10, Amplitude: 400},
			{RangeM: 9.0, VelocityMS: 0.2, AngleDeg: -25, Amplitude: 250},
		})
		synth.SetThrottle(!*noThrottle)
		return synth, nil

	default:
		log.Printf("opening serial sensor on %s", *port)
		return radar.NewSerialSensor(*port, *baud, format)
	}
}
