package radar

import (
	"context"
	"testing"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/timeutil"
)

func TestSyntheticSensorFrames(t *testing.T) {
	format := FrameFormat{Channels: 2, ChirpsPerFrame: 4, SamplesPerChirp: 64}
	sensor := NewSyntheticSensor(format, 12.0, 10.0, []SyntheticTarget{
		{RangeM: 4.0, VelocityMS: 0.5, Amplitude: 300},
	})
	sensor.SetThrottle(false)
	defer sensor.Close()

	var prev uint32
	for i := 0; i < 3; i++ {
		wf, err := sensor.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if len(wf.Samples) != format.SamplesPerFrame() {
			t.Fatalf("frame %d: %d samples, want %d", i, len(wf.Samples), format.SamplesPerFrame())
		}
		if i > 0 && wf.Seq != prev+1 {
			t.Errorf("frame %d: seq %d, want %d", i, wf.Seq, prev+1)
		}
		prev = wf.Seq
		for j, s := range wf.Samples {
			if s > 4095 {
				t.Fatalf("frame %d sample %d = %d exceeds 12 bits", i, j, s)
			}
		}
	}
}

func TestSyntheticSensorPacedByClock(t *testing.T) {
	format := FrameFormat{Channels: 1, ChirpsPerFrame: 1, SamplesPerChirp: 64}
	sensor := NewSyntheticSensor(format, 12.0, 10.0, nil)
	clock := timeutil.NewMockClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	sensor.clock = clock

	// With the mock clock advanced one frame period before each read, the
	// throttled sensor never arms a timer and delivers immediately.
	for i := 0; i < 3; i++ {
		wf, err := sensor.ReadFrame(context.Background())
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if wf.Seq != uint32(i) {
			t.Errorf("frame %d: seq %d", i, wf.Seq)
		}
		clock.Advance(100 * time.Millisecond)
	}
}

func TestSyntheticSensorTargetsMove(t *testing.T) {
	format := FrameFormat{Channels: 1, ChirpsPerFrame: 1, SamplesPerChirp: 64}
	sensor := NewSyntheticSensor(format, 12.0, 10.0, []SyntheticTarget{
		{RangeM: 2.0, VelocityMS: 1.0, Amplitude: 300},
	})
	sensor.SetThrottle(false)

	for i := 0; i < 10; i++ {
		if _, err := sensor.ReadFrame(context.Background()); err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
	}
	// 10 frames at 10 Hz and 1 m/s moves the target one metre.
	if got := sensor.targets[0].RangeM; got < 2.9 || got > 3.1 {
		t.Errorf("target range = %f, want ~3.0", got)
	}
}
