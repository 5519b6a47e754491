// Command track-listen receives track snapshot datagrams and prints
// them, for checking what a tracker is publishing.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/RobSmithDev/alienmotiontracker/internal/publish"
)

var (
	listen = flag.String("listen", ":4510", "UDP address to listen on")
	quiet  = flag.Bool("quiet", false, "Only print the per-second summary")
)

func main() {
	flag.Parse()

	addr, err := net.ResolveUDPAddr("udp", *listen)
	if err != nil {
		log.Fatal(err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	fmt.Printf("listening for track snapshots on %s\n", conn.LocalAddr())

	var packetCount int64
	var trackCount int64

	// Statistics goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			packets := atomic.SwapInt64(&packetCount, 0)
			tracks := atomic.SwapInt64(&trackCount, 0)
			if packets > 0 {
				fmt.Printf("Received: %d snapshots/sec, %d tracks/sec\n", packets, tracks)
			}
		}
	}()

	// Main receive loop
	buffer := make([]byte, 65536)
	var lastSeq uint32
	var haveSeq bool
	for {
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			log.Printf("Read error: %v", err)
			continue
		}

		snap, err := publish.DecodeSnapshot(buffer[:n])
		if err != nil {
			log.Printf("Decode error: %v", err)
			continue
		}

		atomic.AddInt64(&packetCount, 1)
		atomic.AddInt64(&trackCount, int64(len(snap.Records)))

		if haveSeq && snap.Seq != lastSeq+1 {
			log.Printf("seq gap: %d -> %d", lastSeq, snap.Seq)
		}
		lastSeq = snap.Seq
		haveSeq = true

		if *quiet {
			continue
		}

		ts := snap.Timestamp.Format("15:04:05.000")
		fmt.Printf("seq=%d ts=%s epoch=%s tracks=%d\n", snap.Seq, ts, snap.Epoch, len(snap.Records))
		for _, rec := range snap.Records {
			angle := "  --  "
			if !math.IsNaN(float64(rec.AngleDeg)) {
				angle = fmt.Sprintf("%+6.1f", rec.AngleDeg)
			}
			fmt.Printf("  #%-4d  %5.2fm  %s°  strength %.2f\n", rec.ID, rec.RangeM, angle, rec.Strength)
		}
	}
}
