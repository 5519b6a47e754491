// Command pcap-replay re-emits sensor frames captured in a PCAP file as
// live UDP datagrams, respecting original packet timing. Point a tracker
// running with -udp at the target address.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	pcapFile = flag.String("pcap", "", "PCAP file to replay")
	udpPort  = flag.Int("port", 4400, "Only replay UDP packets with this destination port")
	target   = flag.String("target", "127.0.0.1:4400", "Address to send datagrams to")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier (1.0 = real-time)")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}
	if *speed <= 0 {
		*speed = 1.0
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open PCAP file: %v", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("failed to read PCAP header: %v", err)
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("failed to dial target: %v", err)
	}
	defer conn.Close()

	log.Printf("replaying %s to %s (udp port %d, speed %.1fx)", *pcapFile, *target, *udpPort, *speed)

	packetCount := 0
	sentCount := 0
	var lastPacketTime time.Time
	startTime := time.Now()

	for {
		data, ci, err := reader.ReadPacketData()
		if err != nil {
			break // end of file
		}
		packetCount++

		// Maintain original inter-packet timing, scaled by the speed
		// multiplier.
		if !lastPacketTime.IsZero() {
			delay := ci.Timestamp.Sub(lastPacketTime)
			scaledDelay := time.Duration(float64(delay) / *speed)
			if scaledDelay > 0 {
				time.Sleep(scaledDelay)
			}
		}
		lastPacketTime = ci.Timestamp

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || int(udp.DstPort) != *udpPort {
			continue
		}
		if len(udp.Payload) == 0 {
			continue
		}

		if _, err := conn.Write(udp.Payload); err != nil {
			log.Printf("send error: %v", err)
			continue
		}
		sentCount++

		if sentCount%1000 == 0 {
			elapsed := time.Since(startTime)
			log.Printf("replay progress: %d/%d packets in %v", sentCount, packetCount, elapsed)
		}
	}

	fmt.Printf("replayed %d of %d packets in %v\n", sentCount, packetCount, time.Since(startTime))
}
