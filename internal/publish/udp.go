package publish

import (
	"context"
	"fmt"
	"net"

	"github.com/RobSmithDev/alienmotiontracker/internal/monitoring"
)

// UDPSink sends snapshot messages to a display consumer over UDP. The
// handoff channel holds a single message: if the sender goroutine is
// still busy when the next frame lands, that frame's message is dropped
// and counted, and the one already queued goes out.
type UDPSink struct {
	conn    *net.UDPConn
	channel chan []byte
	address string
}

// NewUDPSink dials the consumer address.
func NewUDPSink(addr string) (*UDPSink, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sink address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink connection: %w", err)
	}
	return &UDPSink{
		conn:    conn,
		channel: make(chan []byte, 1),
		address: addr,
	}, nil
}

// Start begins the sender goroutine. Send errors are logged, not
// propagated; a deaf consumer must not affect tracking.
func (s *UDPSink) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-s.channel:
				if _, err := s.conn.Write(msg); err != nil {
					monitoring.Logf("udp sink %s: %v", s.address, err)
				}
			}
		}
	}()
	monitoring.Logf("publishing track snapshots to %s", s.address)
}

// TryPublish hands a message to the sender without blocking.
func (s *UDPSink) TryPublish(msg []byte) bool {
	select {
	case s.channel <- msg:
		return true
	default:
		return false
	}
}

// Close closes the socket.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}
