package radar

import (
	"context"
	"fmt"
	"net"
	"time"
)

// UDPSensor receives one frame per datagram. This is the deployment
// shape where the privileged SPI reader streams frames over loopback.
type UDPSensor struct {
	conn   *net.UDPConn
	format FrameFormat
	buf    []byte
}

// NewUDPSensor listens on addr (host:port) for frame datagrams.
func NewUDPSensor(addr string, format FrameFormat) (*UDPSensor, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %q: %w", addr, err)
	}
	return &UDPSensor{
		conn:   conn,
		format: format,
		buf:    make([]byte, headerSize+format.PayloadSize()+64),
	}, nil
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (s *UDPSensor) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// ReadFrame blocks until a datagram arrives or the context deadline
// passes.
func (s *UDPSensor) ReadFrame(ctx context.Context) (*WireFrame, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	n, _, err := s.conn.ReadFromUDP(s.buf)
	if err != nil {
		if ne, isNet := err.(net.Error); isNet && ne.Timeout() {
			return nil, ErrAcquisitionTimeout
		}
		return nil, err
	}
	return DecodeFrame(s.buf[:n], s.format)
}

// Close closes the socket.
func (s *UDPSensor) Close() error {
	return s.conn.Close()
}
