// Package udplink carries transmitter lines over UDP, for transmitters on a
// network bridge rather than a serial cable, and replays captured UDP
// traffic from pcap files.
package udplink

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/banshee-data/vitals.link/internal/monitoring"
	"github.com/banshee-data/vitals.link/internal/serialmux"
)

var logf = monitoring.Prefixed("udplink")

// maxDatagram is the largest payload read in one call.
const maxDatagram = 65507

// Port adapts a bound UDP socket to serialmux.SerialPorter. Datagram
// payloads are read back to back as one byte stream; writes go to the peer
// that sent the most recent datagram and are dropped until one has.
type Port struct {
	conn *net.UDPConn
	buf  []byte

	mu      sync.Mutex
	pending []byte
	peer    *net.UDPAddr
}

var _ serialmux.SerialPorter = (*Port)(nil)

// Listen binds a UDP socket on address (e.g. ":5555").
func Listen(address string) (*Port, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	logf("listening for transmitters on %s", conn.LocalAddr())
	return &Port{conn: conn, buf: make([]byte, maxDatagram)}, nil
}

// NewUDPSerialMux binds address and wraps the socket in a SerialMux so UDP
// transmitters feed the same subscribers as a serial port.
func NewUDPSerialMux(address string) (*serialmux.SerialMux[*Port], error) {
	p, err := Listen(address)
	if err != nil {
		return nil, err
	}
	return serialmux.NewSerialMux(p), nil
}

func (p *Port) LocalAddr() net.Addr { return p.conn.LocalAddr() }

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	for {
		n, from, err := p.conn.ReadFromUDP(p.buf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		p.mu.Lock()
		p.peer = from
		c := copy(b, p.buf[:n])
		p.pending = append(p.pending[:0], p.buf[c:n]...)
		p.mu.Unlock()
		return c, nil
	}
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	if peer == nil {
		return len(b), nil
	}
	return p.conn.WriteToUDP(b, peer)
}

func (p *Port) Close() error {
	err := p.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
