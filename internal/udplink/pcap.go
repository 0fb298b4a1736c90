package udplink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// LineHandler receives one transmitter line and the capture time of the
// datagram it arrived in.
type LineHandler func(at time.Time, line string) error

// ReplayStats counts what a replay saw.
type ReplayStats struct {
	Packets int
	Lines   int
	Errors  int
}

// ReplayPCAP reads a classic pcap capture from r and passes every line in
// UDP payloads sent to udpPort to handle. A udpPort of 0 accepts any port.
// Handler errors are counted and logged; replay continues.
func ReplayPCAP(ctx context.Context, r io.Reader, udpPort int, handle LineHandler) (ReplayStats, error) {
	var stats ReplayStats

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("failed to read pcap header: %w", err)
	}
	packetSource := gopacket.NewPacketSource(reader, reader.LinkType())

	for {
		if err := ctx.Err(); err != nil {
			logf("pcap replay stopping due to context cancellation (processed %d packets)", stats.Packets)
			return stats, err
		}

		packet, err := packetSource.NextPacket()
		if errors.Is(err, io.EOF) {
			logf("pcap replay complete: %d packets, %d lines, %d errors", stats.Packets, stats.Lines, stats.Errors)
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}
		if udpPort != 0 && int(udp.DstPort) != udpPort {
			continue
		}
		stats.Packets++

		at := packet.Metadata().Timestamp
		for _, line := range strings.Split(string(udp.Payload), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			stats.Lines++
			if err := handle(at, line); err != nil {
				stats.Errors++
				logf("packet %d: %v", stats.Packets, err)
			}
		}
	}
}
