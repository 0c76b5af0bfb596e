// Package capture is AEGIS's forensic pcap sink (SPEC_FULL.md §B):
// every ingress and egress datagram is optionally mirrored to a pcap
// file for offline replay/analysis, grounded directly on the teacher's
// gopacket/pcapgo capture stack (handshake_manager.go's saveSession:
// pcapgo.NewWriter, WriteFileHeader, WritePacket), repurposed here from
// recording 802.11 frames to recording AEGIS's own UDP datagrams.
package capture

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65536

// Writer appends raw MAVLink datagram bytes to a single pcap file, one
// capture per process lifetime (the teacher writes one pcap per captured
// session; AEGIS writes one per gateway run). Link type is Raw since
// these are UDP payload bytes, not full link-layer frames.
type Writer struct {
	mu sync.Mutex
	f  *os.File
	w  *pcapgo.Writer
}

// NewWriter creates (or truncates) the pcap file at path and writes its
// header, ready for WritePacket calls.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create pcap file: %w", err)
	}

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeRaw); err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: write pcap header: %w", err)
	}

	return &Writer{f: f, w: w}, nil
}

// Write appends one datagram's raw bytes to the pcap file. The ingress
// flag is informational only (pcap has no native direction field);
// AEGIS mirrors it by tagging the capture-info's InterfaceIndex (0 for
// ingress-from-GCS, 1 for egress-to-FC) so an offline viewer can filter
// by direction.
func (w *Writer) Write(data []byte, ingress bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	iface := 0
	if !ingress {
		iface = 1
	}
	ci := gopacket.CaptureInfo{
		Timestamp:      time.Now(),
		CaptureLength:  len(data),
		Length:         len(data),
		InterfaceIndex: iface,
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("capture: write packet: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
