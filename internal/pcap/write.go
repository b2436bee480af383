package pcap

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// SnapLen is the snapshot length written into generated captures.
const SnapLen = 65535

// captureEpoch keeps generated captures byte-for-byte reproducible.
var captureEpoch = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

func captureInfo(i int, frame []byte) gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     captureEpoch.Add(time.Duration(i) * time.Millisecond),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
}

// WritePCAP writes Ethernet frames as a little-endian classic pcap file.
func WritePCAP(w io.Writer, frames [][]byte) error {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(SnapLen, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("write pcap header: %w", err)
	}
	for i, frame := range frames {
		if err := writer.WritePacket(captureInfo(i, frame), frame); err != nil {
			return fmt.Errorf("write packet %d: %w", i, err)
		}
	}
	return nil
}

// WritePCAPNG writes Ethernet frames as a pcapng file of Enhanced Packet Blocks.
func WritePCAPNG(w io.Writer, frames [][]byte) error {
	writer, err := pcapgo.NewNgWriter(w, layers.LinkTypeEthernet)
	if err != nil {
		return fmt.Errorf("create pcapng writer: %w", err)
	}
	for i, frame := range frames {
		if err := writer.WritePacket(captureInfo(i, frame), frame); err != nil {
			return fmt.Errorf("write packet %d: %w", i, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush pcapng: %w", err)
	}
	return nil
}

// WriteClassic writes a classic pcap file in the given byte order. pcapgo only
// emits little-endian files; this covers big-endian and nanosecond variants.
func WriteClassic(w io.Writer, frames [][]byte, order binary.ByteOrder, nano bool) error {
	magic := uint32(0xA1B2C3D4)
	if nano {
		magic = 0xA1B23C4D
	}
	header := make([]byte, pcapGlobalHeaderLen)
	order.PutUint32(header[0:4], magic)
	order.PutUint16(header[4:6], 2)
	order.PutUint16(header[6:8], 4)
	order.PutUint32(header[16:20], SnapLen)
	order.PutUint32(header[20:24], uint32(layers.LinkTypeEthernet))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write pcap header: %w", err)
	}
	for i, frame := range frames {
		ci := captureInfo(i, frame)
		record := make([]byte, pcapRecordHeaderLen)
		order.PutUint32(record[0:4], uint32(ci.Timestamp.Unix()))
		frac := uint32(ci.Timestamp.Nanosecond() / 1000)
		if nano {
			frac = uint32(ci.Timestamp.Nanosecond())
		}
		order.PutUint32(record[4:8], frac)
		order.PutUint32(record[8:12], uint32(len(frame)))
		order.PutUint32(record[12:16], uint32(len(frame)))
		if _, err := w.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("write packet %d: %w", i, err)
		}
	}
	return nil
}
