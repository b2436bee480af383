// Package pcap extracts captured frames from classic libpcap and pcapng files
// without a packet library, and offers a structured audit decode on top.
package pcap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Format identifies the capture container.
type Format int

const (
	// FormatRaw means no known magic was found; the whole input is treated as
	// packet bytes so string searches still have a chance.
	FormatRaw Format = iota
	FormatPcapLE
	FormatPcapBE
	FormatPcapNG
)

func (f Format) String() string {
	switch f {
	case FormatPcapLE:
		return "pcap-le"
	case FormatPcapBE:
		return "pcap-be"
	case FormatPcapNG:
		return "pcapng"
	default:
		return "raw"
	}
}

const (
	pcapGlobalHeaderLen = 24
	pcapRecordHeaderLen = 16

	pcapngSectionHeader  uint32 = 0x0A0D0D0A
	pcapngSimplePacket   uint32 = 0x00000003
	pcapngEnhancedPacket uint32 = 0x00000006
	pcapngMinBlockLen           = 12
	epbCapLenOffset             = 20
	epbDataOffset               = 28
	spbDataOffset               = 12
)

var (
	magicMicroLE = []byte{0xD4, 0xC3, 0xB2, 0xA1}
	magicNanoLE  = []byte{0x4D, 0x3C, 0xB2, 0xA1}
	magicMicroBE = []byte{0xA1, 0xB2, 0xC3, 0xD4}
	magicNanoBE  = []byte{0xA1, 0xB2, 0x3C, 0x4D}
)

// Capture is the result of extracting a capture file.
type Capture struct {
	Format     Format
	Nanosecond bool
	// Frames holds every captured frame in capture order.
	Frames [][]byte
	// Truncated is set when extraction stopped on a record or block that ran
	// past the end of the input.
	Truncated bool
}

// Bytes returns the concatenation of every frame in capture order.
func (c Capture) Bytes() []byte {
	return bytes.Join(c.Frames, nil)
}

// Len returns the total number of extracted packet bytes.
func (c Capture) Len() int {
	n := 0
	for _, f := range c.Frames {
		n += len(f)
	}
	return n
}

// DetectFormat inspects the magic number at offset 0.
func DetectFormat(data []byte) (Format, bool) {
	if len(data) < 4 {
		return FormatRaw, false
	}
	head := data[:4]
	switch {
	case bytes.Equal(head, magicMicroLE):
		return FormatPcapLE, false
	case bytes.Equal(head, magicNanoLE):
		return FormatPcapLE, true
	case bytes.Equal(head, magicMicroBE):
		return FormatPcapBE, false
	case bytes.Equal(head, magicNanoBE):
		return FormatPcapBE, true
	case binary.LittleEndian.Uint32(head) == pcapngSectionHeader:
		return FormatPcapNG, false
	}
	return FormatRaw, false
}

// Extract splits a capture file into frames. It never fails: malformed or
// truncated input yields the frames read so far, and unknown input is
// returned whole as a single raw frame.
func Extract(data []byte) Capture {
	format, nano := DetectFormat(data)
	c := Capture{Format: format, Nanosecond: nano}
	switch format {
	case FormatPcapLE:
		c.Frames, c.Truncated = extractClassic(data, binary.LittleEndian)
	case FormatPcapBE:
		c.Frames, c.Truncated = extractClassic(data, binary.BigEndian)
	case FormatPcapNG:
		c.Frames, c.Truncated = extractNG(data)
	default:
		if len(data) > 0 {
			c.Frames = [][]byte{data}
		}
	}
	return c
}

// ExtractPacketBytes returns the concatenated raw bytes of every frame.
func ExtractPacketBytes(data []byte) []byte {
	return Extract(data).Bytes()
}

// ReadFile reads and extracts a capture file.
func ReadFile(path string) (Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Capture{}, fmt.Errorf("read capture: %w", err)
	}
	return Extract(data), nil
}

func extractClassic(data []byte, order binary.ByteOrder) ([][]byte, bool) {
	var frames [][]byte
	off := pcapGlobalHeaderLen
	for {
		if len(data)-off < pcapRecordHeaderLen {
			// Fewer than 16 bytes left: clean end unless a partial header dangles.
			return frames, off < len(data)
		}
		// ts_sec and ts_usec at +0 and +4 are not needed; orig_len at +12 neither.
		inclLen := order.Uint32(data[off+8 : off+12])
		if inclLen == 0 {
			return frames, false
		}
		start := off + pcapRecordHeaderLen
		if uint64(inclLen) > uint64(len(data)-start) {
			return frames, true
		}
		end := start + int(inclLen)
		frames = append(frames, data[start:end])
		off = end
	}
}

func extractNG(data []byte) ([][]byte, bool) {
	var frames [][]byte
	off := 0
	for len(data)-off >= 8 {
		blockType := binary.LittleEndian.Uint32(data[off : off+4])
		totalLen := binary.LittleEndian.Uint32(data[off+4 : off+8])
		if totalLen < pcapngMinBlockLen {
			return frames, false
		}
		if uint64(totalLen) > uint64(len(data)-off) {
			return frames, true
		}
		block := data[off : off+int(totalLen)]
		switch blockType {
		case pcapngEnhancedPacket:
			if len(block) >= epbDataOffset {
				capLen := uint64(binary.LittleEndian.Uint32(block[epbCapLenOffset : epbCapLenOffset+4]))
				avail := uint64(len(block) - epbDataOffset)
				if capLen > avail {
					capLen = avail
				}
				frames = append(frames, block[epbDataOffset:epbDataOffset+int(capLen)])
			}
		case pcapngSimplePacket:
			if end := len(block) - 4; end > spbDataOffset {
				frames = append(frames, block[spbDataOffset:end])
			}
		}
		off += int(totalLen)
	}
	return frames, false
}
