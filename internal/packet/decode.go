// Package packet decodes and synthesizes the minimal Ethernet, IPv4, TCP and UDP
// headers needed to reason about lab captures.
//
// Decoders are pure functions over byte slices. They never panic and report
// short or malformed input through their boolean result.
package packet

import (
	"encoding/binary"
	"net"
)

// Header sizes and field values used by the decoders and builders.
const (
	EthernetHeaderLen = 14
	IPv4HeaderLen     = 20
	UDPHeaderLen      = 8
	TCPHeaderLen      = 20

	EtherTypeIPv4 uint16 = 0x0800

	IPProtocolTCP uint8 = 6
	IPProtocolUDP uint8 = 17
)

// TCPFlags is the low six bits of the TCP flags byte.
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 0x01
	FlagSYN TCPFlags = 0x02
	FlagRST TCPFlags = 0x04
	FlagPSH TCPFlags = 0x08
	FlagACK TCPFlags = 0x10
	FlagURG TCPFlags = 0x20

	flagMask TCPFlags = 0x3F
)

// Has reports whether every flag in f is set.
func (t TCPFlags) Has(f TCPFlags) bool {
	return t&f == f
}

// String renders the set flags in wire order, e.g. "SYN|ACK".
func (t TCPFlags) String() string {
	names := []struct {
		flag TCPFlags
		name string
	}{
		{FlagFIN, "FIN"}, {FlagSYN, "SYN"}, {FlagRST, "RST"},
		{FlagPSH, "PSH"}, {FlagACK, "ACK"}, {FlagURG, "URG"},
	}
	out := ""
	for _, n := range names {
		if t.Has(n.flag) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "none"
	}
	return out
}

// Ethernet is a decoded Ethernet II header.
type Ethernet struct {
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	EtherType uint16
}

// IPv4 is a decoded IPv4 header. Options are skipped, not decoded.
type IPv4 struct {
	Version     uint8
	HeaderLen   int
	TotalLength uint16
	TTL         uint8
	Protocol    uint8
	SrcIP       net.IP
	DstIP       net.IP
}

// TCP is a decoded TCP header. Options are skipped, not decoded.
type TCP struct {
	SrcPort    uint16
	DstPort    uint16
	Seq        uint32
	Ack        uint32
	DataOffset int
	Flags      TCPFlags
	Window     uint16
}

// UDP is a decoded UDP header.
type UDP struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16
}

// ParseEthernet decodes an Ethernet II header and returns the remaining bytes.
func ParseEthernet(b []byte) (Ethernet, []byte, bool) {
	if len(b) < EthernetHeaderLen {
		return Ethernet{}, nil, false
	}
	eth := Ethernet{
		DstMAC:    net.HardwareAddr(append([]byte(nil), b[0:6]...)),
		SrcMAC:    net.HardwareAddr(append([]byte(nil), b[6:12]...)),
		EtherType: binary.BigEndian.Uint16(b[12:14]),
	}
	return eth, b[EthernetHeaderLen:], true
}

// ParseIPv4 decodes an IPv4 header and returns its payload. The payload is
// bounded by the total length field when that field is consistent with the
// buffer, so Ethernet padding is not mistaken for transport data.
func ParseIPv4(b []byte) (IPv4, []byte, bool) {
	if len(b) < IPv4HeaderLen {
		return IPv4{}, nil, false
	}
	version := b[0] >> 4
	ihl := int(b[0]&0x0F) * 4
	if version != 4 || ihl < IPv4HeaderLen || len(b) < ihl {
		return IPv4{}, nil, false
	}
	ip := IPv4{
		Version:     version,
		HeaderLen:   ihl,
		TotalLength: binary.BigEndian.Uint16(b[2:4]),
		TTL:         b[8],
		Protocol:    b[9],
		SrcIP:       net.IPv4(b[12], b[13], b[14], b[15]).To4(),
		DstIP:       net.IPv4(b[16], b[17], b[18], b[19]).To4(),
	}
	end := len(b)
	if total := int(ip.TotalLength); total >= ihl && total < end {
		end = total
	}
	return ip, b[ihl:end], true
}

// ParseTCP decodes a TCP header and returns the segment payload.
func ParseTCP(b []byte) (TCP, []byte, bool) {
	if len(b) < TCPHeaderLen {
		return TCP{}, nil, false
	}
	offset := int(b[12]>>4) * 4
	if offset < TCPHeaderLen || len(b) < offset {
		return TCP{}, nil, false
	}
	tcp := TCP{
		SrcPort:    binary.BigEndian.Uint16(b[0:2]),
		DstPort:    binary.BigEndian.Uint16(b[2:4]),
		Seq:        binary.BigEndian.Uint32(b[4:8]),
		Ack:        binary.BigEndian.Uint32(b[8:12]),
		DataOffset: offset,
		Flags:      TCPFlags(b[13]) & flagMask,
		Window:     binary.BigEndian.Uint16(b[14:16]),
	}
	return tcp, b[offset:], true
}

// ParseUDP decodes a UDP header and returns the datagram payload.
func ParseUDP(b []byte) (UDP, []byte, bool) {
	if len(b) < UDPHeaderLen {
		return UDP{}, nil, false
	}
	udp := UDP{
		SrcPort: binary.BigEndian.Uint16(b[0:2]),
		DstPort: binary.BigEndian.Uint16(b[2:4]),
		Length:  binary.BigEndian.Uint16(b[4:6]),
	}
	end := len(b)
	if l := int(udp.Length); l >= UDPHeaderLen && l < end {
		end = l
	}
	return udp, b[UDPHeaderLen:end], true
}

// Frame is an Ethernet frame decoded as far as IPv4 and TCP or UDP.
type Frame struct {
	Ethernet Ethernet
	IPv4     *IPv4
	TCP      *TCP
	UDP      *UDP
	Payload  []byte
}

// DecodeFrame decodes as many layers of an Ethernet frame as it can. The
// boolean is false only when the Ethernet header itself is unreadable.
func DecodeFrame(b []byte) (Frame, bool) {
	eth, rest, ok := ParseEthernet(b)
	if !ok {
		return Frame{}, false
	}
	frame := Frame{Ethernet: eth, Payload: rest}
	if eth.EtherType != EtherTypeIPv4 {
		return frame, true
	}
	ip, rest, ok := ParseIPv4(rest)
	if !ok {
		return frame, true
	}
	frame.IPv4 = &ip
	frame.Payload = rest
	switch ip.Protocol {
	case IPProtocolTCP:
		if tcp, payload, ok := ParseTCP(rest); ok {
			frame.TCP = &tcp
			frame.Payload = payload
		}
	case IPProtocolUDP:
		if udp, payload, ok := ParseUDP(rest); ok {
			frame.UDP = &udp
			frame.Payload = payload
		}
	}
	return frame, true
}

// HandshakeSeen reports whether the frames contain a TCP three-way handshake:
// a SYN, then a SYN+ACK acknowledging it, then a pure ACK acknowledging the
// SYN+ACK, in capture order. Unrelated frames may be interleaved.
func HandshakeSeen(frames [][]byte) bool {
	var syn, synAck *TCP
	for _, raw := range frames {
		frame, ok := DecodeFrame(raw)
		if !ok || frame.TCP == nil {
			continue
		}
		tcp := frame.TCP
		switch {
		case tcp.Flags.Has(FlagSYN) && !tcp.Flags.Has(FlagACK):
			syn, synAck = tcp, nil
		case syn != nil && tcp.Flags.Has(FlagSYN|FlagACK) && tcp.Ack == syn.Seq+1:
			synAck = tcp
		case synAck != nil && tcp.Flags == FlagACK && tcp.Ack == synAck.Seq+1:
			return true
		}
	}
	return false
}
