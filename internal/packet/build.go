package packet

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Endpoint addresses one side of a synthesized frame.
type Endpoint struct {
	MAC  net.HardwareAddr
	IP   net.IP
	Port uint16
}

// Default lab endpoints used by fixtures and the selftest.
var (
	ClientEndpoint = Endpoint{
		MAC:  net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		IP:   net.IPv4(10, 0, 11, 10).To4(),
		Port: 51000,
	}
	ServerEndpoint = Endpoint{
		MAC:  net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		IP:   net.IPv4(10, 0, 11, 20).To4(),
		Port: 80,
	}
	BroadcastEndpoint = Endpoint{
		MAC:  net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		IP:   net.IPv4(10, 0, 11, 255).To4(),
		Port: 5007,
	}
)

// BuildUDPFrame builds Ethernet + IPv4 + UDP + payload with zero checksums.
func BuildUDPFrame(src, dst Endpoint, payload []byte) ([]byte, error) {
	eth, ip := baseLayers(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(src.Port),
		DstPort: layers.UDPPort(dst.Port),
	}
	return serialize(eth, ip, udp, gopacket.Payload(payload))
}

// BuildTCPFrame builds Ethernet + IPv4 + TCP + payload with zero checksums and
// no TCP options.
func BuildTCPFrame(src, dst Endpoint, seq, ack uint32, flags TCPFlags, payload []byte) ([]byte, error) {
	eth, ip := baseLayers(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port),
		DstPort: layers.TCPPort(dst.Port),
		Seq:     seq,
		Ack:     ack,
		Window:  65535,
		FIN:     flags.Has(FlagFIN),
		SYN:     flags.Has(FlagSYN),
		RST:     flags.Has(FlagRST),
		PSH:     flags.Has(FlagPSH),
		ACK:     flags.Has(FlagACK),
		URG:     flags.Has(FlagURG),
	}
	return serialize(eth, ip, tcp, gopacket.Payload(payload))
}

func baseLayers(src, dst Endpoint, proto layers.IPProtocol) (*layers.Ethernet, *layers.IPv4) {
	eth := &layers.Ethernet{
		SrcMAC:       src.MAC,
		DstMAC:       dst.MAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    src.IP,
		DstIP:    dst.IP,
	}
	return eth, ip
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: false,
	}
	if err := gopacket.SerializeLayers(buffer, opts, ls...); err != nil {
		return nil, fmt.Errorf("serialize frame: %w", err)
	}
	out := make([]byte, len(buffer.Bytes()))
	copy(out, buffer.Bytes())
	return out, nil
}

// BuildDNSQuery returns a DNS query message (not a frame) asking for the A
// record of name. Wrap it with BuildUDPFrame to port 53.
func BuildDNSQuery(id uint16, name string) ([]byte, error) {
	dns := &layers.DNS{
		ID:     id,
		OpCode: layers.DNSOpCodeQuery,
		RD:     true,
		Questions: []layers.DNSQuestion{{
			Name:  []byte(name),
			Type:  layers.DNSTypeA,
			Class: layers.DNSClassIN,
		}},
	}
	return serialize(dns)
}
