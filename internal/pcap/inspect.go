package pcap

import (
	"bytes"
	"sort"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Facts are per-frame observations from a structured decode. They are audit
// data next to the byte-stream checks and do not decide a verdict.
type Facts struct {
	Frames        int
	Decoded       int
	TCPSegments   int
	UDPDatagrams  int
	HTTPRequests  int
	HTTPResponses int
	Handshakes    int
	// DNSQuestions holds distinct lower-cased query names, sorted.
	DNSQuestions []string
}

var httpMethods = [][]byte{
	[]byte("GET "), []byte("POST "), []byte("PUT "), []byte("HEAD "),
	[]byte("DELETE "), []byte("OPTIONS "), []byte("PATCH "),
}

// Inspect decodes every frame as Ethernet with gopacket. Raw (unrecognised)
// captures are not decoded.
func Inspect(c Capture) Facts {
	facts := Facts{Frames: len(c.Frames)}
	if c.Format == FormatRaw {
		return facts
	}

	questions := map[string]struct{}{}
	type synKey struct {
		src, dst layers.TCPPort
	}
	pendingSyn := map[synKey]uint32{}
	pendingSynAck := map[synKey]uint32{}

	for _, frame := range c.Frames {
		pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		if pkt.ErrorLayer() == nil {
			facts.Decoded++
		}

		if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
			tcp, _ := tcpLayer.(*layers.TCP)
			facts.TCPSegments++
			switch {
			case tcp.SYN && !tcp.ACK:
				pendingSyn[synKey{tcp.SrcPort, tcp.DstPort}] = tcp.Seq
			case tcp.SYN && tcp.ACK:
				key := synKey{tcp.DstPort, tcp.SrcPort}
				if seq, ok := pendingSyn[key]; ok && tcp.Ack == seq+1 {
					delete(pendingSyn, key)
					pendingSynAck[key] = tcp.Seq
				}
			case tcp.ACK && !tcp.PSH && !tcp.FIN && !tcp.RST && len(tcp.Payload) == 0:
				key := synKey{tcp.SrcPort, tcp.DstPort}
				if seq, ok := pendingSynAck[key]; ok && tcp.Ack == seq+1 {
					delete(pendingSynAck, key)
					facts.Handshakes++
				}
			}
			countHTTP(&facts, tcp.Payload)
		}

		if pkt.Layer(layers.LayerTypeUDP) != nil {
			facts.UDPDatagrams++
		}

		if dnsLayer := pkt.Layer(layers.LayerTypeDNS); dnsLayer != nil {
			dns, _ := dnsLayer.(*layers.DNS)
			for _, q := range dns.Questions {
				questions[strings.ToLower(string(q.Name))] = struct{}{}
			}
		}
	}

	for name := range questions {
		facts.DNSQuestions = append(facts.DNSQuestions, name)
	}
	sort.Strings(facts.DNSQuestions)
	return facts
}

// HasDNSQuestion reports whether a decoded DNS question matches name,
// ignoring case and a trailing dot.
func (f Facts) HasDNSQuestion(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if name == "" {
		return false
	}
	idx := sort.SearchStrings(f.DNSQuestions, name)
	return idx < len(f.DNSQuestions) && f.DNSQuestions[idx] == name
}

func countHTTP(facts *Facts, payload []byte) {
	if len(payload) == 0 {
		return
	}
	if bytes.HasPrefix(payload, []byte("HTTP/1.")) {
		facts.HTTPResponses++
		return
	}
	for _, m := range httpMethods {
		if bytes.HasPrefix(payload, m) {
			facts.HTTPRequests++
			return
		}
	}
}
