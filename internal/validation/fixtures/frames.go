// Package fixtures synthesizes lab submissions: challenge, evidence and a
// capture built from gopacket frames.
package fixtures

import (
	"fmt"

	"github.com/tturner/labcheck/internal/packet"
)

// DNSServer is the resolver endpoint used for synthesized queries.
var DNSServer = packet.Endpoint{
	MAC:  packet.ServerEndpoint.MAC,
	IP:   packet.ServerEndpoint.IP,
	Port: 53,
}

// UDPPayloadFrames returns one broadcast UDP datagram carrying payload.
func UDPPayloadFrames(payload string) ([][]byte, error) {
	frame, err := packet.BuildUDPFrame(packet.ClientEndpoint, packet.BroadcastEndpoint, []byte(payload))
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// HandshakeFrames returns SYN, SYN+ACK, ACK and a PSH+ACK segment carrying payload.
func HandshakeFrames(payload string) ([][]byte, error) {
	const clientISN, serverISN = 1000, 5000
	c, s := packet.ClientEndpoint, packet.ServerEndpoint
	specs := []struct {
		src, dst Endpoint
		seq, ack uint32
		flags    packet.TCPFlags
		payload  []byte
	}{
		{c, s, clientISN, 0, packet.FlagSYN, nil},
		{s, c, serverISN, clientISN + 1, packet.FlagSYN | packet.FlagACK, nil},
		{c, s, clientISN + 1, serverISN + 1, packet.FlagACK, nil},
		{c, s, clientISN + 1, serverISN + 1, packet.FlagPSH | packet.FlagACK, []byte(payload)},
	}
	frames := make([][]byte, 0, len(specs))
	for _, spec := range specs {
		frame, err := packet.BuildTCPFrame(spec.src, spec.dst, spec.seq, spec.ack, spec.flags, spec.payload)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// Endpoint is re-exported for building custom flows.
type Endpoint = packet.Endpoint

// HTTPExchangeFrames returns requests requests carrying "<header>: <token>"
// and one response per request naming a backend round-robin from backends.
func HTTPExchangeFrames(token, header string, requests int, backends []string) ([][]byte, error) {
	c, s := packet.ClientEndpoint, packet.ServerEndpoint
	seq, ack := uint32(1001), uint32(5001)
	var frames [][]byte
	for i := 0; i < requests; i++ {
		req := fmt.Sprintf("GET /lab?i=%d HTTP/1.1\r\nHost: lab.local\r\n%s: %s\r\n\r\n", i, header, token)
		frame, err := packet.BuildTCPFrame(c, s, seq, ack, packet.FlagPSH|packet.FlagACK, []byte(req))
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
		seq += uint32(len(req))

		if len(backends) == 0 {
			continue
		}
		backend := backends[i%len(backends)]
		resp := fmt.Sprintf("HTTP/1.1 200 OK\r\nX-Served-By: %s\r\nX-Backend-ID: %s\r\nContent-Length: 0\r\n\r\n", backend, backend)
		frame, err = packet.BuildTCPFrame(s, c, ack, seq, packet.FlagPSH|packet.FlagACK, []byte(resp))
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
		ack += uint32(len(resp))
	}
	return frames, nil
}

// DNSQueryFrames returns one DNS query for name sent to DNSServer.
func DNSQueryFrames(name string) ([][]byte, error) {
	msg, err := packet.BuildDNSQuery(0x4c42, name)
	if err != nil {
		return nil, err
	}
	frame, err := packet.BuildUDPFrame(packet.ClientEndpoint, DNSServer, msg)
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// Concat joins frame groups, stopping at the first error.
func Concat(groups ...func() ([][]byte, error)) ([][]byte, error) {
	var all [][]byte
	for _, g := range groups {
		frames, err := g()
		if err != nil {
			return nil, err
		}
		all = append(all, frames...)
	}
	return all, nil
}
