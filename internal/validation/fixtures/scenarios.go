package fixtures

import "time"

// ValidationTime is a moment inside every fixture challenge's lifetime.
var ValidationTime = Epoch.Add(time.Hour)

// Scenario is a named synthetic submission with its expected verdict.
type Scenario struct {
	Name        string
	Description string
	Build       func() (Options, error)
	WantOK      bool
	// WantError is a substring of an expected error when WantOK is false.
	WantError string
}

// Scenarios returns the built-in selftest catalogue.
func Scenarios() []Scenario {
	const token = "W11-abc123"
	return []Scenario{
		{
			Name:        "udp-token",
			Description: "broadcast UDP datagram carrying the token",
			Build: func() (Options, error) {
				frames, err := UDPPayloadFrames("hello from " + token)
				return Options{Token: token, Frames: frames}, err
			},
			WantOK: true,
		},
		{
			Name:        "udp-noise",
			Description: "broadcast UDP datagram without the token",
			Build: func() (Options, error) {
				frames, err := UDPPayloadFrames("hello from nobody")
				return Options{Token: token, Frames: frames}, err
			},
			WantError: "not found in capture",
		},
		{
			Name:        "tcp-handshake",
			Description: "SYN, SYN+ACK, ACK then a data segment with the token",
			Build: func() (Options, error) {
				frames, err := HandshakeFrames("token=" + token)
				return Options{Token: token, Frames: frames, RequireTCPHandshake: true}, err
			},
			WantOK: true,
		},
		{
			Name:        "http-backends",
			Description: "signed challenge, ten token requests over two backends and a DNS query (pcapng)",
			Build: func() (Options, error) {
				dnsName := "w11-abc123.lab.local"
				frames, err := Concat(
					func() ([][]byte, error) { return HandshakeFrames("") },
					func() ([][]byte, error) {
						return HTTPExchangeFrames(token, "X-AI-Challenge", 10, []string{"web1", "web2"})
					},
					func() ([][]byte, error) { return DNSQueryFrames(dnsName) },
				)
				return Options{
					Token:               token,
					Frames:              frames,
					Format:              FormatPcapNG,
					MinHTTPRequests:     10,
					MinDistinctBackends: 2,
					DNSQueryName:        dnsName,
					RequireTCPHandshake: true,
					Secret:              []byte("selftest-secret"),
					Artefacts:           map[string]string{"out/report.json": `{"backends":["web1","web2"]}`},
				}, err
			},
			WantOK: true,
		},
		{
			Name:        "too-few-requests",
			Description: "seven token requests against a minimum of ten",
			Build: func() (Options, error) {
				frames, err := HTTPExchangeFrames(token, "x-ai-challenge", 7, []string{"web1"})
				return Options{Token: token, Frames: frames, MinHTTPRequests: 10}, err
			},
			WantError: "Too few token HTTP requests: 7 < 10",
		},
		{
			Name:        "big-endian",
			Description: "big-endian classic pcap with the token",
			Build: func() (Options, error) {
				frames, err := UDPPayloadFrames(token)
				return Options{Token: token, Frames: frames, Format: FormatPcapBE}, err
			},
			WantOK: true,
		},
	}
}
