package tradewire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Wire framing modes. Length-prefixed is the negotiated mode for modern
// gateways; legacy NUL-delimits tokens directly on the wire with no frame
// boundaries.
type WireMode int

const (
	WireModeLengthPrefixed WireMode = iota
	WireModeLegacy
)

// apiPrefix opens the length-prefixed handshake. The gateway switches the
// connection into length-prefixed mode when it sees it as the first bytes.
const apiPrefix = "API\x00"

// maxFrameLength bounds a declared frame length to the 24 bit range. A
// larger length means a corrupted or hostile stream and forces a
// disconnect rather than an unbounded allocation.
const maxFrameLength = 0xFFFFFF

// handshakeBytes builds the client side of the length-prefixed handshake:
// the literal prefix, then the supported version range as a length-prefixed
// string, e.g. "v100..187".
func handshakeBytes(minVersion int, maxVersion int) []byte {
	versionRange := fmt.Sprintf("v%d..%d", minVersion, maxVersion)
	out := make([]byte, 0, len(apiPrefix)+4+len(versionRange))
	out = append(out, apiPrefix...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(versionRange)))
	out = append(out, versionRange...)
	return out
}

// inboundChunk is the result of feeding one read's bytes to the framer.
// A single chunk can carry zero, one, or many complete messages.
type inboundChunk struct {
	// complete messages, length-prefixed mode
	messages [][]string
	// raw token run, legacy mode; message boundaries are implicit
	tokens []string
	// set once, from the gateway's first reply
	serverInfo *ServerInfo
}

// framer accumulates raw bytes and extracts message boundaries. It owns no
// I/O; the controller feeds it whatever the socket produces, in whatever
// fragmentation the network chose.
type framer struct {
	mode WireMode
	buf  []byte
	// the first inbound message is the handshake reply, parsed as
	// (serverVersion, connectionTime) instead of dispatched
	awaitServerInfo bool
}

func newFramer(mode WireMode) *framer {
	return &framer{
		mode:            mode,
		awaitServerInfo: true,
	}
}

func (self *framer) feed(data []byte) (*inboundChunk, error) {
	self.buf = append(self.buf, data...)
	chunk := &inboundChunk{}
	if self.mode == WireModeLegacy {
		return chunk, self.feedLegacy(chunk)
	}
	return chunk, self.feedLengthPrefixed(chunk)
}

func (self *framer) feedLengthPrefixed(chunk *inboundChunk) error {
	for {
		if len(self.buf) < 4 {
			return nil
		}
		length := int(binary.BigEndian.Uint32(self.buf[:4]))
		if maxFrameLength < length {
			return fmt.Errorf("declared frame length %d exceeds maximum %d", length, maxFrameLength)
		}
		if len(self.buf) < 4+length {
			// partial frame, keep the remainder for the next read
			return nil
		}
		payload := self.buf[4 : 4+length]
		tokens := splitTokens(payload)
		self.buf = self.buf[4+length:]
		if self.awaitServerInfo {
			serverInfo, err := parseServerInfo(tokens)
			if err != nil {
				return err
			}
			self.awaitServerInfo = false
			chunk.serverInfo = serverInfo
			continue
		}
		chunk.messages = append(chunk.messages, tokens)
	}
}

func (self *framer) feedLegacy(chunk *inboundChunk) error {
	if self.awaitServerInfo {
		// the handshake reply is the first two NUL-terminated tokens
		first := bytes.IndexByte(self.buf, 0)
		if first < 0 {
			return nil
		}
		second := bytes.IndexByte(self.buf[first+1:], 0)
		if second < 0 {
			return nil
		}
		second += first + 1
		serverInfo, err := parseServerInfo([]string{
			string(self.buf[:first]),
			string(self.buf[first+1 : second]),
		})
		if err != nil {
			return err
		}
		self.awaitServerInfo = false
		self.buf = self.buf[second+1:]
		chunk.serverInfo = serverInfo
	}
	// complete tokens end in NUL; a partial trailing token stays buffered
	last := bytes.LastIndexByte(self.buf, 0)
	if last < 0 {
		return nil
	}
	chunk.tokens = splitTokens(self.buf[:last+1])
	self.buf = self.buf[last+1:]
	return nil
}

// encode builds the outgoing bytes for one message's tokens. Every token is
// NUL-terminated; in length-prefixed mode the UTF-8 byte count of the
// payload is prepended.
func (self *framer) encode(tokens []string) []byte {
	payloadLen := 0
	for _, token := range tokens {
		payloadLen += len(token) + 1
	}
	var out []byte
	if self.mode == WireModeLengthPrefixed {
		out = make([]byte, 0, 4+payloadLen)
		out = binary.BigEndian.AppendUint32(out, uint32(payloadLen))
	} else {
		out = make([]byte, 0, payloadLen)
	}
	for _, token := range tokens {
		out = append(out, token...)
		out = append(out, 0)
	}
	return out
}

func splitTokens(payload []byte) []string {
	if len(payload) == 0 {
		return []string{}
	}
	s := string(payload)
	// the payload is a run of NUL-terminated tokens; drop the terminator's
	// empty trailing part so empty tokens round-trip
	parts := strings.Split(s, "\x00")
	if 0 < len(parts) && parts[len(parts)-1] == "" && strings.HasSuffix(s, "\x00") {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func parseServerInfo(tokens []string) (*ServerInfo, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("malformed handshake reply: %d tokens", len(tokens))
	}
	version, err := strconv.Atoi(tokens[0])
	if err != nil {
		return nil, fmt.Errorf("malformed handshake version %q: %w", tokens[0], err)
	}
	serverInfo := &ServerInfo{
		Version:        version,
		ConnectionTime: tokens[1],
	}
	glog.V(2).Infof("[f]server version %d at %s\n", serverInfo.Version, serverInfo.ConnectionTime)
	return serverInfo, nil
}
