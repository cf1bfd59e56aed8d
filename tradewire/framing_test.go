package tradewire

import (
	"encoding/binary"
	"testing"

	"github.com/go-playground/assert/v2"
)

func serverInfoFrame(version string, connectionTime string) []byte {
	f := &framer{mode: WireModeLengthPrefixed}
	return f.encode([]string{version, connectionTime})
}

func TestHandshakeBytes(t *testing.T) {
	b := handshakeBytes(100, 187)
	assert.Equal(t, string(b[:4]), "API\x00")
	versionRange := "v100..187"
	assert.Equal(t, int(binary.BigEndian.Uint32(b[4:8])), len(versionRange))
	assert.Equal(t, string(b[8:]), versionRange)
}

func TestFramerServerInfo(t *testing.T) {
	f := newFramer(WireModeLengthPrefixed)
	chunk, err := f.feed(serverInfoFrame("176", "20260829 10:00:00 EST"))
	assert.Equal(t, err, nil)
	assert.NotEqual(t, chunk.serverInfo, nil)
	assert.Equal(t, chunk.serverInfo.Version, 176)
	assert.Equal(t, chunk.serverInfo.ConnectionTime, "20260829 10:00:00 EST")
	assert.Equal(t, len(chunk.messages), 0)
}

func TestFramerRoundTrip(t *testing.T) {
	tokens := []string{"", "héllo", "a b", "", "中文"}

	f := newFramer(WireModeLengthPrefixed)
	_, err := f.feed(serverInfoFrame("176", "ts"))
	assert.Equal(t, err, nil)

	chunk, err := f.feed(f.encode(tokens))
	assert.Equal(t, err, nil)
	assert.Equal(t, len(chunk.messages), 1)
	assert.Equal(t, chunk.messages[0], tokens)
}

func TestFramerSplitAtEveryOffset(t *testing.T) {
	tokens := []string{"3", "1", "Filled", "", "héllo"}
	frame := (&framer{mode: WireModeLengthPrefixed}).encode(tokens)

	for i := 0; i <= len(frame); i += 1 {
		f := newFramer(WireModeLengthPrefixed)
		_, err := f.feed(serverInfoFrame("176", "ts"))
		assert.Equal(t, err, nil)

		chunk, err := f.feed(frame[:i])
		assert.Equal(t, err, nil)
		messages := chunk.messages

		chunk, err = f.feed(frame[i:])
		assert.Equal(t, err, nil)
		messages = append(messages, chunk.messages...)

		assert.Equal(t, len(messages), 1)
		assert.Equal(t, messages[0], tokens)
	}
}

func TestFramerManyMessagesOneChunk(t *testing.T) {
	f := newFramer(WireModeLengthPrefixed)
	_, err := f.feed(serverInfoFrame("176", "ts"))
	assert.Equal(t, err, nil)

	data := append(f.encode([]string{"49", "1"}), f.encode([]string{"9", "1", "5"})...)
	chunk, err := f.feed(data)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(chunk.messages), 2)
	assert.Equal(t, chunk.messages[0], []string{"49", "1"})
	assert.Equal(t, chunk.messages[1], []string{"9", "1", "5"})
}

func TestFramerRejectsOversizedFrame(t *testing.T) {
	f := newFramer(WireModeLengthPrefixed)
	_, err := f.feed(serverInfoFrame("176", "ts"))
	assert.Equal(t, err, nil)

	header := binary.BigEndian.AppendUint32(nil, maxFrameLength+1)
	_, err = f.feed(header)
	assert.NotEqual(t, err, nil)
}

func TestFramerRejectsMalformedHandshakeReply(t *testing.T) {
	f := newFramer(WireModeLengthPrefixed)
	_, err := f.feed((&framer{mode: WireModeLengthPrefixed}).encode([]string{"abc", "ts"}))
	assert.NotEqual(t, err, nil)
}

func TestFramerLegacy(t *testing.T) {
	f := newFramer(WireModeLegacy)

	// handshake reply plus a token run with a partial trailing token
	chunk, err := f.feed([]byte("76\x00ts\x0049\x001\x00172"))
	assert.Equal(t, err, nil)
	assert.NotEqual(t, chunk.serverInfo, nil)
	assert.Equal(t, chunk.serverInfo.Version, 76)
	assert.Equal(t, chunk.tokens, []string{"49", "1"})

	chunk, err = f.feed([]byte("4900000\x00"))
	assert.Equal(t, err, nil)
	assert.Equal(t, chunk.tokens, []string{"1724900000"})
}

func TestFramerLegacyEncode(t *testing.T) {
	f := &framer{mode: WireModeLegacy}
	assert.Equal(t, f.encode([]string{"71", "2"}), []byte("71\x002\x00"))
}

func TestSplitTokens(t *testing.T) {
	assert.Equal(t, splitTokens([]byte{}), []string{})
	assert.Equal(t, splitTokens([]byte("a\x00\x00b\x00")), []string{"a", "", "b"})
	// empty tokens round-trip, including a trailing one
	assert.Equal(t, splitTokens([]byte("a\x00b\x00\x00")), []string{"a", "b", ""})
}
