package tradewire

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

// fakeConn is an in-memory gateway connection: the test serves inbound
// bytes through readCh and observes outbound writes on writes.
type fakeConn struct {
	readCh    chan []byte
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	pending   []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		readCh: make(chan []byte, 16),
		writes: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (self *fakeConn) Read(b []byte) (int, error) {
	if len(self.pending) == 0 {
		select {
		case data := <-self.readCh:
			self.pending = data
		case <-self.closed:
			return 0, io.EOF
		}
	}
	n := copy(b, self.pending)
	self.pending = self.pending[n:]
	return n, nil
}

func (self *fakeConn) Write(b []byte) (int, error) {
	select {
	case <-self.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	data := make([]byte, len(b))
	copy(data, b)
	self.writes <- data
	return len(b), nil
}

func (self *fakeConn) Close() error {
	self.closeOnce.Do(func() {
		close(self.closed)
	})
	return nil
}

func (self *fakeConn) serve(data []byte) {
	self.readCh <- data
}

func frameTokens(tokens ...string) []byte {
	return (&framer{mode: WireModeLengthPrefixed}).encode(tokens)
}

func nextWrite(t *testing.T, conn *fakeConn, timeout time.Duration) []byte {
	t.Helper()
	select {
	case data := <-conn.writes:
		return data
	case <-time.After(timeout):
		t.Fatal("timeout waiting for write")
		return nil
	}
}

func nextWriteTokens(t *testing.T, conn *fakeConn, timeout time.Duration) []string {
	t.Helper()
	data := nextWrite(t, conn, timeout)
	if len(data) < 4 {
		t.Fatalf("short frame: %d bytes", len(data))
	}
	length := int(binary.BigEndian.Uint32(data[:4]))
	assert.Equal(t, length, len(data)-4)
	return splitTokens(data[4:])
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

func TestControllerHandshakeAndQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn()
	settings := DefaultSettings()
	settings.MaxRequestsPerSecond = 10
	settings.Dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
		return conn, nil
	}

	c := newController(ctx, settings)
	defer c.Close()

	serverVersions := make(chan ServerInfo, 1)
	c.On(EventServerVersion, func(payload any) {
		serverVersions <- payload.(ServerInfo)
	})
	times := make(chan CurrentTime, 1)
	c.On(EventCurrentTime, func(payload any) {
		times <- payload.(CurrentTime)
	})

	c.Connect(7)
	assert.Equal(t, c.Connected(), true)

	handshake := nextWrite(t, conn, time.Second)
	assert.Equal(t, string(handshake[:4]), "API\x00")
	assert.Equal(t, string(handshake[8:]), "v100..187")

	// scheduled before the handshake completes, must stay queued
	c.schedule(c.encoder.reqCurrentTime())

	conn.serve(frameTokens("176", "20260829 10:00:00 EST"))
	select {
	case info := <-serverVersions:
		assert.Equal(t, info.Version, 176)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for server version")
	}
	assert.Equal(t, c.ServerVersion(), 176)

	// start-api bypasses the paused queue
	assert.Equal(t, nextWriteTokens(t, conn, time.Second), []string{"71", "2", "7", ""})

	// nothing else goes out before the gateway assigns the first valid id
	select {
	case data := <-conn.writes:
		t.Fatalf("unexpected write before queue resume: %v", data)
	case <-time.After(300 * time.Millisecond):
	}

	c.schedule(c.encoder.reqIds())
	c.schedule(c.encoder.reqManagedAccounts())

	conn.serve(frameTokens("9", "1", "1"))

	// the queue drains in fifo order
	assert.Equal(t, nextWriteTokens(t, conn, time.Second), []string{"49", "1"})
	assert.Equal(t, nextWriteTokens(t, conn, time.Second), []string{"8", "1", "1"})
	assert.Equal(t, nextWriteTokens(t, conn, time.Second), []string{"17", "1"})

	conn.serve(frameTokens("49", "1", "1724900000"))
	select {
	case currentTime := <-times:
		assert.Equal(t, currentTime.Time, int64(1724900000))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for current time")
	}
}

func TestControllerRateLimitPacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn()
	settings := DefaultSettings()
	// one command per 100ms slice
	settings.MaxRequestsPerSecond = 10
	settings.Dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
		return conn, nil
	}

	c := newController(ctx, settings)
	defer c.Close()

	c.Connect(7)
	nextWrite(t, conn, time.Second)
	conn.serve(frameTokens("176", "ts"))
	nextWriteTokens(t, conn, time.Second)
	conn.serve(frameTokens("9", "1", "1"))

	for i := 0; i < 3; i += 1 {
		c.schedule(c.encoder.reqCurrentTime())
	}

	start := time.Now()
	for i := 0; i < 3; i += 1 {
		assert.Equal(t, nextWriteTokens(t, conn, time.Second), []string{"49", "1"})
	}
	// three commands at one per slice cannot drain in a single slice
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("queue drained too fast: %s", elapsed)
	}
}

func TestControllerScheduleWhileDisconnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newController(ctx, DefaultSettings())
	defer c.Close()

	errorEvents := make(chan ApiError, 1)
	c.On(EventError, func(payload any) {
		errorEvents <- payload.(ApiError)
	})

	c.schedule(c.encoder.reqCurrentTime())
	select {
	case apiError := <-errorEvents:
		assert.Equal(t, apiError.Code, ErrNotConnected)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error event")
	}
}

func TestControllerDuplicateConnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn()
	settings := DefaultSettings()
	settings.Dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
		return conn, nil
	}

	c := newController(ctx, settings)
	defer c.Close()

	errorEvents := make(chan ApiError, 4)
	c.On(EventError, func(payload any) {
		errorEvents <- payload.(ApiError)
	})

	c.Connect(7)
	c.Connect(7)
	select {
	case apiError := <-errorEvents:
		assert.Equal(t, apiError.Code, ErrAlreadyConnected)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error event")
	}
}

func TestControllerBadFrameLengthDisconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn()
	settings := DefaultSettings()
	settings.Dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
		return conn, nil
	}

	c := newController(ctx, settings)
	defer c.Close()

	errorEvents := make(chan ApiError, 4)
	c.On(EventError, func(payload any) {
		errorEvents <- payload.(ApiError)
	})
	disconnects := make(chan Disconnected, 1)
	c.On(EventDisconnected, func(payload any) {
		disconnects <- payload.(Disconnected)
	})

	c.Connect(7)
	conn.serve(frameTokens("176", "ts"))
	nextWrite(t, conn, time.Second)

	header := binary.BigEndian.AppendUint32(nil, maxFrameLength+1)
	conn.serve(header)

	select {
	case apiError := <-errorEvents:
		assert.Equal(t, apiError.Code, ErrBadLength)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error event")
	}
	select {
	case <-disconnects:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for disconnect event")
	}
	waitFor(t, time.Second, func() bool {
		return !c.Connected()
	})
}

func TestControllerUnsupportedVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn()
	settings := DefaultSettings()
	settings.Dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
		return conn, nil
	}

	c := newController(ctx, settings)
	defer c.Close()

	errorEvents := make(chan ApiError, 4)
	c.On(EventError, func(payload any) {
		errorEvents <- payload.(ApiError)
	})

	c.Connect(7)
	conn.serve(frameTokens("99", "ts"))

	select {
	case apiError := <-errorEvents:
		assert.Equal(t, apiError.Code, ErrUnsupportedVersion)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error event")
	}
	waitFor(t, time.Second, func() bool {
		return !c.Connected()
	})
}
