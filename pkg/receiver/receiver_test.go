package receiver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/goleak"

	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/ibus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func capture(frames ...[]uint16) []byte {
	cfg := ibus.DefaultConfig()
	var out []byte
	for _, f := range frames {
		out = append(out, ibus.Encode(cfg, f)...)
	}
	return out
}

func newPump(src io.Reader) (*Pump, *channels.Store) {
	cfg := ibus.DefaultConfig()
	store := channels.NewStore(cfg.Channels)
	return NewPump(src, ibus.NewDecoder(cfg), store, time.Millisecond), store
}

func TestPump_AppliesFramesUntilEOF(t *testing.T) {
	stream := capture(
		[]uint16{1500, 1500, 1000, 1500, 1000, 1000},
		[]uint16{1600, 1400, 1200, 1700, 1800, 1000},
	)
	pump, store := newPump(bytes.NewReader(stream))

	require.NoError(t, pump.Run(context.Background()))

	assert.Equal(t, uint16(1600), store.Read(0))
	assert.Equal(t, uint16(1800), store.Read(4))
	assert.Equal(t, channels.Fresh, store.Tick().Freshness)

	st := pump.Stats()
	assert.Equal(t, uint64(2), st.Frames)
	assert.Equal(t, uint64(len(stream)), st.Bytes)
	assert.Zero(t, st.TransportErrors)
}

func TestPump_PollAcrossChunks(t *testing.T) {
	stream := capture([]uint16{1100, 1200, 1300, 1400, 1500, 1600})
	pump, store := newPump(nil)

	assert.Zero(t, pump.Poll(stream[:7]))
	assert.Equal(t, channels.Never, store.Freshness(0))
	assert.Equal(t, 1, pump.Poll(stream[7:]))
	assert.Equal(t, uint16(1300), store.Read(2))
}

func TestPump_GarbageNeverReachesStore(t *testing.T) {
	good := capture([]uint16{1900, 1900, 1900, 1900, 1900, 1900})
	bad := bytes.Clone(good)
	bad[5] ^= 0x10

	pump, store := newPump(bytes.NewReader(append(bad, 0x20)))
	require.NoError(t, pump.Run(context.Background()))

	assert.Equal(t, uint16(channels.Neutral), store.Read(0))
	assert.Equal(t, channels.Never, store.Freshness(0))
	assert.Equal(t, uint64(1), pump.Stats().ChecksumFailures)
}

// flakyReader fails a few times before serving data
type flakyReader struct {
	failures int
	data     *bytes.Reader
}

func (f *flakyReader) Read(p []byte) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("framing error")
	}
	return f.data.Read(p)
}

func TestPump_TransportErrorsAreNotFatal(t *testing.T) {
	src := &flakyReader{failures: 3, data: bytes.NewReader(capture([]uint16{1234}))}
	pump, store := newPump(src)

	require.NoError(t, pump.Run(context.Background()))
	assert.Equal(t, uint64(3), pump.Stats().TransportErrors)
	assert.Equal(t, uint16(1234), store.Read(0))
}

func TestPump_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	pump, store := newPump(pr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()

	_, err := pw.Write(capture([]uint16{1700}))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return store.Read(0) == 1700 }, time.Second, time.Millisecond)

	cancel()
	// Unblock the pending read, as closing the serial port does.
	pw.CloseWithError(ErrClosed)
	require.NoError(t, <-done)
}

// fakePort embeds serial.Port for the methods the transport never calls
type fakePort struct {
	serial.Port
	mu      sync.Mutex
	reads   [][]byte
	errs    []error
	timeout time.Duration
	closed  bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	if len(f.reads) == 0 {
		return 0, nil // timeout
	}
	n := copy(p, f.reads[0])
	f.reads = f.reads[1:]
	return n, nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error { f.timeout = t; return nil }
func (f *fakePort) ResetInputBuffer() error              { return nil }
func (f *fakePort) Close() error                         { f.closed = true; return nil }

func TestSerial_ReopensAfterError(t *testing.T) {
	cfg := DefaultConfig()
	first := &fakePort{errs: []error{errors.New("device unplugged")}}
	second := &fakePort{reads: [][]byte{{0x20, 0x40}}}
	ports := []*fakePort{first, second}

	s := NewSerial(cfg)
	var modes []*serial.Mode
	s.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		assert.Equal(t, cfg.Port, name)
		modes = append(modes, mode)
		p := ports[0]
		ports = ports[1:]
		return p, nil
	}

	buf := make([]byte, 8)
	_, err := s.Read(buf)
	require.Error(t, err)
	assert.True(t, first.closed, "failed port must be closed")

	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x20, 0x40}, buf[:n])

	// Timeout is zero bytes, not an error.
	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 2, s.Opens())
	assert.Equal(t, 20*time.Millisecond, second.timeout)
	require.Len(t, modes, 2)
	assert.Equal(t, 115200, modes[0].BaudRate)
	assert.Equal(t, 8, modes[0].DataBits)
	assert.Equal(t, serial.NoParity, modes[0].Parity)
	assert.Equal(t, serial.OneStopBit, modes[0].StopBits)

	require.NoError(t, s.Close())
	assert.True(t, second.closed)
	_, err = s.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSerial_OpenFailure(t *testing.T) {
	s := NewSerial(DefaultConfig())
	s.open = func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such file")
	}
	_, err := s.Read(make([]byte, 4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/serial0")
	assert.Zero(t, s.Opens())
}

func TestReplay(t *testing.T) {
	stream := capture([]uint16{1111}, []uint16{1222})
	r := NewReplay(bytes.NewReader(stream), 32, 0, true)

	buf := make([]byte, 256)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 32, n, "one frame per read")

	n, _ = r.Read(buf)
	assert.Equal(t, 32, n)

	// EOF rewinds when looping.
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, _ = r.Read(buf)
	assert.Equal(t, stream[:32], buf[:n])

	once := NewReplay(bytes.NewReader(stream[:32]), 32, 0, false)
	once.Read(buf)
	_, err = once.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Validate())

	cfg.Port = ""
	cfg.Baud = 0
	assert.Len(t, cfg.Validate(), 2)
}
