package canusb

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"carhack/internal/frame"
)

type fakePort struct {
	io.Reader
	written bytes.Buffer
	closed  bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newFakePort(input string) *fakePort {
	return &fakePort{Reader: strings.NewReader(input)}
}

func fixedClock() time.Time { return time.Unix(100, 500_000_000) }

func TestParseLine(t *testing.T) {
	f, err := ParseLine("t28080000000027100000", 1.5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x280), f.ID)
	assert.Equal(t, 1.5, f.Timestamp)
	assert.Len(t, f.Data, 8)
	assert.Equal(t, byte(0x27), f.Data[4])
	assert.False(t, f.Extended)
}

func TestParseLineWithAdapterTimestamp(t *testing.T) {
	f, err := ParseLine("t4212A800EA60", 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA8, 0x00}, f.Data)
	assert.Equal(t, 2.0, f.Timestamp)
}

func TestParseLineExtended(t *testing.T) {
	f, err := ParseLine("T182098203A20102", 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x18209820), f.ID)
	assert.True(t, f.Extended)
	assert.Equal(t, []byte{0xA2, 0x01, 0x02}, f.Data)
}

func TestParseLineErrors(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"not a frame":  "F00",
		"short":        "t28",
		"bad id":       "tXYZ1AA",
		"bad dlc":      "t2809AA",
		"dlc mismatch": "t2802AA",
		"bad data":     "t2801GG",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLine(line, 0)
			assert.Error(t, err)
		})
	}
	_, err := ParseLine("F00", 0)
	assert.ErrorIs(t, err, ErrNotFrame)
}

func TestBitrateCommand(t *testing.T) {
	cmd, err := DefaultBitrate.Command()
	require.NoError(t, err)
	assert.Equal(t, "S6", cmd)

	cmd, err = Bitrate(1_000_000).Command()
	require.NoError(t, err)
	assert.Equal(t, "S8", cmd)

	_, err = Bitrate(33_333).Command()
	assert.ErrorContains(t, err, "unsupported bitrate")
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("F88")
	require.NoError(t, err)
	assert.Equal(t, []string{"data_overrun", "bus_error"}, s.Flags())

	s, err = ParseStatus("F00")
	require.NoError(t, err)
	assert.Empty(t, s.Flags())

	_, err = ParseStatus("x")
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	port := newFakePort("\a\r\r\r")
	a := New(port, WithBitrate(250_000))

	require.NoError(t, a.Start())
	assert.Equal(t, "C\rS5\rZ0\rO\r", port.written.String())
}

func TestStartRejected(t *testing.T) {
	port := newFakePort("\r\a")
	a := New(port)

	err := a.Start()
	assert.ErrorIs(t, err, ErrCommandRejected)
	assert.ErrorContains(t, err, `"S6"`)
}

func TestStartNoReply(t *testing.T) {
	a := New(newFakePort(""))
	assert.ErrorIs(t, a.Start(), io.ErrUnexpectedEOF)
}

func TestStatus(t *testing.T) {
	port := newFakePort("F04\r")
	s, err := New(port).Status()
	require.NoError(t, err)
	assert.Equal(t, StatusErrorWarning, s)
	assert.Equal(t, "F\r", port.written.String())
}

func TestMonitor(t *testing.T) {
	port := newFakePort("\r\r\r\r" +
		"t4212A800\r" +
		"z\r" +
		"garbage\r" +
		"t28080000000027100000\r")
	a := New(port, WithClock(fixedClock))
	require.NoError(t, a.Start())

	var got []frame.Frame
	require.NoError(t, a.Monitor(context.Background(), func(f frame.Frame) { got = append(got, f) }))

	require.Len(t, got, 2)
	assert.Equal(t, uint32(0x421), got[0].ID)
	assert.Equal(t, 100.5, got[0].Timestamp)
	assert.Equal(t, uint32(0x280), got[1].ID)
}

func TestMonitorCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	a := New(&fakePort{Reader: r})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Monitor(ctx, func(frame.Frame) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestClose(t *testing.T) {
	port := newFakePort("")
	a := New(port)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.True(t, port.closed)
	assert.Equal(t, "C\r", port.written.String())
}

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.ErrorContains(t, err, "invalid data bits")
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.ErrorContains(t, err, "invalid stop bits")
	_, err = PortOptions{Parity: "mark"}.Normalize()
	assert.ErrorContains(t, err, "unsupported parity")
}

func TestSerialMode(t *testing.T) {
	mode, err := PortOptions{Parity: "O", StopBits: 2}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.OddParity,
		StopBits: serial.TwoStopBits,
	}, mode)
}

func TestStatusSkipsFrames(t *testing.T) {
	port := newFakePort("t4212A800\rF00\r")
	s, err := New(port).Status()
	require.NoError(t, err)
	assert.Equal(t, Status(0), s)
}
