package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"carhack/internal/sink"
)

const candump = `(1690000000.000000) can0 421#A800
(1690000000.010000) can0 280#0000000027100000
(1690000000.020000) can0 7ff#01
(1690000000.030000) can0 280#00000000271000
(1690000000.040000) can0 551#5A210000FF020000
`

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"carhack"}, args...))
	return out.String(), errOut.String(), err
}

func writeCapture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeText(t *testing.T) {
	path := writeCapture(t, "drive.log", candump)

	out, errOut, err := runApp(t, "decode", "--log-level", "error", path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"1690000000.000000 6mt=6",
		"1690000000.010000 vehicle_speed=100",
		"1690000000.040000 temp_sensor_a=90",
		"1690000000.040000 engine_revolutions=33",
		"1690000000.040000 cruise_control_status=0",
		"1690000000.040000 cruise_control_speed=-1",
	}, strings.Split(strings.TrimSpace(out), "\n"))

	assert.Contains(t, errOut, "Decoded Frames: 3")
	assert.Contains(t, errOut, "Unmodeled Frames: 1 (1 IDs)")
	assert.Contains(t, errOut, "Length Mismatches: 1")
}

func TestDecodeExtendedAndEmptyFrames(t *testing.T) {
	path := writeCapture(t, "mixed.log", `(1.0) can0 00000280#0000000027100000
(2.0) can0 421#
(3.0) can0 280#0000000027100000
`)

	out, errOut, err := runApp(t, "decode", "--log-level", "error", path)
	require.NoError(t, err)

	// the extended 0x280 shares the number, not the message
	assert.Equal(t, "3.000000 vehicle_speed=100\n", out)
	assert.Contains(t, errOut, "Decoded Frames: 1")
	assert.Contains(t, errOut, "Unmodeled Frames: 1 (1 IDs)")
	assert.Contains(t, errOut, "Length Mismatches: 1\n      0x421: 1")
	assert.Contains(t, errOut, "0x00000280: 1")
}

func TestDecodeSignalFilterCBOR(t *testing.T) {
	path := writeCapture(t, "drive.log", candump)

	out, _, err := runApp(t, "decode", "--log-level", "error", "--summary=false",
		"--format", "cbor", "--signal", "vehicle_speed", path)
	require.NoError(t, err)

	var got []sink.Record
	require.NoError(t, sink.ReadRecords(sink.FormatCBOR, strings.NewReader(out), func(r sink.Record) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "vehicle_speed", got[0].Name)
	assert.Equal(t, 100.0, got[0].Value)
}

func TestDecodeGroupByID(t *testing.T) {
	path := writeCapture(t, "drive.log", candump)

	_, errOut, err := runApp(t, "decode", "--log-level", "error", "--summary=false",
		"--group-by-id", "--hide-decoded", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "CAN ID: 0x7ff (1 frames)")
	assert.Contains(t, errOut, "[MALFORMED]")
	assert.NotContains(t, errOut, "CAN ID: 0x421")
}

func TestDecodeBadFormat(t *testing.T) {
	_, _, err := runApp(t, "decode", "--format", "xml", writeCapture(t, "a.log", candump))
	var exitCoder cli.ExitCoder
	require.ErrorAs(t, err, &exitCoder)
	assert.Equal(t, exitUsage, exitCoder.ExitCode())
}

func TestDecodeMissingFile(t *testing.T) {
	_, _, err := runApp(t, "decode", "--log-level", "error", filepath.Join(t.TempDir(), "nope.log"))
	var exitCoder cli.ExitCoder
	require.ErrorAs(t, err, &exitCoder)
	assert.Equal(t, exitFailure, exitCoder.ExitCode())
}

func TestIDs(t *testing.T) {
	out, _, err := runApp(t, "ids", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "nissan_370z: 14 decoders")
	assert.Contains(t, out, "0x421  len 2  6mt")

	out, _, err = runApp(t, "ids", "--log-level", "error", "--topics")
	require.NoError(t, err)
	assert.Equal(t, "canusb.can.002", strings.SplitN(out, "\n", 2)[0])
}

func TestCompare(t *testing.T) {
	a := writeCapture(t, "a.log", candump)
	b := writeCapture(t, "b.log", "(1.0) can0 7ff#01\n(2.0) can0 123#AA\n")

	out, _, err := runApp(t, "compare", "--log-level", "error", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "Frames Common to ALL Files (1 patterns)")
	assert.Contains(t, out, "ID:0x7ff Data:01")
	assert.Contains(t, out, "Frames UNIQUE to "+b)

	_, _, err = runApp(t, "compare", a)
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	var buf bytes.Buffer
	s, err := sink.New(sink.FormatMsgpack, &buf)
	require.NoError(t, err)
	s.Publish("6mt", 1.5, -1)
	path := writeCapture(t, "signals.msgpack", buf.String())

	out, _, err := runApp(t, "inspect", "--format", "msgpack", path)
	require.NoError(t, err)
	assert.Equal(t, "[0] 1.500000 6mt\n  Signed Int: -1\n", out)
}

func TestExitErrHandlerNil(t *testing.T) {
	exitErrHandler(nil, nil)
}
