package canusb

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"carhack/internal/frame"
)

// LAWICEL ASCII protocol bytes.
const (
	cr   = '\r'
	bell = '\a' // command rejected
)

var (
	// ErrCommandRejected is returned when the adapter answers a command with BELL.
	ErrCommandRejected = errors.New("canusb: command rejected")
	// ErrNotFrame is returned by ParseLine for lines that are not received frames.
	ErrNotFrame = errors.New("canusb: not a frame")
)

// Bitrate is a CAN bus speed selectable with the Sn command.
type Bitrate int

var bitrateCodes = map[Bitrate]byte{
	10_000:    '0',
	20_000:    '1',
	50_000:    '2',
	100_000:   '3',
	125_000:   '4',
	250_000:   '5',
	500_000:   '6',
	800_000:   '7',
	1_000_000: '8',
}

// DefaultBitrate is the 370Z high-speed CAN bus.
const DefaultBitrate Bitrate = 500_000

// Command returns the Sn command selecting b.
func (b Bitrate) Command() (string, error) {
	code, ok := bitrateCodes[b]
	if !ok {
		return "", fmt.Errorf("unsupported bitrate %d", int(b))
	}
	return "S" + string(code), nil
}

// Status is the adapter status byte returned by the F command.
type Status byte

const (
	StatusReceiveFIFOFull  Status = 1
	StatusTransmitFIFOFull Status = 2
	StatusErrorWarning     Status = 4
	StatusDataOverrun      Status = 8
	StatusErrorPassive     Status = 32
	StatusArbitrationLost  Status = 64
	StatusBusError         Status = 128
)

var statusNames = []struct {
	bit  Status
	name string
}{
	{StatusReceiveFIFOFull, "receive_fifo_full"},
	{StatusTransmitFIFOFull, "transmit_fifo_full"},
	{StatusErrorWarning, "error_warning"},
	{StatusDataOverrun, "data_overrun"},
	{StatusErrorPassive, "error_passive"},
	{StatusArbitrationLost, "arbitration_lost"},
	{StatusBusError, "bus_error"},
}

// Flags lists the names of the set status bits.
func (s Status) Flags() []string {
	var out []string
	for _, n := range statusNames {
		if s&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// ParseStatus decodes an F command reply such as "F08".
func ParseStatus(line string) (Status, error) {
	if len(line) != 3 || line[0] != 'F' {
		return 0, fmt.Errorf("invalid status reply %q", line)
	}
	v, err := strconv.ParseUint(line[1:], 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid status reply %q: %w", line, err)
	}
	return Status(v), nil
}

// ParseLine decodes a received-frame line without its trailing CR:
//
//	tiiiL<data>[ssss]       standard 11-bit frame
//	TiiiiiiiiL<data>[ssss]  extended 29-bit frame
//
// The optional adapter timestamp is ignored; ts is used instead.
func ParseLine(line string, ts float64) (frame.Frame, error) {
	if line == "" {
		return frame.Frame{}, ErrNotFrame
	}

	var idLen int
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen = 8
	default:
		return frame.Frame{}, ErrNotFrame
	}

	if len(line) < 1+idLen+1 {
		return frame.Frame{}, fmt.Errorf("short frame line %q", line)
	}
	id, err := strconv.ParseUint(line[1:1+idLen], 16, 32)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("invalid id in %q: %w", line, err)
	}

	dlc := int(line[1+idLen] - '0')
	if dlc < 0 || dlc > frame.MaxDataLength {
		return frame.Frame{}, fmt.Errorf("invalid length in %q", line)
	}

	rest := line[2+idLen:]
	if len(rest) != dlc*2 && len(rest) != dlc*2+4 {
		return frame.Frame{}, fmt.Errorf("data length mismatch in %q", line)
	}
	data, err := hex.DecodeString(rest[:dlc*2])
	if err != nil {
		return frame.Frame{}, fmt.Errorf("invalid data in %q: %w", line, err)
	}

	f := frame.New(uint32(id), ts, data)
	f.Extended = idLen == 8
	return f, nil
}

// splitCR is a bufio.SplitFunc for CR- or BELL-terminated replies. A BELL
// is returned as its own token.
func splitCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\a"); i >= 0 {
		if data[i] == bell {
			if i == 0 {
				return 1, data[:1], nil
			}
			return i, bytes.TrimLeft(data[:i], "\n"), nil
		}
		return i + 1, bytes.TrimLeft(data[:i], "\n"), nil
	}
	if atEOF {
		return len(data), bytes.TrimLeft(data, "\n"), nil
	}
	return 0, nil, nil
}
