// Package capture reads recorded CAN traffic (candump logs and SavvyCAN CSV
// exports) and turns each line into a frame.
package capture

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"carhack/internal/frame"
)

// ErrNoSeparator is returned for a candump line without "ID#DATA".
var ErrNoSeparator = errors.New("no # separator found")

// Format identifies a capture file layout.
type Format int

const (
	FormatUnknown Format = iota
	FormatCandump
	FormatCSV
)

func (f Format) String() string {
	switch f {
	case FormatCandump:
		return "candump"
	case FormatCSV:
		return "csv"
	default:
		return "unknown"
	}
}

// DetectFormat guesses the format from the first non-empty line. The second
// result reports whether the line is a CSV header to skip.
func DetectFormat(line string) (Format, bool) {
	if strings.Contains(line, "Time Stamp") || strings.Contains(line, "ID,Extended") {
		return FormatCSV, true
	}
	if strings.Contains(line, "#") {
		return FormatCandump, false
	}
	if strings.Contains(line, ",") {
		return FormatCSV, false
	}
	return FormatUnknown, false
}

// ParseCSVLine parses a SavvyCAN CSV line:
// Time Stamp,ID,Extended,Dir,Bus,LEN,D1,D2,D3,D4,D5,D6,D7,D8
// Timestamps are microseconds and are converted to seconds.
func ParseCSVLine(line string) (frame.Frame, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 14 {
		return frame.Frame{}, fmt.Errorf("not enough fields: got %d, need 14", len(fields))
	}

	id, err := parseID(fields[1])
	if err != nil {
		return frame.Frame{}, err
	}

	var ts float64
	if raw := strings.TrimSpace(fields[0]); raw != "" {
		us, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return frame.Frame{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
		ts = us / 1_000_000
	}

	length, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return frame.Frame{}, fmt.Errorf("invalid length: %w", err)
	}
	if length < 0 || length > frame.MaxDataLength {
		return frame.Frame{}, fmt.Errorf("invalid length %d", length)
	}

	data := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		hexStr := strings.TrimSpace(fields[6+i])
		b, err := strconv.ParseUint(hexStr, 16, 8)
		if err != nil {
			return frame.Frame{}, fmt.Errorf("invalid data byte D%d %q: %w", i+1, hexStr, err)
		}
		data = append(data, byte(b))
	}

	f := frame.New(id, ts, data)
	f.Extended = strings.EqualFold(strings.TrimSpace(fields[2]), "true")
	return f, nil
}

// ParseCandumpLine parses candump log output:
// (timestamp) interface ID#PAYLOAD
func ParseCandumpLine(line string) (frame.Frame, error) {
	idxHash := strings.Index(line, "#")
	if idxHash == -1 {
		return frame.Frame{}, ErrNoSeparator
	}

	idPart := strings.TrimSpace(line[:idxHash])

	var ts float64
	start, end := strings.Index(idPart, "("), strings.LastIndex(idPart, ")")
	if start != -1 && end > start {
		v, err := strconv.ParseFloat(idPart[start+1:end], 64)
		if err != nil {
			return frame.Frame{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		ts = v
		idPart = strings.TrimSpace(idPart[end+1:])
	}

	// drop the interface name (can0, vcan0, ...)
	if idx := strings.LastIndex(idPart, " "); idx != -1 {
		idPart = idPart[idx+1:]
	}

	id, err := parseID(idPart)
	if err != nil {
		return frame.Frame{}, err
	}

	payloadHex := strings.ReplaceAll(strings.TrimSpace(line[idxHash+1:]), " ", "")
	payload, err := hex.DecodeString(payloadHex)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("invalid payload %q: %w", payloadHex, err)
	}
	if len(payload) > frame.MaxDataLength {
		return frame.Frame{}, fmt.Errorf("payload too long: %d bytes", len(payload))
	}

	f := frame.New(id, ts, payload)
	f.Extended = len(idPart) > 3
	return f, nil
}

func parseID(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	id, err := strconv.ParseUint(s, 16, 29)
	if err != nil {
		return 0, fmt.Errorf("invalid CAN ID %q: %w", s, err)
	}
	return uint32(id), nil
}
