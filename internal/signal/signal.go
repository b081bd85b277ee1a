// Package signal holds the decoded signal value type and the stateless
// byte-level conversions frame decoders are built from.
package signal

import "fmt"

// Signal is one named, timestamped value decoded from a frame.
// Value is an int (raw counts, 0/1 flags, enum codes) or a float64 (scaled
// quantities).
type Signal struct {
	Name      string
	Timestamp float64
	Value     any
}

// New returns a signal.
func New(name string, ts float64, value any) Signal {
	return Signal{Name: name, Timestamp: ts, Value: value}
}

func (s Signal) String() string {
	switch v := s.Value.(type) {
	case float64:
		return fmt.Sprintf("%.6f %s=%g", s.Timestamp, s.Name, v)
	default:
		return fmt.Sprintf("%.6f %s=%v", s.Timestamp, s.Name, v)
	}
}
