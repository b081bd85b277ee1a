// Package sink streams published signals to a writer in one of several
// encodings, so downstream tooling can consume the decoded event stream.
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Output formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatCBOR    = "cbor"
	FormatMsgpack = "msgpack"
)

// Record is the encoded form of one signal.
type Record struct {
	Timestamp float64 `json:"ts" cbor:"ts" msgpack:"ts"`
	Name      string  `json:"name" cbor:"name" msgpack:"name"`
	Value     any     `json:"value" cbor:"value" msgpack:"value"`
}

type encoder interface {
	Encode(v any) error
}

type textEncoder struct{ w io.Writer }

func (e textEncoder) Encode(v any) error {
	r := v.(Record)
	var err error
	switch val := r.Value.(type) {
	case float64:
		_, err = fmt.Fprintf(e.w, "%.6f %s=%g\n", r.Timestamp, r.Name, val)
	default:
		_, err = fmt.Fprintf(e.w, "%.6f %s=%v\n", r.Timestamp, r.Name, val)
	}
	return err
}

// Sink writes one record per published signal. It implements the router's
// Publisher interface; the first write error is kept and later publishes
// are discarded.
type Sink struct {
	mu    sync.Mutex
	enc   encoder
	count int
	err   error
}

// Formats lists the supported output formats.
func Formats() []string {
	f := []string{FormatText, FormatJSON, FormatCBOR, FormatMsgpack}
	sort.Strings(f)
	return f
}

// New returns a sink writing format to w.
func New(format string, w io.Writer) (*Sink, error) {
	var enc encoder
	switch format {
	case FormatText, "":
		enc = textEncoder{w: w}
	case FormatJSON:
		enc = json.NewEncoder(w)
	case FormatCBOR:
		enc = cbor.NewEncoder(w)
	case FormatMsgpack:
		enc = msgpack.NewEncoder(w)
	default:
		return nil, fmt.Errorf("%w %q (supported: %v)", ErrUnknownFormat, format, Formats())
	}
	return &Sink{enc: enc}, nil
}

// Publish encodes one signal.
func (s *Sink) Publish(topic string, ts float64, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.enc.Encode(Record{Timestamp: ts, Name: topic, Value: value}); err != nil {
		s.err = fmt.Errorf("write %s: %w", topic, err)
		return
	}
	s.count++
}

// Count returns the number of records written.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Err returns the first write error.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
