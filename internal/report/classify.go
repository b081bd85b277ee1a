// Package report prints capture-level views of frames and signals: frames
// grouped by ID, unmodeled frames compared across captures, and decoded
// signal streams.
package report

import (
	"carhack/internal/decoder"
	"carhack/internal/frame"
)

// Kind classifies a frame against a decoder registry.
type Kind int

const (
	KindDecoded   Kind = iota // registered and well-formed
	KindUnmodeled             // no decoder for the ID
	KindMalformed             // registered, wrong payload length
)

func (k Kind) String() string {
	switch k {
	case KindDecoded:
		return "DECODED"
	case KindUnmodeled:
		return "UNMODELED"
	default:
		return "MALFORMED"
	}
}

// Classify reports how the router would treat f.
func Classify(reg *decoder.Registry, f frame.Frame) Kind {
	r, ok := reg.Match(f)
	if !ok {
		return KindUnmodeled
	}
	if len(f.Data) != r.Length {
		return KindMalformed
	}
	return KindDecoded
}

// FrameInfo stores a frame with its classification for grouping.
type FrameInfo struct {
	Frame       frame.Frame
	Kind        Kind
	SequenceNum int // keeps file order when timestamps are identical
}
