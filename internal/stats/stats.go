// Package stats counts what happened to the frames of one run and prints
// the capture summary.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"carhack/internal/frame"
)

// Counter tallies router outcomes. Its hook methods plug into the router
// options; all methods are safe for concurrent use.
type Counter struct {
	mu sync.Mutex

	frames    int
	decoded   int
	signals   int
	unknown   map[string]int // keyed by frame.IDString
	dropped   map[string]int
	minTS     float64
	maxTS     float64
	haveRange bool
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{
		unknown: make(map[string]int),
		dropped: make(map[string]int),
	}
}

func (c *Counter) observe(f frame.Frame) {
	c.frames++
	if f.Timestamp == 0 {
		return
	}
	if !c.haveRange {
		c.minTS, c.maxTS, c.haveRange = f.Timestamp, f.Timestamp, true
		return
	}
	c.minTS = math.Min(c.minTS, f.Timestamp)
	c.maxTS = math.Max(c.maxTS, f.Timestamp)
}

// Decoded records a decoded frame and the number of signals it produced.
func (c *Counter) Decoded(f frame.Frame, signals int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observe(f)
	c.decoded++
	c.signals += signals
}

// Unknown records a frame with no registered decoder.
func (c *Counter) Unknown(f frame.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observe(f)
	c.unknown[f.IDString()]++
}

// Dropped records a frame rejected by its decoder.
func (c *Counter) Dropped(f frame.Frame, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observe(f)
	c.dropped[f.IDString()]++
}

// IDCount is a per-ID tally. ID is formatted like candump, so standard
// and extended IDs with the same value stay apart.
type IDCount struct {
	ID    string
	Count int
}

// Snapshot is a point-in-time copy of a Counter.
type Snapshot struct {
	Frames    int
	Decoded   int
	Signals   int
	Unknown   []IDCount // most frequent first
	Dropped   []IDCount // most frequent first
	FirstSeen float64
	LastSeen  float64
}

// UnknownFrames is the number of frames with no decoder.
func (s Snapshot) UnknownFrames() int { return total(s.Unknown) }

// DroppedFrames is the number of frames rejected for their length.
func (s Snapshot) DroppedFrames() int { return total(s.Dropped) }

// Duration is the capture span in seconds.
func (s Snapshot) Duration() float64 { return s.LastSeen - s.FirstSeen }

func total(counts []IDCount) int {
	n := 0
	for _, c := range counts {
		n += c.Count
	}
	return n
}

// Snapshot copies the current counts.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Frames:    c.frames,
		Decoded:   c.decoded,
		Signals:   c.signals,
		Unknown:   sortedCounts(c.unknown),
		Dropped:   sortedCounts(c.dropped),
		FirstSeen: c.minTS,
		LastSeen:  c.maxTS,
	}
}

func sortedCounts(m map[string]int) []IDCount {
	out := make([]IDCount, 0, len(m))
	for id, n := range m {
		out = append(out, IDCount{ID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].ID < out[j].ID
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// Summary prints the capture summary. top limits how many unmodeled IDs are
// listed; zero lists none.
func (s Snapshot) Summary(w io.Writer, top int) {
	fmt.Fprintln(w, "===================================================")
	fmt.Fprintln(w, "Capture Summary")
	if s.Duration() > 0 {
		fmt.Fprintf(w, "   Duration: %s (%.3f sec)\n", FormatDuration(s.Duration()*1000), s.Duration())
		fmt.Fprintf(w, "   From: %.6f to %.6f seconds\n", s.FirstSeen, s.LastSeen)
	}
	fmt.Fprintf(w, "   Decoded Frames: %d\n", s.Decoded)
	fmt.Fprintf(w, "   Signals Published: %d\n", s.Signals)
	fmt.Fprintf(w, "   Unmodeled Frames: %d (%d IDs)\n", s.UnknownFrames(), len(s.Unknown))
	fmt.Fprintf(w, "   Length Mismatches: %d\n", s.DroppedFrames())
	for _, d := range s.Dropped {
		fmt.Fprintf(w, "      0x%s: %d\n", d.ID, d.Count)
	}
	fmt.Fprintf(w, "   Total Frames Processed: %d\n", s.Frames)
	if top > 0 && len(s.Unknown) > 0 {
		fmt.Fprintln(w, "   Busiest unmodeled IDs:")
		for i, u := range s.Unknown {
			if i == top {
				break
			}
			fmt.Fprintf(w, "      0x%s: %d\n", u.ID, u.Count)
		}
	}
	fmt.Fprintln(w, "===================================================")
}

// FormatDuration formats milliseconds as a human-readable string.
func FormatDuration(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.2f ms", ms)
	}

	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%.2f sec", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		secs := int(seconds) % 60
		return fmt.Sprintf("%d min %d sec", int(minutes), secs)
	}

	hours := minutes / 60
	mins := int(minutes) % 60
	return fmt.Sprintf("%d hour %d min", int(hours), mins)
}
