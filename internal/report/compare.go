package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Pattern is one distinct unmodeled (ID, payload) pair and how often each
// capture file contains it.
type Pattern struct {
	ID          uint32
	IDString    string
	DataHex     string
	Occurrences map[string]int // filename -> count
}

// Comparison sorts unmodeled patterns by which captures contain them.
type Comparison struct {
	Files       []string
	CommonToAll []*Pattern
	Unique      map[string][]*Pattern
	Partial     []*Pattern
	Total       int
}

// Compare finds the unmodeled frame patterns of several captures. Frames
// that decode or are malformed are ignored: the interesting question when
// adding a decoder is which unknown payloads change between recordings.
func Compare(fileFrames map[string][]FrameInfo) Comparison {
	patterns := make(map[string]*Pattern)

	for filename, frames := range fileFrames {
		for _, f := range frames {
			if f.Kind != KindUnmodeled {
				continue
			}
			dataHex := fmt.Sprintf("%X", f.Frame.Data)
			key := fmt.Sprintf("%08x:%s", f.Frame.ID, dataHex)
			p, ok := patterns[key]
			if !ok {
				p = &Pattern{
					ID:          f.Frame.ID,
					IDString:    f.Frame.IDString(),
					DataHex:     dataHex,
					Occurrences: make(map[string]int),
				}
				patterns[key] = p
			}
			p.Occurrences[filename]++
		}
	}

	c := Comparison{
		Unique: make(map[string][]*Pattern),
		Total:  len(patterns),
	}
	for fn := range fileFrames {
		c.Files = append(c.Files, fn)
	}
	sort.Strings(c.Files)

	for _, p := range patterns {
		switch {
		case len(p.Occurrences) == len(c.Files):
			c.CommonToAll = append(c.CommonToAll, p)
		case len(p.Occurrences) == 1:
			for fn := range p.Occurrences {
				c.Unique[fn] = append(c.Unique[fn], p)
			}
		default:
			c.Partial = append(c.Partial, p)
		}
	}

	sortPatterns(c.CommonToAll)
	sortPatterns(c.Partial)
	for _, ps := range c.Unique {
		sortPatterns(ps)
	}
	return c
}

func sortPatterns(ps []*Pattern) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].ID == ps[j].ID {
			return ps[i].DataHex < ps[j].DataHex
		}
		return ps[i].ID < ps[j].ID
	})
}

// UniqueCount is the number of patterns seen in exactly one file.
func (c Comparison) UniqueCount() int {
	total := 0
	for _, ps := range c.Unique {
		total += len(ps)
	}
	return total
}

// Print writes the comparison report.
func (c Comparison) Print(w io.Writer, fileFrames map[string][]FrameInfo) {
	fmt.Fprintln(w, "===================================================")
	fmt.Fprintln(w, "UNMODELED FRAMES COMPARISON")
	fmt.Fprintln(w, "===================================================")

	fmt.Fprintln(w, "Files analyzed:")
	for i, fn := range c.Files {
		unmodeled := 0
		for _, f := range fileFrames[fn] {
			if f.Kind == KindUnmodeled {
				unmodeled++
			}
		}
		fmt.Fprintf(w, "  [%d] %s (%d unmodeled / %d total frames)\n", i+1, fn, unmodeled, len(fileFrames[fn]))
	}

	if len(c.CommonToAll) > 0 {
		fmt.Fprintf(w, "\nFrames Common to ALL Files (%d patterns):\n", len(c.CommonToAll))
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, p := range c.CommonToAll {
			counts := make([]string, len(c.Files))
			for i, fn := range c.Files {
				counts[i] = fmt.Sprintf("%d", p.Occurrences[fn])
			}
			fmt.Fprintf(w, "  ID:0x%s Data:%s\n", p.IDString, p.DataHex)
			fmt.Fprintf(w, "    Occurrences: [%s]\n", strings.Join(counts, ", "))
		}
	}

	for _, fn := range c.Files {
		ps := c.Unique[fn]
		if len(ps) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nFrames UNIQUE to %s (%d patterns):\n", fn, len(ps))
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, p := range ps {
			fmt.Fprintf(w, "  ID:0x%s Data:%s (count: %d)\n", p.IDString, p.DataHex, p.Occurrences[fn])
		}
	}

	if len(c.Partial) > 0 {
		fmt.Fprintf(w, "\nFrames in SOME Files (%d patterns):\n", len(c.Partial))
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, p := range c.Partial {
			var presentIn []string
			for i, fn := range c.Files {
				if count, ok := p.Occurrences[fn]; ok {
					presentIn = append(presentIn, fmt.Sprintf("[%d]:%d", i+1, count))
				}
			}
			fmt.Fprintf(w, "  ID:0x%s Data:%s\n", p.IDString, p.DataHex)
			fmt.Fprintf(w, "    Present in: %s\n", strings.Join(presentIn, ", "))
		}
	}

	fmt.Fprintln(w, "\n===================================================")
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "   Total unique patterns: %d\n", c.Total)
	fmt.Fprintf(w, "   Common to all files: %d\n", len(c.CommonToAll))
	fmt.Fprintf(w, "   Unique to one file: %d\n", c.UniqueCount())
	fmt.Fprintf(w, "   In some files: %d\n", len(c.Partial))
	fmt.Fprintln(w, "===================================================")
}
