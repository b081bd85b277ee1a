package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"carhack/internal/frame"
)

var errHeaderLine = errors.New("header line")

// Reader scans a capture stream line by line.
type Reader struct {
	r      io.Reader
	format Format
	log    *zap.Logger

	lines     int
	malformed int
}

// NewReader returns a reader over r. With FormatUnknown the format is
// detected from the first non-empty line.
func NewReader(r io.Reader, format Format, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{r: r, format: format, log: log}
}

// Format returns the detected or configured format.
func (c *Reader) Format() Format { return c.format }

// Lines returns the number of non-empty lines read.
func (c *Reader) Lines() int { return c.lines }

// Malformed returns the number of lines that did not parse.
func (c *Reader) Malformed() int { return c.malformed }

// Run hands every parsed frame to handle, in file order, until the stream
// ends or ctx is cancelled. Malformed lines are counted and skipped; frames
// with an empty payload are handed on like any other.
func (c *Reader) Run(ctx context.Context, handle func(frame.Frame)) error {
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.lines++

		if c.format == FormatUnknown {
			format, header := DetectFormat(line)
			c.format = format
			c.log.Debug("detected capture format", zap.Stringer("format", format))
			if header {
				continue
			}
		}

		f, err := c.parse(line)
		if err != nil {
			c.malformed++
			c.log.Debug("skipping line", zap.Int("line", c.lines), zap.Error(err))
			continue
		}
		// zero-length payloads are still frames; the router reports them
		// against the registered length
		handle(f)
	}
	return scanner.Err()
}

func (c *Reader) parse(line string) (frame.Frame, error) {
	if c.format == FormatCSV || (strings.Contains(line, ",") && !strings.Contains(line, "#")) {
		if strings.Contains(line, "Time Stamp") {
			return frame.Frame{}, errHeaderLine
		}
		return ParseCSVLine(line)
	}
	return ParseCandumpLine(line)
}
