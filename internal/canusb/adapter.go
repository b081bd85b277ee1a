// Package canusb talks to a LAWICEL CANUSB adapter (and compatible SLCAN
// devices) over its serial port and delivers received frames.
package canusb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"carhack/internal/frame"
)

// ErrWriteFailed is returned when a command is only partly written.
var ErrWriteFailed = errors.New("canusb: failed to write to serial port")

// Port is the minimal serial port surface the adapter needs. serial.Port
// satisfies it; tests use in-memory pipes.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Adapter drives one CANUSB device.
type Adapter struct {
	port    Port
	scan    *bufio.Scanner
	bitrate Bitrate
	now     func() time.Time
	log     *zap.Logger

	commandMu sync.Mutex
	closingMu sync.Mutex
	closing   bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBitrate selects the CAN bus speed. The default is 500 kbit/s.
func WithBitrate(b Bitrate) Option {
	return func(a *Adapter) { a.bitrate = b }
}

// WithClock replaces the clock used to timestamp received frames.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithLogger sets the adapter logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// New wraps an already open port.
func New(port Port, opts ...Option) *Adapter {
	a := &Adapter{
		port:    port,
		bitrate: DefaultBitrate,
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.scan = bufio.NewScanner(port)
	a.scan.Split(splitCR)
	return a
}

// Open opens the serial device at path and wraps it.
func Open(path string, portOpts PortOptions, opts ...Option) (*Adapter, error) {
	mode, err := portOpts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return New(port, opts...), nil
}

// Start resets the channel, selects the bitrate, disables adapter
// timestamps and opens the CAN channel. It must run before Monitor.
func (a *Adapter) Start() error {
	// closing an already closed channel is rejected; that is fine
	if err := a.SendCommand("C"); err != nil && !errors.Is(err, ErrCommandRejected) {
		return fmt.Errorf("reset channel: %w", err)
	}

	setBitrate, err := a.bitrate.Command()
	if err != nil {
		return err
	}
	for _, command := range []string{
		setBitrate,
		"Z0", // no adapter timestamps
		"O",  // open channel
	} {
		if err := a.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	a.log.Info("canusb channel open", zap.Int("bitrate", int(a.bitrate)))
	return nil
}

// SendCommand writes command and waits for the adapter's reply, discarding
// any frames received in between. It must not be called while Monitor is
// running.
func (a *Adapter) SendCommand(command string) error {
	_, err := a.command(command)
	return err
}

// Status queries the adapter status flags.
func (a *Adapter) Status() (Status, error) {
	reply, err := a.command("F")
	if err != nil {
		return 0, err
	}
	return ParseStatus(reply)
}

func (a *Adapter) command(command string) (string, error) {
	a.commandMu.Lock()
	defer a.commandMu.Unlock()

	if err := a.write(command); err != nil {
		return "", err
	}
	for {
		if !a.scan.Scan() {
			if err := a.scan.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		reply := a.scan.Text()
		if isFrameLine(reply) {
			// traffic received while the channel is open; not our reply
			a.log.Debug("discarding frame while awaiting reply", zap.String("command", command))
			continue
		}
		if reply == string(bell) {
			return "", fmt.Errorf("%w: %q", ErrCommandRejected, command)
		}
		return reply, nil
	}
}

func isFrameLine(line string) bool {
	return len(line) > 1 && (line[0] == 't' || line[0] == 'T')
}

func (a *Adapter) write(command string) error {
	line := command + string(cr)
	n, err := a.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads frames from the adapter and hands them to handle until the
// port is exhausted, Close is called, or ctx is cancelled.
func (a *Adapter) Monitor(ctx context.Context, handle func(frame.Frame)) error {
	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking Scan stays off the select loop so cancellation is prompt
	go func() {
		defer close(lineChan)
		for a.scan.Scan() {
			select {
			case lineChan <- a.scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := a.scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if a.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !a.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if a.isClosing() {
				return nil
			}
			a.handleLine(line, handle)
		}
	}
}

func (a *Adapter) handleLine(line string, handle func(frame.Frame)) {
	switch {
	case line == "", line == "z", line == "Z":
		// command acknowledgements
	case line == string(bell):
		a.log.Warn("adapter reported an error")
	default:
		ts := float64(a.now().UnixNano()) / 1e9
		f, err := ParseLine(line, ts)
		if err != nil {
			a.log.Debug("skipping adapter line", zap.String("line", line), zap.Error(err))
			return
		}
		handle(f)
	}
}

func (a *Adapter) isClosing() bool {
	a.closingMu.Lock()
	defer a.closingMu.Unlock()
	return a.closing
}

// Close closes the CAN channel and the serial port.
func (a *Adapter) Close() error {
	a.closingMu.Lock()
	if a.closing {
		a.closingMu.Unlock()
		return nil
	}
	a.closing = true
	a.closingMu.Unlock()

	a.commandMu.Lock()
	werr := a.write("C")
	a.commandMu.Unlock()

	if err := a.port.Close(); err != nil {
		return err
	}
	if werr != nil {
		a.log.Debug("close channel", zap.Error(werr))
	}
	return nil
}
