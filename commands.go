package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"carhack/internal/canusb"
	"carhack/internal/capture"
	"carhack/internal/config"
	"carhack/internal/decoder"
	"carhack/internal/frame"
	"carhack/internal/logging"
	"carhack/internal/pubsub"
	"carhack/internal/report"
	"carhack/internal/sink"
	"carhack/internal/stats"
	"carhack/internal/vehicle"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
	exitDevice  = 3
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (.toml, .yaml)"},
		&cli.StringFlag{Name: "vehicle", Usage: fmt.Sprintf("vehicle model (%s)", strings.Join(vehicle.Names(), ", "))},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: "log-format", Usage: "console or json"},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: fmt.Sprintf("signal output format (%s)", strings.Join(sink.Formats(), ", "))},
		&cli.StringSliceFlag{Name: "signal", Aliases: []string{"s"}, Usage: "only output the named signal (repeatable)"},
		&cli.BoolFlag{Name: "summary", Value: true, Usage: "print a capture summary to stderr when done"},
	}
}

type env struct {
	cfg config.Config
	log *zap.Logger
	reg *decoder.Registry
}

// setup loads the config file, applies flag overrides and builds the logger
// and decoder registry.
func setup(c *cli.Context) (*env, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitUsage)
		}
		cfg = loaded
	}

	if c.IsSet("vehicle") {
		cfg.Vehicle = c.String("vehicle")
	}
	if c.IsSet("format") {
		cfg.Format = c.String("format")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("port") {
		cfg.CANUSB.Port = c.String("port")
	}
	if c.IsSet("bitrate") {
		cfg.CANUSB.Bitrate = c.Int("bitrate")
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	reg, err := vehicle.Registry(cfg.Vehicle)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return &env{cfg: cfg, log: log, reg: reg}, nil
}

// pipeline is router -> signal bus -> sink, with a counter on the router
// hooks.
type pipeline struct {
	signals *pubsub.Bus
	sink    *sink.Sink
	counter *stats.Counter
	router  *decoder.Router
}

func newPipeline(e *env, w io.Writer, only []string) (*pipeline, error) {
	s, err := sink.New(e.cfg.Format, w)
	if err != nil {
		return nil, err
	}

	signals := pubsub.New()
	forward := func(topic string, ts float64, value any) { s.Publish(topic, ts, value) }
	if len(only) == 0 {
		signals.Subscribe(pubsub.Wildcard, forward)
	}
	for _, name := range only {
		signals.Subscribe(name, forward)
	}

	counter := stats.NewCounter()
	router := decoder.NewRouter(e.reg, signals,
		decoder.WithDropHook(counter.Dropped),
		decoder.WithUnknownHook(counter.Unknown),
		decoder.WithDecodedHook(counter.Decoded),
		decoder.WithLogger(e.log.Named("router")),
	)
	return &pipeline{signals: signals, sink: s, counter: counter, router: router}, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// readCapture routes every frame of one capture file.
func readCapture(ctx context.Context, e *env, path string, handle func(frame.Frame)) error {
	in, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	r := capture.NewReader(in, capture.FormatUnknown, e.log.Named("capture"))
	if err := r.Run(ctx, handle); err != nil {
		return err
	}
	e.log.Sugar().Debugf("read %s: %d lines, %d malformed, format %s", path, r.Lines(), r.Malformed(), r.Format())
	return nil
}

func decodeCommand() *cli.Command {
	flags := append(commonFlags(), outputFlags()...)
	flags = append(flags,
		&cli.BoolFlag{Name: "group-by-id", Usage: "print frames grouped by CAN ID, sorted by timestamp, to stderr"},
		&cli.BoolFlag{Name: "hide-decoded", Usage: "with --group-by-id, hide frames that decoded"},
		&cli.BoolFlag{Name: "hide-unmodeled", Usage: "with --group-by-id, hide frames with no decoder"},
	)
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode candump or SavvyCAN CSV captures (stdin when no file is given)",
		ArgsUsage: "[capture files...]",
		Flags:     flags,
		Action:    decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	p, err := newPipeline(e, c.App.Writer, c.StringSlice("signal"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	files := c.Args().Slice()
	if len(files) == 0 {
		files = []string{"-"}
	}

	group := c.Bool("group-by-id")
	var grouped []report.FrameInfo
	seq := 0

	for _, path := range files {
		err := readCapture(c.Context, e, path, func(f frame.Frame) {
			seq++
			if group {
				grouped = append(grouped, report.FrameInfo{Frame: f, Kind: report.Classify(e.reg, f), SequenceNum: seq})
			}
			p.router.Route(f)
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("read %s: %v", path, err), exitFailure)
		}
	}

	if err := p.sink.Err(); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	e.log.Sugar().Infof("wrote %d %s signal records", p.sink.Count(), e.cfg.Format)

	if group {
		var hide []report.Kind
		if c.Bool("hide-decoded") {
			hide = append(hide, report.KindDecoded)
		}
		if c.Bool("hide-unmodeled") {
			hide = append(hide, report.KindUnmodeled)
		}
		report.PrintGrouped(c.App.ErrWriter, grouped, hide...)
	}
	if c.Bool("summary") {
		p.counter.Snapshot().Summary(c.App.ErrWriter, 10)
	}
	return nil
}

func listenCommand() *cli.Command {
	flags := append(commonFlags(), outputFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "CANUSB serial device"},
		&cli.IntFlag{Name: "bitrate", Usage: "CAN bitrate in bit/s"},
	)
	return &cli.Command{
		Name:   "listen",
		Usage:  "Decode live traffic from a CANUSB adapter until interrupted",
		Flags:  flags,
		Action: listenAction,
	}
}

func listenAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	log := e.log.Sugar()

	p, err := newPipeline(e, c.App.Writer, c.StringSlice("signal"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	adapter, err := canusb.Open(e.cfg.CANUSB.Port, e.cfg.CANUSB.Serial,
		canusb.WithBitrate(canusb.Bitrate(e.cfg.CANUSB.Bitrate)),
		canusb.WithLogger(e.log.Named("canusb")))
	if err != nil {
		return cli.Exit(err.Error(), exitDevice)
	}
	defer adapter.Close()

	if err := adapter.Start(); err != nil {
		return cli.Exit(fmt.Sprintf("start adapter: %v", err), exitDevice)
	}
	if status, err := adapter.Status(); err != nil {
		log.Warnf("adapter status: %v", err)
	} else if flags := status.Flags(); len(flags) > 0 {
		log.Warnf("adapter status flags: %v", flags)
	}

	// raw frames travel on the bus as "<source>.<bus>.<id>"
	frames := pubsub.New()
	detach := p.router.Attach(frames, e.cfg.Topics.Source, e.cfg.Topics.Bus)
	defer detach()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("listening on %s", e.cfg.CANUSB.Port)
	err = adapter.Monitor(ctx, func(f frame.Frame) {
		if _, ok := e.reg.Match(f); !ok {
			p.counter.Unknown(f)
			return
		}
		frames.Publish(decoder.Topic(e.cfg.Topics.Source, e.cfg.Topics.Bus, f.ID), f.Timestamp, f)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit(fmt.Sprintf("monitor %s: %v", e.cfg.CANUSB.Port, err), exitDevice)
	}
	log.Infof("monitor stopped")

	if err := p.sink.Err(); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	e.log.Sugar().Infof("wrote %d %s signal records", p.sink.Count(), e.cfg.Format)
	if c.Bool("summary") {
		p.counter.Snapshot().Summary(c.App.ErrWriter, 10)
	}
	return nil
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Compare unmodeled frame patterns across captures",
		ArgsUsage: "<capture> <capture> [captures...]",
		Flags:     commonFlags(),
		Action:    compareAction,
	}
}

func compareAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("compare needs at least two capture files", exitUsage)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	fileFrames := make(map[string][]report.FrameInfo, c.NArg())
	for _, path := range c.Args().Slice() {
		var frames []report.FrameInfo
		err := readCapture(c.Context, e, path, func(f frame.Frame) {
			frames = append(frames, report.FrameInfo{Frame: f, Kind: report.Classify(e.reg, f), SequenceNum: len(frames) + 1})
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("read %s: %v", path, err), exitFailure)
		}
		fileFrames[path] = frames
	}

	report.Compare(fileFrames).Print(c.App.Writer, fileFrames)
	return nil
}

func idsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ids",
		Usage: "List the arbitration IDs the vehicle decoder handles",
		Flags: append(commonFlags(),
			&cli.BoolFlag{Name: "topics", Usage: "print subscribe topics instead"},
		),
		Action: idsAction,
	}
}

func idsAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	w := c.App.Writer

	if c.Bool("topics") {
		for _, t := range e.reg.Topics(e.cfg.Topics.Source, e.cfg.Topics.Bus) {
			fmt.Fprintln(w, t)
		}
		return nil
	}

	fmt.Fprintf(w, "%s: %d decoders\n", e.cfg.Vehicle, e.reg.Len())
	for _, r := range e.reg.Registrations() {
		fmt.Fprintf(w, "  0x%03x  len %d  %s\n", r.ID, r.Length, strings.Join(r.Signals, ", "))
	}
	return nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print a json, cbor or msgpack signal stream with value types",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: sink.FormatCBOR, Usage: "stream format (json, cbor, msgpack)"},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	path := "-"
	if c.NArg() > 0 {
		path = c.Args().First()
	}
	in, err := openInput(path)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	defer in.Close()

	n := 0
	err = sink.ReadRecords(c.String("format"), in, func(rec sink.Record) error {
		report.PrintRecord(c.App.Writer, n, rec)
		n++
		return nil
	})
	if errors.Is(err, sink.ErrUnknownFormat) {
		return cli.Exit(err.Error(), exitUsage)
	}
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	return nil
}
