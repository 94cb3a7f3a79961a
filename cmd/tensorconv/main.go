// Command tensorconv converts a raw media stream read from a file or stdin
// into tensor frames.
//
// Usage:
//
//	tensorconv -caps "audio/x-raw;format=S16LE;channels=1;rate=16000" -chunk 3200 < in.pcm > out.bin
//	tensorconv -caps "video/x-raw;format=RGB;width=640;height=480;framerate=30/1" -chunk 921600 -in video.rgb
//	tensorconv -caps "application/x-sensor" -config props.yaml -metrics :9102
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/config"
	"github.com/machinefabric/tensorconv-go/converter"
	"github.com/machinefabric/tensorconv-go/plugin"
	"github.com/machinefabric/tensorconv-go/script"
)

const version = "v0.4.0"

type options struct {
	caps        string
	config      string
	input       string
	output      string
	chunk       int
	flexible    bool
	python      string
	metricsAddr string
}

func main() {
	var opts options
	flag.StringVar(&opts.caps, "caps", "", "Input caps, e.g. video/x-raw;format=RGB;width=640;height=480 (required)")
	flag.StringVar(&opts.config, "config", "", "Property file (.json, .yaml or .yml)")
	flag.StringVar(&opts.input, "in", "", "Input file (default stdin)")
	flag.StringVar(&opts.output, "out", "", "Output file (default stdout)")
	flag.IntVar(&opts.chunk, "chunk", 4096, "Bytes per input buffer; use the frame size for video")
	flag.BoolVar(&opts.flexible, "flexible", false, "Ask for flexible tensors with per-tensor headers")
	flag.StringVar(&opts.python, "python", "", "Interpreter for .py converter scripts")
	flag.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tensorconv %s\n", version)
		os.Exit(0)
	}
	if opts.caps == "" {
		fmt.Fprintf(os.Stderr, "Error: -caps is required\n\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	// stdout may carry tensor data
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMain(ctx, opts, logger); err != nil {
		logger.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}

func runMain(ctx context.Context, opts options, logger *slog.Logger) error {
	in := io.Reader(os.Stdin)
	if opts.input != "" {
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	out := io.Writer(os.Stdout)
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if opts.metricsAddr == "" {
		_, err := run(ctx, opts, logger, in, out, nil)
		return err
	}

	registry := prometheus.NewRegistry()
	server := &http.Server{
		Addr:              opts.metricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		_, err := run(gctx, opts, logger, in, out, registry)
		return err
	})
	logger.Info("serving metrics", "addr", opts.metricsAddr)
	return g.Wait()
}

// stats summarizes a run.
type stats struct {
	buffersIn  int
	buffersOut int
	bytesOut   int
}

// run feeds in to a converter in chunks and writes every tensor buffer to
// out. A nil reg disables metrics.
func run(ctx context.Context, opts options, logger *slog.Logger, in io.Reader, out io.Writer, reg prometheus.Registerer) (stats, error) {
	var st stats
	if opts.chunk <= 0 {
		return st, fmt.Errorf("chunk must be positive, got %d", opts.chunk)
	}
	inCaps, err := caps.Parse(opts.caps)
	if err != nil {
		return st, fmt.Errorf("invalid caps: %w", err)
	}

	var props *config.File
	if opts.config != "" {
		props, err = config.Load(opts.config)
		if err != nil {
			return st, err
		}
	}

	interpreter := opts.python
	if interpreter == "" && props != nil {
		interpreter = props.PythonInterpreter
	}
	scriptOpts := []script.Option{script.WithLogger(logger), script.WithContext(ctx)}
	if interpreter != "" {
		scriptOpts = append(scriptOpts, script.WithInterpreter(interpreter))
	}
	plugins := plugin.NewRegistry()
	if err := script.Register(plugins, scriptOpts...); err != nil {
		return st, err
	}

	convOpts := []converter.Option{
		converter.WithLogger(logger),
		converter.WithRegistry(plugins),
		converter.WithClock(converter.SystemClock(time.Now())),
	}
	if reg != nil {
		m, err := converter.NewMetrics(reg)
		if err != nil {
			return st, err
		}
		convOpts = append(convOpts, converter.WithMetrics(m))
	}

	peer := &writerPeer{w: out, logger: logger, flexible: opts.flexible, stats: &st}
	conv := converter.New(peer, convOpts...)
	defer func() {
		if err := conv.Close(); err != nil {
			logger.Warn("failed to close converter", "error", err)
		}
	}()
	if props != nil {
		if err := props.ApplyTo(conv); err != nil {
			return st, err
		}
	}

	conv.Start()
	if err := conv.SetCaps(inCaps); err != nil {
		return st, err
	}

	chunk := make([]byte, opts.chunk)
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		n, err := io.ReadFull(in, chunk)
		if n > 0 {
			st.buffersIn++
			if cerr := conv.Chain(buffer.New(append([]byte(nil), chunk[:n]...))); cerr != nil {
				return st, cerr
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return st, err
		}
	}
	conv.Stop()
	logger.Info("conversion finished",
		"buffers_in", st.buffersIn, "buffers_out", st.buffersOut, "bytes_out", st.bytesOut)
	return st, nil
}

// writerPeer writes every tensor buffer to w as it arrives.
type writerPeer struct {
	w        io.Writer
	logger   *slog.Logger
	flexible bool
	stats    *stats
}

func (p *writerPeer) QueryCaps() caps.Set {
	if p.flexible {
		return caps.Set{caps.FlexibleTemplate()}
	}
	return nil
}

func (p *writerPeer) SetCaps(c *caps.Caps) error {
	p.logger.Info("output caps", "caps", c.String())
	return nil
}

func (p *writerPeer) Push(buf *buffer.Buffer) error {
	for _, mem := range buf.Memories() {
		if _, err := p.w.Write(mem.Bytes()); err != nil {
			return err
		}
	}
	p.stats.buffersOut++
	p.stats.bytesOut += buf.Size()
	return nil
}

func (p *writerPeer) PushSegment(seg converter.Segment) error {
	p.logger.Debug("segment", "format", seg.Format, "start", seg.Start)
	return nil
}
