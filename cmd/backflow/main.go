// Command backflow transfers a file between two endpoints with explicit,
// bounded-memory backpressure. It selects one of two bridge strategies:
// the manual flow controller or the automatic pipeline, optionally with an
// interposed latency stage to simulate a slow consumer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/backflow/backflow/config"
	"github.com/backflow/backflow/flow"
	"github.com/backflow/backflow/genfile"
	"github.com/backflow/backflow/logger"
	"github.com/backflow/backflow/metrics"
)

func main() {
	var (
		cfgPath   = pflag.String("config", "", "path to a YAML config file")
		mode      = pflag.String("mode", "", "bridge strategy: manual or auto")
		input     = pflag.String("in", "", "input file path")
		output    = pflag.String("out", "", "output file path")
		chunkSize = pflag.Int("chunk-size", 0, "source read granularity in bytes")
		highWater = pflag.Int64("high-water", 0, "sink saturation threshold in bytes")
		lowWater  = pflag.Int64("low-water", 0, "sink drain threshold in bytes")
		latencyMS = pflag.Int("latency-ms", -1, "per-chunk delay of the latency stage")
		compress  = pflag.Bool("compress", false, "interpose an LZ4 compress/decompress pair")
		generate  = pflag.Int64("generate", 0, "generate an input file of this many bytes and exit")
		logLevel  = pflag.String("log-level", "", "minimum log level")
	)
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "backflow:", err)
		os.Exit(2)
	}
	applyFlags(cfg, *mode, *input, *output, *chunkSize, *highWater, *lowWater, *latencyMS, *compress, *logLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "backflow:", err)
		os.Exit(2)
	}

	log := logger.New(cfg.Log)

	if *generate > 0 {
		if cfg.Input == "" {
			log.Fatal().Msg("--generate requires --in")
		}
		if err := genfile.GenerateFile(cfg.Input, *generate, cfg.ChunkSize); err != nil {
			log.Fatal().Err(err).Msg("generating input file")
		}
		log.Info().Str("path", cfg.Input).Int64("bytes", *generate).Msg("input file generated")
		return
	}

	if cfg.Input == "" || cfg.Output == "" {
		log.Fatal().Msg("--in and --out are required")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("transfer failed")
	}
}

func applyFlags(cfg *config.Config, mode, input, output string, chunkSize int, highWater, lowWater int64, latencyMS int, compress bool, logLevel string) {
	if mode != "" {
		cfg.Mode = mode
	}
	if input != "" {
		cfg.Input = input
	}
	if output != "" {
		cfg.Output = output
	}
	if chunkSize > 0 {
		cfg.ChunkSize = chunkSize
	}
	if highWater > 0 {
		cfg.HighWater = highWater
	}
	if lowWater > 0 {
		cfg.LowWater = lowWater
	}
	if latencyMS >= 0 {
		cfg.LatencyMS = latencyMS
	}
	if compress {
		cfg.Compress = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	in, err := flow.OpenFileResource(cfg.Input, cfg.ChunkSize)
	if err != nil {
		return err
	}
	out, err := flow.CreateFileResource(cfg.Output)
	if err != nil {
		in.Close()
		return err
	}

	src := flow.NewSource(in)
	sink := flow.NewSink(out, cfg.SinkConfig())
	rec := metrics.NewLogRecorder(log)

	var stages []flow.StageFunc
	if cfg.Compress {
		stages = append(stages, flow.WithCompression(flow.CompressionFast))
	}
	if cfg.LatencyMS > 0 {
		stages = append(stages, flow.WithLatency(time.Duration(cfg.LatencyMS)*time.Millisecond))
	}
	if cfg.Compress {
		stages = append(stages, flow.WithDecompression())
	}

	switch cfg.Mode {
	case config.ModeManual:
		// Manual mode: the caller wires the chain by hand and owns any
		// cleanup beyond what the controller propagates on failure.
		head := flow.Chain(sink, stages...)
		ctl := flow.NewFlowController(src, head,
			flow.WithRecorder(rec), flow.WithLogger(log))
		return ctl.Transfer()
	default:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		p := flow.NewPipeline(src, sink, stages,
			flow.WithRecorder(rec), flow.WithLogger(log))
		return p.Run(ctx)
	}
}
