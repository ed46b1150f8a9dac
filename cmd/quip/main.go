package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/quip/internal/config"
	"github.com/crimson-sun/quip/internal/logging"
	"github.com/crimson-sun/quip/internal/output"
	"github.com/crimson-sun/quip/internal/output/file"
	"github.com/crimson-sun/quip/internal/output/multi"
	"github.com/crimson-sun/quip/internal/output/stdout"
	"github.com/crimson-sun/quip/internal/pipeline"
	"github.com/crimson-sun/quip/internal/server"
	"github.com/crimson-sun/quip/internal/store"
	"github.com/crimson-sun/quip/pkg/quip"
)

const usage = `usage: quip <command> [flags]

commands:
  predict [text...]   classify statements given as arguments or stdin lines
  batch -in file.csv  annotate a CSV with a predicted_sentiment column
  serve               run the HTTP API
  labels              list the label set
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quip: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	switch os.Args[1] {
	case "predict":
		err = runPredict(ctx, cfg, logger, args)
	case "batch":
		err = runBatch(cfg, logger, args)
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "labels":
		err = runLabels(os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "quip: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		stop()
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

// open loads the artifacts named by cfg and logs what was loaded.
func open(cfg config.Config, logger *zap.Logger) (*quip.Quip, error) {
	opts := []quip.Option{quip.WithArtifactPaths(cfg.Artifacts.VectorizerPath, cfg.Artifacts.ClassifierPath)}
	if cfg.Artifacts.ONNXLibrary != "" {
		opts = append(opts, quip.WithONNXLibrary(cfg.Artifacts.ONNXLibrary))
	}
	q, info, err := quip.NewWithInfo(opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded",
		zap.String("vectorizer", info.VectorizerPath),
		zap.String("classifier", info.ClassifierPath),
		zap.String("backend", info.Backend),
		zap.Int("dim", info.Dim),
		zap.Int("vocabulary", info.Vocabulary),
	)
	return q, nil
}

func runPredict(ctx context.Context, cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	formatName := fs.String("format", "text", `output format: "text" or "json"`)
	asJSON := fs.Bool("json", false, "shorthand for -format json")
	outPath := fs.String("out", "", "also append results to this file")
	outMaxBytes := fs.Int64("out-max-bytes", 0, "rotate the -out file at this size (0 disables rotation)")
	window := fs.Duration("window", 200*time.Millisecond, "stdin batching window")
	maxBatch := fs.Int("max-batch", 512, "most stdin lines classified per batch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format := output.ParseFormat(*formatName)
	if *asJSON {
		format = output.JSON
	}

	q, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer q.Close()

	var out output.Output = stdout.New(format, cfg.Output.Pretty)
	if *outPath != "" {
		f, err := file.New(*outPath, file.WithFormat(format), file.WithMaxSize(*outMaxBytes))
		if err != nil {
			return err
		}
		out = multi.New(out, f)
	}

	p := pipeline.New(q, out, pipeline.WithWindow(*window), pipeline.WithMaxBatch(*maxBatch))
	defer p.Close()

	if fs.NArg() > 0 {
		_, err := p.Run(ctx, fs.Args())
		return err
	}

	lines := make(chan string)
	go scanLines(ctx, os.Stdin, lines)
	n, err := p.Stream(ctx, lines)
	logger.Debug("stream finished", zap.Int("records", n))
	return err
}

// scanLines sends each line of r to lines and closes it at EOF.
func scanLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		select {
		case lines <- strings.TrimRight(sc.Text(), "\r"):
		case <-ctx.Done():
			return
		}
	}
}

func runBatch(cfg config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inPath := fs.String("in", "", "input CSV file (required)")
	outPath := fs.String("out", "", "output CSV file (default sentiment_predictions_<date>.csv)")
	column := fs.String("column", quip.TextColumn, "name of the statement column")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		fs.Usage()
		return errors.New("batch: -in is required")
	}
	if *outPath == "" {
		*outPath = server.DownloadFilename(time.Now())
	}

	q, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer q.Close()

	in, err := os.Open(*inPath)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	defer in.Close()

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	start := time.Now()
	t, err := q.PredictCSV(in, out, *column)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(*outPath)
		return fmt.Errorf("batch: %w", err)
	}

	logger.Info("batch written",
		zap.String("in", *inPath),
		zap.String("out", *outPath),
		zap.Int("rows", t.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func runServe(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	q, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer q.Close()

	st, err := store.New(ctx, store.Options{
		Backend:   cfg.Store.Backend,
		RedisAddr: cfg.Store.RedisAddr,
		RedisDB:   cfg.Store.RedisDB,
	})
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store ready", zap.String("backend", st.Name()))

	srv := server.New(q, st, logger, server.Options{
		Addr:           cfg.Server.Addr,
		MetricsAddr:    cfg.Server.MetricsAddr,
		MaxBatchRows:   cfg.Server.MaxBatchRows,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		DownloadTTL:    cfg.Store.TTL,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})
	err = srv.Run(ctx)
	logger.Info("server stopped")
	return err
}

func runLabels(w io.Writer) error {
	for _, l := range quip.Labels() {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", l.Index, l.Label); err != nil {
			return err
		}
	}
	return nil
}
