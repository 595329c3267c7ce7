package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/stcurve/internal/config"
	"github.com/okian/stcurve/internal/domain/curvature"
	"github.com/okian/stcurve/internal/trajfile"
	"github.com/okian/stcurve/pkg/logger"
)

var errUsage = errors.New("usage: stcurve [-tolerance t] <trip-file>")

func main() {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// run compresses the trip file named in args and writes the kept points
// followed by the compression rate to out.
func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stcurve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	tolerance := fs.Float64("tolerance", 0, "curvature threshold (defaults to the configured tolerance)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "tolerance" {
			explicit = true
		}
	})
	if explicit && *tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be >= 0, got %v", errUsage, *tolerance)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LogFormat == config.LogFormatJSON {
		if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithJSON()); err != nil {
			return fmt.Errorf("init json logging: %w", err)
		}
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	tol := cfg.Tolerance
	if explicit {
		tol = *tolerance
	}

	points, err := trajfile.ReadFile(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	start := time.Now()
	kept := curvature.New(points, tol).Compress()
	logger.Get().Debug(ctx, "compressed trip",
		logger.String("file", fs.Arg(0)),
		logger.Int("original", len(points)),
		logger.Int("compressed", len(kept)),
		logger.Float64("tolerance", tol),
		logger.String("elapsed", time.Since(start).String()),
	)

	if err := trajfile.Write(out, kept); err != nil {
		return err
	}
	return trajfile.WriteRate(out, len(points), len(kept))
}
