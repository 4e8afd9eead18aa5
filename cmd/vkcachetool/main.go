// Command vkcachetool inspects, warms, and records resource cache traces.
//
//	vkcachetool inspect trace.bin            list the entries of a trace
//	vkcachetool warm trace1.bin trace2.bin   replay traces into fresh caches
//	vkcachetool record -out trace.bin        record a demo workload
//
// Traces replay against the in-memory null driver, so no GPU is needed;
// warming reports what a renderer would rebuild at startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/DrGr4f1x/vkcache"
	"github.com/DrGr4f1x/vkcache/driver/null"
	"github.com/DrGr4f1x/vkcache/record"
	"github.com/DrGr4f1x/vkcache/tracefile"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "vkcachetool",
	})

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", "err", err)
	}
	if *verbose || cfg.Verbose {
		logger.SetLevel(charmlog.DebugLevel)
		vkcache.SetLogger(slogFrom(logger))
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch args[0] {
	case "inspect":
		err = runInspect(ctx, logger, args[1:])
	case "warm":
		err = runWarm(ctx, logger, cfg, args[1:])
	case "record":
		err = runRecord(ctx, logger, cfg, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", "err", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vkcachetool [-config file] [-v] <inspect|warm|record> [args]")
}

// runInspect lists every entry of each trace.
func runInspect(ctx context.Context, logger *charmlog.Logger, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("inspect: no trace files given")
	}
	for _, path := range paths {
		data, err := tracefile.Load(ctx, path)
		if err != nil {
			return err
		}
		entries, err := record.Scan(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Printf("%s: %d entries, %d bytes\n", path, len(entries), len(data))
		counts := make(map[record.Tag]int)
		for i, e := range entries {
			fmt.Printf("  %4d  %-18s #%d  %d bytes\n", i, e.Tag.String(), e.Index, e.Size)
			counts[e.Tag]++
		}
		for tag, n := range counts {
			logger.Debug("kind total", "kind", tag.String(), "entries", n)
		}
	}
	return nil
}

// runWarm replays each trace into its own null-driver cache, in parallel,
// and reports per-kind counts and timing.
func runWarm(ctx context.Context, logger *charmlog.Logger, cfg config, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("warm: no trace files given")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		g.Go(func() error {
			data, err := tracefile.Load(ctx, path)
			if err != nil {
				return err
			}

			cache := vkcache.New(null.New(), vkcache.WithPoolSize(cfg.PoolSize))
			start := time.Now()
			if err := cache.Warmup(data); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			state := cache.State()
			logger.Info("trace warmed",
				"trace", path,
				"elapsed", time.Since(start),
				"shaderModules", state.ShaderModules.Count,
				"pipelineLayouts", state.PipelineLayouts.Count,
				"renderPasses", state.RenderPasses.Count,
				"graphicsPipelines", state.GraphicsPipelines.Count,
				"computePipelines", state.ComputePipelines.Count)
			return nil
		})
	}
	return g.Wait()
}

// runRecord builds the demo workload against a null device and saves the
// recorded trace.
func runRecord(ctx context.Context, logger *charmlog.Logger, cfg config, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	out := fs.String("out", "trace.bin", "output trace file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cache := vkcache.New(null.New(), vkcache.WithPoolSize(cfg.PoolSize))
	if err := buildDemoWorkload(cache); err != nil {
		return err
	}

	data := cache.Serialize()
	if err := tracefile.Save(ctx, *out, data); err != nil {
		return err
	}
	logger.Info("trace recorded", "path", *out, "bytes", len(data))
	return nil
}
