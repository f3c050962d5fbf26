package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pavanmanishd/stackalloc"
	"github.com/pavanmanishd/stackalloc/internal/vector"
)

func main() {
	var (
		cfg        = stackalloc.DefaultConfig()
		configFile string
		count      int
		logLevel   string
	)

	app := kingpin.New("stackalloc", "Fill an int32 vector backed by an arena that overflows to the heap.")
	app.HelpFlag.Short('h')
	app.Flag("config.file", "YAML config file. Takes precedence over --arena.size and --heap.limit.").StringVar(&configFile)
	app.Flag("arena.size", "Arena capacity.").Default("1KiB").SetValue(&cfg.ArenaSize)
	app.Flag("heap.limit", "Maximum bytes held by the heap at once, 0 for unlimited.").Default("0").SetValue(&cfg.HeapLimit)
	app.Flag("count", "Number of elements to resize the vector to.").Default("20").IntVar(&count)
	app.Flag("log.level", "Only log messages with the given severity or above.").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := newLogger(logLevel)

	if configFile != "" {
		var err error
		if cfg, err = stackalloc.LoadConfig(configFile); err != nil {
			level.Error(logger).Log("msg", "failed to load config", "file", configFile, "err", err)
			os.Exit(1)
		}
	}

	if err := run(os.Stdout, cfg, count, logger); err != nil {
		level.Error(logger).Log("msg", "run failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

func run(w io.Writer, cfg stackalloc.Config, count int, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	alloc, err := stackalloc.NewFromConfig[int32](cfg,
		stackalloc.WithLogger(logger),
		stackalloc.WithMetrics(stackalloc.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "allocator ready", "arena_size", humanize.IBytes(uint64(cfg.ArenaSize)), "heap_limit", humanize.IBytes(uint64(cfg.HeapLimit)))

	v := vector.New[int32](alloc)
	defer v.Release()

	if err := v.Resize(count); err != nil {
		return err
	}
	for i := range v.Slice() {
		v.Set(i, int32(i))
	}

	storage := "heap"
	if alloc.Primary().Owns(v.Slice()) {
		storage = "arena"
	}
	arena := alloc.Primary()
	platform := alloc.Secondary().Platform()

	fmt.Fprintf(w, "elements: %d (storage: %s)\n", v.Len(), storage)
	fmt.Fprintf(w, "arena: %s of %s in use\n", humanize.IBytes(uint64(arena.SizeInUse())), humanize.IBytes(uint64(arena.Capacity())))
	fmt.Fprintf(w, "heap: %s in %d blocks\n", humanize.IBytes(uint64(platform.InUse())), platform.Live())
	return writeMetrics(w, reg)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue())
		}
	}
	return nil
}
