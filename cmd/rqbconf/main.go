package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rqbconf/internal/app"
	"github.com/hyperifyio/rqbconf/internal/loader"
)

// Exit codes.
const (
	exitOK         = 0
	exitParseError = 1
	exitUsage      = 2
)

func main() {
	var (
		configPath  string
		envFiles    string
		node        string
		maxSize     int64
		outputPath  string
		format      string
		fallback    bool
		cacheDir    string
		cacheStrict bool
		cacheClear  bool
		cacheMaxAge time.Duration
		watch       bool
		verbose     bool
		logJSON     bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", os.Getenv("RQB_CONFIG"), "Path to a YAML or JSON config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load before reading the environment")
	flag.StringVar(&node, "node", app.NodeDefault, "Tag name of the subtree to extract (prefix match)")
	flag.Int64Var(&maxSize, "max.size", loader.DefaultMaxSize, "Reject documents of this many bytes or more")
	flag.StringVar(&outputPath, "output", app.OutputDefault, "Where to write the extracted records; - for stdout")
	flag.StringVar(&format, "format", app.FormatDefault, "Output format: yaml, json or env")
	flag.BoolVar(&fallback, "fallback", false, "Emit default parameters for inputs that fail to parse")
	flag.StringVar(&cacheDir, "cache.dir", "", "Cache directory for parsed records; empty disables caching")
	flag.BoolVar(&cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear cache directory before run")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.BoolVar(&watch, "watch", false, "Keep running and re-parse inputs when they change")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&logJSON, "log.json", false, "Log JSON lines instead of console output")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <config.xml>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(app.VersionString())
		return
	}

	setupLogging(verbose, logJSON)

	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		log.Error().Err(err).Msg("load env files")
		os.Exit(exitUsage)
	}

	// Flags explicitly set on the command line win over env and file.
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	cfg := app.Config{
		Inputs:           flag.Args(),
		Node:             node,
		MaxSize:          maxSize,
		OutputPath:       outputPath,
		Format:           format,
		Fallback:         fallback,
		CacheDir:         cacheDir,
		CacheStrictPerms: cacheStrict,
		CacheClear:       cacheClear,
		CacheMaxAge:      cacheMaxAge,
		Watch:            watch,
		Verbose:          verbose,
	}
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("load config file")
			os.Exit(exitUsage)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	reapplyFlags(&cfg, explicit, flagValues{
		node: node, maxSize: maxSize, output: outputPath, format: format,
		fallback: fallback, cacheDir: cacheDir, cacheStrict: cacheStrict,
		cacheClear: cacheClear, cacheMaxAge: cacheMaxAge, watch: watch, verbose: verbose,
	})
	if len(flag.Args()) > 0 {
		cfg.Inputs = flag.Args()
	}
	if cfg.Verbose && !verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(exitCode(run(ctx, cfg)))
}

func setupLogging(verbose, jsonOut bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if !jsonOut {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

type flagValues struct {
	node        string
	maxSize     int64
	output      string
	format      string
	fallback    bool
	cacheDir    string
	cacheStrict bool
	cacheClear  bool
	cacheMaxAge time.Duration
	watch       bool
	verbose     bool
}

// reapplyFlags restores values given on the command line after env
// overrides have been applied.
func reapplyFlags(cfg *app.Config, explicit map[string]bool, v flagValues) {
	if explicit["node"] {
		cfg.Node = v.node
	}
	if explicit["max.size"] {
		cfg.MaxSize = v.maxSize
	}
	if explicit["output"] {
		cfg.OutputPath = v.output
	}
	if explicit["format"] {
		cfg.Format = v.format
	}
	if explicit["fallback"] {
		cfg.Fallback = v.fallback
	}
	if explicit["cache.dir"] {
		cfg.CacheDir = v.cacheDir
	}
	if explicit["cache.strictPerms"] {
		cfg.CacheStrictPerms = v.cacheStrict
	}
	if explicit["cache.clear"] {
		cfg.CacheClear = v.cacheClear
	}
	if explicit["cache.maxAge"] {
		cfg.CacheMaxAge = v.cacheMaxAge
	}
	if explicit["watch"] {
		cfg.Watch = v.watch
	}
	if explicit["v"] {
		cfg.Verbose = v.verbose
	}
}

// errUsage marks configuration problems detected before any parsing.
var errUsage = errors.New("usage")

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: init app: %w", errUsage, err)
	}
	if cfg.Watch {
		return a.Watch(ctx)
	}
	return a.Run(ctx)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		log.Error().Err(err).Msg("invalid configuration")
		flag.Usage()
		return exitUsage
	default:
		log.Error().Err(err).Msg("run failed")
		return exitParseError
	}
}
