package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/rqbconf/internal/cache"
	"github.com/hyperifyio/rqbconf/internal/extract"
	"github.com/hyperifyio/rqbconf/internal/loader"
	"github.com/hyperifyio/rqbconf/internal/params"
	"github.com/hyperifyio/rqbconf/internal/rqbalance"
)

// ErrParseFailed is returned by Run when at least one input could not be
// parsed and fallback is disabled.
var ErrParseFailed = errors.New("configuration parse failed")

// maxParallel caps how many inputs are parsed at once.
const maxParallel = 4

type App struct {
	cfg     Config
	records *cache.RecordCache
	// Stdout receives output when OutputPath is "-".
	Stdout io.Writer
}

// Result is the outcome for one input document.
type Result struct {
	Source  string        `yaml:"source" json:"source"`
	Node    string        `yaml:"node" json:"node"`
	Record  params.Record `yaml:"record" json:"record"`
	Default bool          `yaml:"default,omitempty" json:"default,omitempty"`
	Error   string        `yaml:"error,omitempty" json:"error,omitempty"`

	err error
}

func New(_ context.Context, cfg Config) (*App, error) {
	if cfg.Node == "" {
		cfg.Node = NodeDefault
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = loader.DefaultMaxSize
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = OutputDefault
	}
	if cfg.Format == "" {
		cfg.Format = FormatDefault
	}
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = WatchDebounceDefault
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, Stdout: os.Stdout}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed; continuing")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache purge failed; continuing")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged expired cache entries")
			}
		}
		a.records = &cache.RecordCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}
	return a, nil
}

// Run parses every input and writes the rendered results to the output.
func (a *App) Run(ctx context.Context) error {
	results, err := a.Parse(ctx)
	if err != nil {
		return err
	}
	if err := a.write(results); err != nil {
		return err
	}
	log.Info().Int("inputs", len(results)).Str("out", a.cfg.OutputPath).Msg("wrote output")
	return nil
}

// Parse runs the extraction for every input. Without fallback, any failure
// makes Parse return ErrParseFailed joined with the individual errors.
func (a *App) Parse(ctx context.Context) ([]Result, error) {
	results := make([]Result, len(a.cfg.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, in := range a.cfg.Inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.parseOne(gctx, in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	for i := range results {
		r := &results[i]
		if r.err == nil {
			continue
		}
		if a.cfg.Fallback {
			log.Warn().Err(r.err).Str("path", r.Source).Msg("using default parameters")
			continue
		}
		errs = append(errs, r.err)
	}
	if len(errs) > 0 {
		return results, errors.Join(append([]error{ErrParseFailed}, errs...)...)
	}
	return results, nil
}

func (a *App) parseOne(ctx context.Context, path string) Result {
	opts := []rqbalance.Option{rqbalance.WithMaxSize(a.cfg.MaxSize), rqbalance.WithLogger(log.Logger)}
	if a.records != nil {
		opts = append(opts, rqbalance.WithExtractor(&cachedExtractor{
			ctx:    ctx,
			inner:  extract.ScopedExtractor{Logger: log.Logger},
			cache:  a.records,
			source: path,
		}))
	}
	r := Result{Source: path, Node: a.cfg.Node}
	if a.cfg.Fallback {
		r.Record, r.err = rqbalance.ParseFileOrDefault(path, a.cfg.Node, opts...)
		r.Default = r.err != nil
	} else {
		r.Record, r.err = rqbalance.ParseFile(path, a.cfg.Node, opts...)
	}
	if r.err != nil {
		r.Error = r.err.Error()
	}
	return r
}

func (a *App) write(results []Result) error {
	data, err := Render(results, a.cfg.Format)
	if err != nil {
		return err
	}
	if a.cfg.OutputPath == OutputDefault {
		_, err := a.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(a.cfg.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp := a.cfg.OutputPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return os.Rename(tmp, a.cfg.OutputPath)
}

// cachedExtractor serves records from the on-disk cache and stores misses.
type cachedExtractor struct {
	ctx    context.Context
	inner  extract.Extractor
	cache  *cache.RecordCache
	source string
}

func (c *cachedExtractor) Extract(doc []byte, target string) (params.Record, error) {
	key := cache.KeyFrom(target, doc)
	if rec, ok, err := c.cache.Get(c.ctx, key); err != nil {
		log.Warn().Err(err).Msg("cache read failed; parsing")
	} else if ok {
		log.Debug().Str("path", c.source).Str("key", key).Msg("cache hit")
		return rec, nil
	}
	rec, err := c.inner.Extract(doc, target)
	if err != nil {
		return rec, err
	}
	if err := c.cache.Save(c.ctx, key, cache.Entry{Node: target, Source: c.source, Record: rec}); err != nil {
		log.Warn().Err(err).Str("path", c.source).Msg("cache write failed")
	}
	return rec, nil
}
