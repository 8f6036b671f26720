// Package rqbalance loads an rqbalance power configuration file and extracts
// the tunables of one subtree from it.
package rqbalance

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rqbconf/internal/extract"
	"github.com/hyperifyio/rqbconf/internal/loader"
	"github.com/hyperifyio/rqbconf/internal/params"
)

// DefaultNode is the subtree name used when the caller has no preference.
const DefaultNode = "rqbalance"

type options struct {
	maxSize   int64
	logger    zerolog.Logger
	extractor extract.Extractor
}

// Option configures ParseFile.
type Option func(*options)

// WithMaxSize overrides the document size bound.
func WithMaxSize(n int64) Option { return func(o *options) { o.maxSize = n } }

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

// WithExtractor replaces the extraction strategy.
func WithExtractor(e extract.Extractor) Option { return func(o *options) { o.extractor = e } }

func newOptions(opts []Option) options {
	o := options{maxSize: loader.DefaultMaxSize, logger: log.Logger}
	for _, fn := range opts {
		fn(&o)
	}
	if o.extractor == nil {
		o.extractor = extract.ScopedExtractor{Logger: o.logger}
	}
	return o
}

// ParseFile reads path and returns the record extracted from the subtree
// named node. Errors keep their loader or extract sentinel in the chain.
func ParseFile(path, node string, opts ...Option) (params.Record, error) {
	o := newOptions(opts)
	start := time.Now()

	raw, err := loader.Load(path, o.maxSize)
	if err != nil {
		o.logger.Error().Err(err).Str("path", path).Msg("cannot load configuration file")
		return params.Record{}, fmt.Errorf("load config: %w", err)
	}
	doc, err := loader.Decode(raw)
	if err != nil {
		o.logger.Error().Err(err).Str("path", path).Msg("cannot decode configuration file")
		return params.Record{}, fmt.Errorf("load config: %w: %w", loader.ErrRead, err)
	}
	rec, err := o.extractor.Extract(doc, node)
	if err != nil {
		o.logger.Error().Err(err).Str("path", path).Str("node", node).Msg("XML parse error")
		return params.Record{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	o.logger.Debug().
		Str("path", path).
		Str("node", node).
		Int("bytes", len(raw)).
		Dur("took", time.Since(start)).
		Msg("parsed configuration")
	return rec, nil
}

// ParseFileOrDefault behaves like ParseFile but returns the default record
// alongside the error, for callers that keep running on built-in values.
func ParseFileOrDefault(path, node string, opts ...Option) (params.Record, error) {
	rec, err := ParseFile(path, node, opts...)
	if err != nil {
		return params.New(), err
	}
	return rec, nil
}
