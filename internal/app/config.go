package app

import "time"

// Defaults shared by flag parsing, file config and validation.
const (
	NodeDefault          = "rqbalance"
	OutputDefault        = "-"
	FormatDefault        = "yaml"
	WatchDebounceDefault = 250 * time.Millisecond
)

// Config holds runtime configuration for the application.
type Config struct {
	// Configuration documents to parse, in output order.
	Inputs []string
	// Node is the target subtree tag name.
	Node    string
	MaxSize int64

	// Output
	OutputPath string
	Format     string

	// Fallback renders default records for inputs that fail to parse
	// instead of failing the run.
	Fallback bool

	// Cache
	CacheDir         string
	CacheStrictPerms bool
	CacheClear       bool
	CacheMaxAge      time.Duration

	// Behavior
	Watch         bool
	WatchDebounce time.Duration
	Verbose       bool
}
