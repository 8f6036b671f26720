package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvInputs      = "RQB_INPUTS"
	EnvNode        = "RQB_NODE"
	EnvMaxSize     = "RQB_MAX_SIZE"
	EnvOutput      = "RQB_OUTPUT"
	EnvFormat      = "RQB_FORMAT"
	EnvFallback    = "RQB_FALLBACK"
	EnvCacheDir    = "RQB_CACHE_DIR"
	EnvCacheMaxAge = "RQB_CACHE_MAX_AGE"
	EnvCacheStrict = "RQB_CACHE_STRICT_PERMS"
	EnvCacheClear  = "RQB_CACHE_CLEAR"
	EnvWatch       = "RQB_WATCH"
	EnvVerbose     = "RQB_VERBOSE"
)

// ApplyEnvOverrides forcefully overrides cfg fields with environment
// variables that are set. It lets env take precedence over a config file
// while flags applied afterwards stay highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := splitList(os.Getenv(EnvInputs)); len(v) > 0 {
		cfg.Inputs = v
	}
	if v := os.Getenv(EnvNode); v != "" {
		cfg.Node = v
	}
	if n, ok := envInt(EnvMaxSize); ok {
		cfg.MaxSize = n
	}
	if v := os.Getenv(EnvOutput); v != "" {
		cfg.OutputPath = v
	}
	if v := os.Getenv(EnvFormat); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if d, ok := envDuration(EnvCacheMaxAge); ok {
		cfg.CacheMaxAge = d
	}

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, envKey string) {
		if v, ok := envBool(envKey); ok {
			*dst = v
		}
	}
	setBool(&cfg.Fallback, EnvFallback)
	setBool(&cfg.CacheStrictPerms, EnvCacheStrict)
	setBool(&cfg.CacheClear, EnvCacheClear)
	setBool(&cfg.Watch, EnvWatch)
	setBool(&cfg.Verbose, EnvVerbose)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(key string) (int64, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envBool(key string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
