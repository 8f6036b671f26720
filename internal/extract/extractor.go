package extract

import (
	"github.com/rs/zerolog"

	"github.com/hyperifyio/rqbconf/internal/params"
)

// Extractor defines a minimal interface for record extraction strategies.
// Implementations must keep all parse state local to one call.
type Extractor interface {
	// Extract converts raw document bytes into a Record taken from the
	// subtree opened by target.
	Extract(doc []byte, target string) (params.Record, error)
}

// ScopedExtractor tracks nesting depth and maps attributes of the target
// subtree onto record fields.
type ScopedExtractor struct {
	Logger zerolog.Logger
}

func (e ScopedExtractor) Extract(doc []byte, target string) (params.Record, error) {
	rec, _, err := extract(doc, target, e.Logger)
	return rec, err
}
