package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/rqbconf/internal/params"
)

// Tags whose attributes feed the record.
const (
	TagCPUQuiet  = "cpuquiet"
	TagRQBalance = "rqbalance"
)

// ErrSyntax is matched by every *SyntaxError.
var ErrSyntax = errors.New("xml parse error")

// SyntaxError reports malformed markup. Line is 1-based.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("xml parse error: %s (line %d)", e.Msg, e.Line)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// MatchesTarget reports whether tag opens the target subtree. Only the first
// len(target) bytes of tag are compared, so "rqbalance" also matches
// "rqbalance-extra" and an empty target matches every tag.
func MatchesTarget(tag, target string) bool {
	return strings.HasPrefix(tag, target)
}

// scope is the per-call parse state. entry is the depth at which the target
// subtree was opened, or 0 while outside it.
type scope struct {
	depth int
	entry int
}

func (s *scope) inside() bool { return s.entry > 0 }

// open records a tag opening and reports whether its attributes should be
// dispatched.
func (s *scope) open(tag, target string) bool {
	s.depth++
	if !s.inside() && MatchesTarget(tag, target) {
		s.entry = s.depth
	}
	return s.inside()
}

func (s *scope) close() {
	if s.inside() && s.depth == s.entry {
		s.entry = 0
	}
	s.depth--
}

// Extract parses doc and fills a record from every subtree whose tag
// matches target; later subtrees overwrite earlier values. Cluster limits not present in the subtree keep their
// defaults. On error the returned record is the zero value.
func Extract(doc []byte, target string) (params.Record, error) {
	return ScopedExtractor{Logger: log.Logger}.Extract(doc, target)
}

func extract(doc []byte, target string, logger zerolog.Logger) (params.Record, scope, error) {
	rec := params.New()
	var sc scope
	tk := newTokenizer(doc)
	for {
		ev, err := tk.next()
		if errors.Is(err, io.EOF) {
			return rec, sc, nil
		}
		if err != nil {
			return params.Record{}, sc, err
		}
		switch ev.kind {
		case tagOpen:
			if sc.open(ev.name, target) {
				dispatch(&rec, ev.name, ev.attrs, logger)
			}
		case tagClose:
			sc.close()
		}
	}
}

func dispatch(rec *params.Record, tag string, attrs []attr, logger zerolog.Logger) {
	switch tag {
	case TagCPUQuiet:
		for _, a := range attrs {
			switch a.name {
			case params.FieldMinCPUs, params.FieldMaxCPUs:
				rec.Set(a.name, a.value)
			default:
				logger.Debug().Str("tag", tag).Str("attr", a.name).Msg("ignoring attribute")
			}
		}
	case TagRQBalance:
		for _, a := range attrs {
			switch a.name {
			case params.FieldBalanceLevel, params.FieldUpThresholds, params.FieldDownThresholds:
				rec.Set(a.name, a.value)
			default:
				if !setCluster(rec, a) {
					logger.Debug().Str("tag", tag).Str("attr", a.name).Msg("ignoring attribute")
				}
			}
		}
	}
}

// setCluster matches a against cluster{i}_freq_min/max for increasing i and
// stores the first hit.
func setCluster(rec *params.Record, a attr) bool {
	for i := 0; i < params.MaxClusters; i++ {
		if a.name == params.ClusterMinName(i) {
			rec.SetClusterMin(i, a.value)
			return true
		}
		if a.name == params.ClusterMaxName(i) {
			rec.SetClusterMax(i, a.value)
			return true
		}
	}
	return false
}
