package params

import (
	"strconv"
	"unicode/utf8"
)

// MaxClusters is the number of CPU cluster slots a Record carries.
const MaxClusters = 3

// Cluster indices are rendered as a single decimal digit.
var _ = [10 - MaxClusters]struct{}{}

// Field capacities in bytes.
const (
	CPUCountCap   = 7
	LevelCap      = 7
	ThresholdsCap = 63
	FreqCap       = 9
)

// Attribute names understood by the rqbalance configuration format.
const (
	FieldMinCPUs        = "min_cpus"
	FieldMaxCPUs        = "max_cpus"
	FieldBalanceLevel   = "balance_level"
	FieldUpThresholds   = "up_thresholds"
	FieldDownThresholds = "down_thresholds"
)

// FreqLimit holds the frequency bounds of one cluster. Both values are
// stored as "<cluster> <value>".
type FreqLimit struct {
	MinFreq string `json:"min_freq" yaml:"min_freq"`
	MaxFreq string `json:"max_freq" yaml:"max_freq"`
}

// Record is the set of power tunables extracted from one configuration
// document. Every text field is bounded by its capacity constant.
type Record struct {
	MinCPUs        string                 `json:"min_cpus" yaml:"min_cpus"`
	MaxCPUs        string                 `json:"max_cpus" yaml:"max_cpus"`
	BalanceLevel   string                 `json:"balance_level" yaml:"balance_level"`
	UpThresholds   string                 `json:"up_thresholds" yaml:"up_thresholds"`
	DownThresholds string                 `json:"down_thresholds" yaml:"down_thresholds"`
	ClusterLimits  [MaxClusters]FreqLimit `json:"cluster_limits" yaml:"cluster_limits"`
}

// New returns a record with every cluster limit set to its "<i> 0" default
// and all other fields empty.
func New() Record {
	var r Record
	for i := range r.ClusterLimits {
		d := DefaultFreq(i)
		r.ClusterLimits[i] = FreqLimit{MinFreq: d, MaxFreq: d}
	}
	return r
}

// DefaultFreq is the unset value of a cluster frequency limit.
func DefaultFreq(cluster int) string {
	return ClusterValue(cluster, "0")
}

// ClusterValue formats a cluster-scoped value as "<cluster> <value>",
// bounded to FreqCap.
func ClusterValue(cluster int, value string) string {
	return Bound(strconv.Itoa(cluster)+" "+value, FreqCap)
}

// Bound truncates s to at most n bytes without splitting a UTF-8 sequence.
func Bound(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Set assigns a scalar field by its attribute name. It reports false when
// name is not a scalar field.
func (r *Record) Set(name, value string) bool {
	switch name {
	case FieldMinCPUs:
		r.MinCPUs = Bound(value, CPUCountCap)
	case FieldMaxCPUs:
		r.MaxCPUs = Bound(value, CPUCountCap)
	case FieldBalanceLevel:
		r.BalanceLevel = Bound(value, LevelCap)
	case FieldUpThresholds:
		r.UpThresholds = Bound(value, ThresholdsCap)
	case FieldDownThresholds:
		r.DownThresholds = Bound(value, ThresholdsCap)
	default:
		return false
	}
	return true
}

// SetClusterMin stores value as the minimum frequency of cluster i.
// Indices outside [0, MaxClusters) are ignored.
func (r *Record) SetClusterMin(i int, value string) {
	if i < 0 || i >= MaxClusters {
		return
	}
	r.ClusterLimits[i].MinFreq = ClusterValue(i, value)
}

// SetClusterMax stores value as the maximum frequency of cluster i.
// Indices outside [0, MaxClusters) are ignored.
func (r *Record) SetClusterMax(i int, value string) {
	if i < 0 || i >= MaxClusters {
		return
	}
	r.ClusterLimits[i].MaxFreq = ClusterValue(i, value)
}

// Field is one rendered name/value pair of a Record.
type Field struct {
	Name  string
	Value string
}

// Fields flattens r into its attribute names in a stable order.
func (r Record) Fields() []Field {
	out := []Field{
		{FieldMinCPUs, r.MinCPUs},
		{FieldMaxCPUs, r.MaxCPUs},
		{FieldBalanceLevel, r.BalanceLevel},
		{FieldUpThresholds, r.UpThresholds},
		{FieldDownThresholds, r.DownThresholds},
	}
	for i, l := range r.ClusterLimits {
		out = append(out,
			Field{ClusterMinName(i), l.MinFreq},
			Field{ClusterMaxName(i), l.MaxFreq},
		)
	}
	return out
}

// ClusterMinName is the attribute naming the minimum frequency of cluster i.
func ClusterMinName(i int) string { return "cluster" + strconv.Itoa(i) + "_freq_min" }

// ClusterMaxName is the attribute naming the maximum frequency of cluster i.
func ClusterMaxName(i int) string { return "cluster" + strconv.Itoa(i) + "_freq_max" }
