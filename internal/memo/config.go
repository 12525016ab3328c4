package memo

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/memocap/internal/imports"
)

// Marker is an annotation name the classifier reads or writes.
type Marker string

const (
	MarkerMemo          Marker = "memo"
	MarkerMemoSkip      Marker = "memo_skip"
	MarkerMemoIntrinsic Marker = "memo_intrinsic"
	MarkerMemoEntry     Marker = "memo_entry"
	MarkerBuilder       Marker = "Builder"
	MarkerBuilderParam  Marker = "BuilderParam"
)

// Markers lists every marker variant.
func Markers() []Marker {
	return []Marker{
		MarkerMemo, MarkerMemoSkip, MarkerMemoIntrinsic, MarkerMemoEntry,
		MarkerBuilder, MarkerBuilderParam,
	}
}

// ParseMarker maps an annotation name to its marker.
func ParseMarker(s string) (Marker, bool) {
	for _, m := range Markers() {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

const (
	// DefaultRuntimeModule declares the memo marker symbols.
	DefaultRuntimeModule = "arkui.stateManagement.runtime"
	// DefaultGensymPrefix names compiler-synthesized parameters.
	DefaultGensymPrefix = "gensym___"
)

// Config controls which module provides each writable marker and how
// synthesized parameters are recognized.
type Config struct {
	// Markers maps a marker the writer may emit to its source module.
	Markers      map[Marker]string
	GensymPrefix string
}

// DefaultConfig registers the four memo variants against the runtime module.
func DefaultConfig() Config {
	return Config{
		Markers: map[Marker]string{
			MarkerMemo:          DefaultRuntimeModule,
			MarkerMemoSkip:      DefaultRuntimeModule,
			MarkerMemoIntrinsic: DefaultRuntimeModule,
			MarkerMemoEntry:     DefaultRuntimeModule,
		},
		GensymPrefix: DefaultGensymPrefix,
	}
}

// Fingerprint is a stable digest input for the configuration. Two configs
// with the same fingerprint classify identically.
func (c Config) Fingerprint() string {
	keys := make([]string, 0, len(c.Markers))
	for m := range c.Markers {
		keys = append(keys, string(m))
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(c.Markers[Marker(k)])
		sb.WriteByte(';')
	}
	sb.WriteString("gensym=")
	sb.WriteString(c.GensymPrefix)
	return sb.String()
}

// ImportCollector receives import requests from the writer. The source must
// be registered before the import is requested.
type ImportCollector interface {
	CollectSource(symbol, module string)
	CollectImport(symbol string)
}

var _ ImportCollector = (*imports.Collector)(nil)

type settings struct {
	cache   *Cache
	imports ImportCollector
	cfg     Config
	log     *zap.Logger
}

// Option configures a Classifier or Pass.
type Option func(*settings)

// WithCache shares a decision cache across classifier instances for the same
// unit.
func WithCache(c *Cache) Option {
	return func(s *settings) { s.cache = c }
}

// WithImports routes import requests to ic.
func WithImports(ic ImportCollector) Option {
	return func(s *settings) { s.imports = ic }
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithLogger sets the debug logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.log = l }
}
