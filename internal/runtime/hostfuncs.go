package runtime

import (
	"context"

	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/memocap/internal/memo"
)

// configBuilder accumulates the configuration a script describes.
type configBuilder struct {
	cfg memo.Config
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{cfg: memo.Config{Markers: make(map[memo.Marker]string)}}
}

func (b *configBuilder) globals() map[string]any {
	return map[string]any{
		"marker":        makeMarkerFn(b),
		"unmarker":      makeUnmarkerFn(b),
		"markers":       makeMarkersFn(b),
		"gensym_prefix": makeGensymPrefixFn(b),
	}
}

// makeMarkerFn creates the "marker" host function.
//
// marker(name, module) registers the module a marker is imported from.
func makeMarkerFn(b *configBuilder) *object.Builtin {
	return object.NewBuiltin("marker", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("marker", 2, len(args))
		}

		nameStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("marker: name must be a string, got %s", args[0].Type())
		}
		m, ok := memo.ParseMarker(nameStr.Value())
		if !ok {
			return object.Errorf("marker: unknown marker %q", nameStr.Value())
		}

		moduleStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("marker: module must be a string, got %s", args[1].Type())
		}
		if moduleStr.Value() == "" {
			return object.Errorf("marker: module for %q must not be empty", nameStr.Value())
		}

		b.cfg.Markers[m] = moduleStr.Value()
		return object.Nil
	})
}

// makeUnmarkerFn creates the "unmarker" host function.
//
// unmarker(name) drops a marker's registration.
func makeUnmarkerFn(b *configBuilder) *object.Builtin {
	return object.NewBuiltin("unmarker", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("unmarker", 1, len(args))
		}
		nameStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("unmarker: name must be a string, got %s", args[0].Type())
		}
		m, ok := memo.ParseMarker(nameStr.Value())
		if !ok {
			return object.Errorf("unmarker: unknown marker %q", nameStr.Value())
		}
		delete(b.cfg.Markers, m)
		return object.Nil
	})
}

// makeMarkersFn creates the "markers" host function.
//
// markers() → map of marker name to module
func makeMarkersFn(b *configBuilder) *object.Builtin {
	return object.NewBuiltin("markers", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("markers", 0, len(args))
		}
		out := make(map[string]object.Object, len(b.cfg.Markers))
		for m, module := range b.cfg.Markers {
			out[string(m)] = object.NewString(module)
		}
		return object.NewMap(out)
	})
}

// makeGensymPrefixFn creates the "gensym_prefix" host function.
//
// gensym_prefix(prefix) sets the prefix of synthesized parameter names.
// An empty prefix disables gensym forwarding.
func makeGensymPrefixFn(b *configBuilder) *object.Builtin {
	return object.NewBuiltin("gensym_prefix", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("gensym_prefix", 1, len(args))
		}
		prefix, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("gensym_prefix: prefix must be a string, got %s", args[0].Type())
		}
		b.cfg.GensymPrefix = prefix.Value()
		return object.Nil
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	log *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.log.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.log.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.log.Error(msg)
}
