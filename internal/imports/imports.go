// Package imports records the runtime symbols a classified unit needs.
//
// A symbol's source module must be registered with CollectSource before the
// symbol is requested with CollectImport. Requesting an unregistered symbol
// is a programming error and panics.
package imports

import (
	"fmt"
	"slices"
)

// Import is one requested symbol and the module that provides it.
type Import struct {
	Symbol string
	Source string
}

// UnregisteredSourceError is the panic value of CollectImport for a symbol
// with no registered source.
type UnregisteredSourceError struct {
	Symbol string
}

func (e *UnregisteredSourceError) Error() string {
	return fmt.Sprintf("imports: no source registered for %q", e.Symbol)
}

// Collector accumulates import requests for one unit. It is not safe for
// concurrent use.
type Collector struct {
	sources   map[string]string
	requested []string
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{sources: make(map[string]string)}
}

// CollectSource registers module as the source of symbol. A later call for
// the same symbol replaces the source.
func (c *Collector) CollectSource(symbol, module string) {
	c.sources[symbol] = module
}

// CollectImport requests symbol. Repeated requests are recorded once.
func (c *Collector) CollectImport(symbol string) {
	if _, ok := c.sources[symbol]; !ok {
		panic(&UnregisteredSourceError{Symbol: symbol})
	}
	if !slices.Contains(c.requested, symbol) {
		c.requested = append(c.requested, symbol)
	}
}

// Has reports whether symbol has been requested.
func (c *Collector) Has(symbol string) bool {
	return slices.Contains(c.requested, symbol)
}

// Imports returns the requested symbols in request order.
func (c *Collector) Imports() []Import {
	out := make([]Import, 0, len(c.requested))
	for _, sym := range c.requested {
		out = append(out, Import{Symbol: sym, Source: c.sources[sym]})
	}
	return out
}

// Reset drops every request and registration.
func (c *Collector) Reset() {
	clear(c.sources)
	c.requested = nil
}
