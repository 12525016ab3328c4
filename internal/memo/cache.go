package memo

import (
	"maps"

	"github.com/jward/memocap/internal/arkast"
)

// Entry is one cached decision.
type Entry struct {
	ID       arkast.NodeID
	Kind     arkast.Kind
	Metadata Metadata
}

// Cache is the decision cache for one compilation unit, keyed strictly by
// node handle. Collecting the same node twice merges metadata. It is not
// safe for concurrent use.
type Cache struct {
	entries map[arkast.NodeID]*Entry
	order   []arkast.NodeID
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[arkast.NodeID]*Entry)}
}

// Collect records n, merging md into any existing entry. Keys in md
// overwrite keys already present.
func (c *Cache) Collect(n arkast.Node, md Metadata) {
	if n == nil {
		return
	}
	e, ok := c.entries[n.ID()]
	if !ok {
		e = &Entry{ID: n.ID(), Kind: n.Kind(), Metadata: Metadata{}}
		c.entries[n.ID()] = e
		c.order = append(c.order, n.ID())
	}
	maps.Copy(e.Metadata, md)
}

// Has reports whether n has a decision.
func (c *Cache) Has(n arkast.Node) bool {
	if n == nil {
		return false
	}
	_, ok := c.entries[n.ID()]
	return ok
}

// Get returns a copy of n's entry.
func (c *Cache) Get(n arkast.Node) (Entry, bool) {
	if n == nil {
		return Entry{}, false
	}
	e, ok := c.entries[n.ID()]
	if !ok {
		return Entry{}, false
	}
	return Entry{ID: e.ID, Kind: e.Kind, Metadata: e.Metadata.clone()}, true
}

// CarryOver re-keys from's decision onto to, merging with anything to
// already holds. It reports whether from had a decision.
func (c *Cache) CarryOver(from, to arkast.Node) bool {
	e, ok := c.Get(from)
	if !ok {
		return false
	}
	c.Collect(to, e.Metadata)
	return true
}

// Len returns the number of cached nodes.
func (c *Cache) Len() int { return len(c.entries) }

// Entries returns copies of all entries in insertion order.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		e := c.entries[id]
		out = append(out, Entry{ID: e.ID, Kind: e.Kind, Metadata: e.Metadata.clone()})
	}
	return out
}

// Reset drops every decision. Call it between compilation units when a
// cache is reused.
func (c *Cache) Reset() {
	clear(c.entries)
	c.order = nil
}

// CloneNode clones n in tree and carries its decision over to the clone.
// Every clone of a possibly-cached node must go through here.
func CloneNode[T arkast.Node](tree *arkast.Tree, c *Cache, n T) T {
	clone := tree.Clone(n).(T)
	c.CarryOver(n, clone)
	return clone
}
