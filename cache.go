package memocap

import (
	"github.com/cespare/xxhash/v2"
	ristretto "github.com/dgraph-io/ristretto/v2"
)

// resultCache keeps classification results for content the engine has
// already seen. A nil *resultCache is a disabled cache.
type resultCache struct {
	c *ristretto.Cache[uint64, *UnitResult]
}

func newResultCache(entries int64) (*resultCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, *UnitResult]{
		NumCounters: entries * 10, // number of keys to track frequency of.
		MaxCost:     entries,      // one unit of cost per result.
		BufferItems: 64,           // number of keys per Get buffer.
	})
	if err != nil {
		return nil, err
	}
	return &resultCache{c: c}, nil
}

// resultKey identifies a result by source content and configuration.
func resultKey(src []byte, fingerprint string) uint64 {
	d := xxhash.New()
	_, _ = d.Write(src)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(fingerprint)
	return d.Sum64()
}

func (rc *resultCache) get(key uint64) (*UnitResult, bool) {
	if rc == nil {
		return nil, false
	}
	return rc.c.Get(key)
}

func (rc *resultCache) set(key uint64, res *UnitResult) {
	if rc == nil {
		return
	}
	rc.c.Set(key, res, 1)
	rc.c.Wait()
}

func (rc *resultCache) close() {
	if rc == nil {
		return
	}
	rc.c.Close()
}
