package snapshot

import (
	"encoding/binary"

	"github.com/coocood/freecache"

	"pkg.world.dev/world-engine/ecstore/types"
)

// ValueCache holds encoded component values keyed by archetype, component, column data version and
// entity. A column write changes its data version, so stale entries are never read back; they age out
// of the underlying freecache ring instead. Keys do not identify the world, so a cache must only be shared
// by serializations of one world. Safe for concurrent use.
type ValueCache struct {
	cache *freecache.Cache
}

// NewValueCache creates a cache using about size bytes. freecache enforces a minimum of 512KB.
func NewValueCache(size int) *ValueCache {
	return &ValueCache{cache: freecache.NewCache(size)}
}

func (c *ValueCache) HitCount() int64 {
	return c.cache.HitCount()
}

func (c *ValueCache) MissCount() int64 {
	return c.cache.MissCount()
}

func (c *ValueCache) Clear() {
	c.cache.Clear()
}

func cacheKey(arch types.ArchetypeID, comp types.ComponentID, version uint64, id types.EntityID) []byte {
	key := make([]byte, 0, 37) //nolint:gomnd // arch, component, version, entity
	key = binary.BigEndian.AppendUint64(key, uint64(arch))
	key = binary.BigEndian.AppendUint64(key, uint64(comp))
	key = binary.BigEndian.AppendUint64(key, version)
	key = append(key, id.Namespace)
	key = binary.BigEndian.AppendUint64(key, id.ID)
	key = binary.BigEndian.AppendUint32(key, uint32(id.Gen))
	return key
}

func (c *ValueCache) get(key []byte) ([]byte, bool) {
	bz, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	return bz, true
}

func (c *ValueCache) set(key, value []byte) {
	// Entries larger than a freecache segment are rejected; those values are simply re-encoded.
	_ = c.cache.Set(key, value, 0)
}
