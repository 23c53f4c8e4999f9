package cache

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// entryMeta is the in-memory bookkeeping kept per cache entry for
// eviction decisions: size on disk and the last-access time used to
// pick eviction victims (spec §4.7 Eviction).
type entryMeta struct {
	Key        string
	Size       int64
	LastAccess time.Time
}

// index tracks currentSize (mirrored to root/cache.size) and the last
// clean date (root/cache.lcd), plus an in-memory go-cache mirror of
// per-entry metadata so eviction does not need to stat every file on
// disk each time it runs.
type index struct {
	root string

	mu      sync.Mutex
	size    int64
	entries *gocache.Cache // key -> entryMeta, no TTL of its own
}

func newIndex(root string) (*index, error) {
	idx := &index{
		root:    root,
		entries: gocache.New(gocache.NoExpiration, time.Hour),
	}
	size, err := readSysInt64(filepath.Join(root, "cache.size"))
	if err != nil && err != ErrCacheCorrupt && !os.IsNotExist(err) {
		return nil, err
	}
	idx.size = size
	return idx, nil
}

func (idx *index) currentSize() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.size
}

func (idx *index) record(key string, size int64, accessed time.Time) {
	idx.mu.Lock()
	old, had := idx.entries.Get(key)
	if had {
		idx.size -= old.(entryMeta).Size
	}
	idx.size += size
	idx.entries.Set(key, entryMeta{Key: key, Size: size, LastAccess: accessed}, gocache.NoExpiration)
	size64 := idx.size
	idx.mu.Unlock()

	_ = writeSysInt64(filepath.Join(idx.root, "cache.size"), size64)
}

func (idx *index) touch(key string, accessed time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if v, ok := idx.entries.Get(key); ok {
		m := v.(entryMeta)
		m.LastAccess = accessed
		idx.entries.Set(key, m, gocache.NoExpiration)
	}
}

func (idx *index) remove(key string) {
	idx.mu.Lock()
	v, ok := idx.entries.Get(key)
	if ok {
		idx.size -= v.(entryMeta).Size
		idx.entries.Delete(key)
	}
	size64 := idx.size
	idx.mu.Unlock()
	_ = writeSysInt64(filepath.Join(idx.root, "cache.size"), size64)
}

// victims returns cache keys in eviction order: oldest last-access
// time first; ties broken by larger size first, then by key string
// order (spec §4.7 Eviction).
func (idx *index) victims() []entryMeta {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	items := idx.entries.Items()
	out := make([]entryMeta, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(entryMeta))
	}
	sortVictims(out)
	return out
}

func sortVictims(entries []entryMeta) {
	// insertion sort: eviction lists are small enough in practice
	// that a simple stable sort reads clearer than pulling in
	// sort.Slice for a three-way comparator.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && victimLess(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func victimLess(a, b entryMeta) bool {
	if !a.LastAccess.Equal(b.LastAccess) {
		return a.LastAccess.Before(b.LastAccess)
	}
	if a.Size != b.Size {
		return a.Size > b.Size
	}
	return a.Key < b.Key
}

func (idx *index) lastCleanDate() (time.Time, bool) {
	t, err := readSysTime(filepath.Join(idx.root, "cache.lcd"))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (idx *index) setLastCleanDate(t time.Time) {
	_ = writeSysTime(filepath.Join(idx.root, "cache.lcd"), t)
}

func readSysInt64(path string) (int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if !hasVersionTag(raw) || len(raw) < len(versionTag)+8 {
		return 0, ErrCacheCorrupt
	}
	v := int64(binary.LittleEndian.Uint64(raw[len(versionTag):]))
	return v, nil
}

func writeSysInt64(path string, v int64) error {
	buf := appendVersionTag(make([]byte, 0, len(versionTag)+8))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	buf = append(buf, tmp[:]...)
	return os.WriteFile(path, buf, 0o600)
}

func readSysTime(path string) (time.Time, error) {
	v, err := readSysInt64(path)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, v), nil
}

func writeSysTime(path string, t time.Time) error {
	return writeSysInt64(path, t.UnixNano())
}
