package cache

import (
	"encoding/binary"
	"fmt"
	"time"
)

// policy is the per-entry metadata persisted alongside a cached
// payload (spec §4.7): an absolute expiry, an optional sliding TTL,
// and the key the entry was stored under (kept so a hashed-layout
// reader can confirm it didn't land on the wrong bucket).
type policy struct {
	AbsoluteExpiry time.Time
	Sliding        time.Duration
	Key            string
}

// encode serializes p into the on-disk policy format: version tag,
// absolute expiry as a 64-bit Unix-nano tick, sliding TTL in
// milliseconds, then a length-prefixed key string.
func (p policy) encode() []byte {
	buf := make([]byte, 0, len(versionTag)+8+8+4+len(p.Key))
	buf = appendVersionTag(buf)

	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(p.AbsoluteExpiry.UnixNano()))
	buf = append(buf, tmp[:]...)

	binary.BigEndian.PutUint64(tmp[:], uint64(p.Sliding.Milliseconds()))
	buf = append(buf, tmp[:]...)

	var klen [4]byte
	binary.BigEndian.PutUint32(klen[:], uint32(len(p.Key)))
	buf = append(buf, klen[:]...)
	buf = append(buf, p.Key...)
	return buf
}

// decodePolicy parses the format written by policy.encode. It returns
// ErrCacheCorrupt for a missing/mismatched version tag or a truncated
// buffer — both are "treat as miss", per spec §4.7 Integrity, never a
// panic.
func decodePolicy(b []byte) (policy, error) {
	if !hasVersionTag(b) {
		return policy{}, ErrCacheCorrupt
	}
	b = b[len(versionTag):]
	if len(b) < 8+8+4 {
		return policy{}, ErrCacheCorrupt
	}
	absNano := int64(binary.BigEndian.Uint64(b[:8]))
	b = b[8:]
	slidingMS := int64(binary.BigEndian.Uint64(b[:8]))
	b = b[8:]
	klen := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < klen {
		return policy{}, ErrCacheCorrupt
	}
	key := string(b[:klen])

	return policy{
		AbsoluteExpiry: time.Unix(0, absNano),
		Sliding:        time.Duration(slidingMS) * time.Millisecond,
		Key:            key,
	}, nil
}

func (p policy) expired(now time.Time) bool {
	return p.AbsoluteExpiry.Before(now)
}

func (p policy) String() string {
	return fmt.Sprintf("policy{key=%q, expires=%s, sliding=%s}", p.Key, p.AbsoluteExpiry, p.Sliding)
}
