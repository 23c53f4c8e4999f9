package cache

import "bytes"

// versionTag is the 3-byte marker every binary file this package
// writes begins with (spec §6: "the ULEB-ish version tag 0x00_03_00,
// interpreted as major 3, minor 0, patch 0"). A reader that finds a
// different tag must treat the file as incompatible and fall back to
// treating it as absent, never attempt to interpret the bytes that
// follow.
var versionTag = [3]byte{0x00, 0x03, 0x00}

func hasVersionTag(b []byte) bool {
	return len(b) >= len(versionTag) && bytes.Equal(b[:len(versionTag)], versionTag[:])
}

func appendVersionTag(b []byte) []byte {
	return append(b, versionTag[:]...)
}
