package codec

import (
	"encoding/binary"
	"math"
)

// CommitVersion identifies a commit point. Versions are totally ordered, a higher version is more recent.
type CommitVersion uint64

const (
	// NoVersion is reserved, no commit is ever assigned version 0.
	NoVersion CommitVersion = 0
	// MaxVersion is the open upper sentinel, it sorts before every real version of a key.
	MaxVersion CommitVersion = math.MaxUint64
)

const (
	escByte  = byte(0x00)
	escMark  = byte(0xFF)
	termByte = byte(0x00)

	// TerminatorLen is the length of the separator between the escaped key and the version suffix.
	TerminatorLen = 2
	// VersionLen is the length of the version suffix.
	VersionLen = 8
	// SuffixLen is the fixed overhead added to every key on top of escape expansion.
	SuffixLen = TerminatorLen + VersionLen
)

// EncodeVersionedKey encodes a user key and appends an encoded version to it. Versioned keys are sorted first by key
// (ascending), then by version (descending), under plain bytewise comparison.
//
// Layout: [escaped key][0x00 0x00][^version as 8 big-endian bytes]. Every 0x00 in the key is escaped as 0x00 0xFF, so
// the terminator can never appear inside the escaped region.
func EncodeVersionedKey(key []byte, version CommitVersion) []byte {
	result := make([]byte, 0, EncodedLen(key))
	result = appendEscaped(result, key)
	result = append(result, termByte, termByte)
	return AppendVersion(result, version)
}

// AppendVersion appends the version to an escaped and terminated key. Note we invert the version so that when sorted,
// they are in descending order.
func AppendVersion(encodedKey []byte, version CommitVersion) []byte {
	var buf [VersionLen]byte
	binary.BigEndian.PutUint64(buf[:], ^uint64(version))
	return append(encodedKey, buf[:]...)
}

// EncodedLen returns the length of EncodeVersionedKey(key, v) for any v.
func EncodedLen(key []byte) int {
	n := len(key) + SuffixLen
	for _, b := range key {
		if b == escByte {
			n++
		}
	}
	return n
}

// EscapeKey returns key with every 0x00 replaced by 0x00 0xFF.
func EscapeKey(key []byte) []byte {
	return appendEscaped(make([]byte, 0, EncodedLen(key)-SuffixLen), key)
}

func appendEscaped(dst, key []byte) []byte {
	for _, b := range key {
		dst = append(dst, b)
		if b == escByte {
			dst = append(dst, escMark)
		}
	}
	return dst
}

// UnescapeKey reverses EscapeKey. It returns false if escaped contains a 0x00 that is not followed by 0xFF.
func UnescapeKey(escaped []byte) ([]byte, bool) {
	key := make([]byte, 0, len(escaped))
	for i := 0; i < len(escaped); i++ {
		b := escaped[i]
		if b == escByte {
			if i+1 >= len(escaped) || escaped[i+1] != escMark {
				return nil, false
			}
			i++
		}
		key = append(key, b)
	}
	return key, true
}

// findTerminator returns the offset of the unescaped 0x00 0x00 terminator in encoded, or -1 if there is none or the
// escaped region is corrupt.
func findTerminator(encoded []byte) int {
	for i := 0; i < len(encoded); i++ {
		if encoded[i] != escByte {
			continue
		}
		if i+1 >= len(encoded) {
			return -1
		}
		switch encoded[i+1] {
		case termByte:
			return i
		case escMark:
			i++
		default:
			return -1
		}
	}
	return -1
}

func unescapeUpTo(encoded []byte, term int) []byte {
	key := make([]byte, 0, term)
	for i := 0; i < term; i++ {
		key = append(key, encoded[i])
		if encoded[i] == escByte {
			// Skip the 0xFF marker, findTerminator already validated it.
			i++
		}
	}
	return key
}

func versionAfter(encoded []byte, term int) (CommitVersion, bool) {
	start := term + TerminatorLen
	if len(encoded)-start < VersionLen {
		return NoVersion, false
	}
	return CommitVersion(^binary.BigEndian.Uint64(encoded[start : start+VersionLen])), true
}

// ExtractKey takes a versioned key and returns the user key part.
func ExtractKey(encoded []byte) ([]byte, bool) {
	term := findTerminator(encoded)
	if term < 0 {
		return nil, false
	}
	return unescapeUpTo(encoded, term), true
}

// ExtractVersion takes a versioned key and returns the version part.
func ExtractVersion(encoded []byte) (CommitVersion, bool) {
	term := findTerminator(encoded)
	if term < 0 {
		return NoVersion, false
	}
	return versionAfter(encoded, term)
}

// DecodeVersionedKey splits a versioned key into its user key and version using a single terminator scan.
func DecodeVersionedKey(encoded []byte) ([]byte, CommitVersion, bool) {
	term := findTerminator(encoded)
	if term < 0 {
		return nil, NoVersion, false
	}
	version, ok := versionAfter(encoded, term)
	if !ok {
		return nil, NoVersion, false
	}
	return unescapeUpTo(encoded, term), version, true
}

// KeyVersionRange returns the inclusive bounds which bracket every version of key and nothing else.
func KeyVersionRange(key []byte) (start, end []byte) {
	return EncodeVersionedKey(key, MaxVersion), EncodeVersionedKey(key, NoVersion)
}
