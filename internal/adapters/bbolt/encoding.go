// Binary encoding for cache entries.
//
// Entry format (little-endian):
//
//	contentHash: uint64
//	rulesHash:   uint64
//	keyCount:    uint32
//	per key:
//	  keyLen:    uint16
//	  key:       [keyLen]byte
//	  lineCount: uint32
//	  lines:     [lineCount]uint32
//
// Keys are written in the record's first-seen order so a decoded record
// reports identically to the one that was stored.
package bbolt

import (
	"encoding/binary"
	"fmt"

	"github.com/corey/threadscan/internal/ports"
)

const entryHeaderSize = 8 + 8 + 4

type cacheEntry struct {
	contentHash uint64
	rulesHash   uint64
	record      *ports.MatchRecord
}

// encodeEntry encodes a cache entry into a single pre-sized buffer.
func encodeEntry(e cacheEntry) ([]byte, error) {
	keys := e.record.Keys()
	size := entryHeaderSize
	for _, k := range keys {
		size += 2 + len(k) + 4 + 4*len(e.record.Lines(k))
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:], e.contentHash)
	binary.LittleEndian.PutUint64(buf[8:], e.rulesHash)
	binary.LittleEndian.PutUint32(buf[16:], uint32(len(keys)))
	off := entryHeaderSize

	for _, k := range keys {
		if len(k) > 65535 {
			return nil, fmt.Errorf("match key too long: %d bytes", len(k))
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(k)))
		off += 2
		off += copy(buf[off:], k)

		lines := e.record.Lines(k)
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(lines)))
		off += 4
		for _, n := range lines {
			binary.LittleEndian.PutUint32(buf[off:], uint32(n))
			off += 4
		}
	}
	return buf, nil
}

// decodeEntry decodes a cache entry. Every read is bounds-checked so corrupt
// data yields an error instead of a panic.
func decodeEntry(data []byte) (cacheEntry, error) {
	if len(data) < entryHeaderSize {
		return cacheEntry{}, fmt.Errorf("cache entry too short: %d bytes", len(data))
	}
	e := cacheEntry{
		contentHash: binary.LittleEndian.Uint64(data[0:]),
		rulesHash:   binary.LittleEndian.Uint64(data[8:]),
		record:      ports.NewMatchRecord(),
	}
	keyCount := binary.LittleEndian.Uint32(data[16:])
	off := entryHeaderSize

	for i := uint32(0); i < keyCount; i++ {
		if off+2 > len(data) {
			return cacheEntry{}, fmt.Errorf("truncated at key %d length (offset %d)", i, off)
		}
		keyLen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+keyLen > len(data) {
			return cacheEntry{}, fmt.Errorf("truncated at key %d (offset %d, need %d)", i, off, keyLen)
		}
		key := string(data[off : off+keyLen])
		off += keyLen

		if off+4 > len(data) {
			return cacheEntry{}, fmt.Errorf("truncated at key %d line count (offset %d)", i, off)
		}
		lineCount := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if lineCount > (len(data)-off)/4 {
			return cacheEntry{}, fmt.Errorf("truncated at key %d lines (offset %d, need %d)", i, off, lineCount*4)
		}
		for j := 0; j < lineCount; j++ {
			e.record.Add(key, int(binary.LittleEndian.Uint32(data[off:])))
			off += 4
		}
	}
	if off != len(data) {
		return cacheEntry{}, fmt.Errorf("trailing bytes in cache entry: %d", len(data)-off)
	}
	return e, nil
}
