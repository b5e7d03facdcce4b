package boltdb

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/andreyvit/bongo/driver"
)

// Key format: one tag byte, then the payload.
//
// Strings use tag 's' followed by the raw bytes. Signed integers use tag 'i'
// followed by 8 big-endian bytes with the sign bit flipped, so that keys
// sort numerically.
const (
	keyTagInt    = 'i'
	keyTagString = 's'
)

func encodeKey(id any) ([]byte, error) {
	switch v := id.(type) {
	case string:
		return append([]byte{keyTagString}, v...), nil
	case int:
		return intKey(int64(v)), nil
	case int8:
		return intKey(int64(v)), nil
	case int16:
		return intKey(int64(v)), nil
	case int32:
		return intKey(int64(v)), nil
	case int64:
		return intKey(v), nil
	case uint8:
		return intKey(int64(v)), nil
	case uint16:
		return intKey(int64(v)), nil
	case uint32:
		return intKey(int64(v)), nil
	case uint64:
		if v > 1<<63-1 {
			return nil, fmt.Errorf("%w: %d overflows int64", driver.ErrInvalidID, v)
		}
		return intKey(int64(v)), nil
	default:
		return nil, fmt.Errorf("%w: %T", driver.ErrInvalidID, id)
	}
}

func intKey(v int64) []byte {
	buf := make([]byte, 9)
	buf[0] = keyTagInt
	binary.BigEndian.PutUint64(buf[1:], uint64(v)^(1<<63))
	return buf
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
