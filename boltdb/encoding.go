package boltdb

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/bongo/driver"
)

type Encoding int

const (
	MsgPack Encoding = iota
	JSON
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("invalid encoding %d", int(enc))
	}
}

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfJSONBit
	vfChecksumBit

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfSupportedMask = (vfVer1 | vfJSONBit | vfChecksumBit)

	minValueSize = 2
	checksumSize = 8
)

func (vf valueFlags) ver() valueFlags {
	return vf & vfVerMask
}

func (vf valueFlags) encoding() Encoding {
	if vf&vfJSONBit != 0 {
		return JSON
	}
	return MsgPack
}

func (enc Encoding) flags() valueFlags {
	if enc == JSON {
		return vfVer1 | vfChecksumBit | vfJSONBit
	}
	return vfVer1 | vfChecksumBit
}

// encodeValue returns the header followed by the encoded record.
//
// Header: flags (uvarint), then, if vfChecksumBit is set, the xxhash64 of
// the encoded record (8 bytes, little-endian).
func (enc Encoding) encodeValue(rec driver.Record) ([]byte, error) {
	body, err := enc.encodeBody(driver.EncodeRefs(rec))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, binary.MaxVarintLen64+checksumSize+len(body))
	buf = binary.AppendUvarint(buf, uint64(enc.flags()))
	buf = binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(body))
	return append(buf, body...), nil
}

func (enc Encoding) encodeBody(portable any) ([]byte, error) {
	switch enc {
	case MsgPack:
		var bb bytes.Buffer
		e := msgpack.GetEncoder()
		defer msgpack.PutEncoder(e)
		e.Reset(&bb)
		e.SetSortMapKeys(true)
		if err := e.Encode(portable); err != nil {
			return nil, fmt.Errorf("failed to encode record using MsgPack: %w", err)
		}
		return bb.Bytes(), nil
	case JSON:
		raw, err := json.Marshal(tagJSON(portable))
		if err != nil {
			return nil, fmt.Errorf("failed to encode record to JSON: %w", err)
		}
		return raw, nil
	default:
		panic("unsupported encoding")
	}
}

func decodeValue(data []byte) (driver.Record, error) {
	if len(data) < minValueSize {
		return nil, dataErrf(data, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, dataErrf(data, 0, nil, "invalid value: bad flags")
	}
	flags := valueFlags(v)
	if (flags &^ vfSupportedMask) != 0 {
		return nil, dataErrf(data, 0, nil, "invalid value: unsupported flags %x", v)
	}
	if flags.ver() != vfVer1 {
		return nil, dataErrf(data, 0, nil, "invalid value: unsupported format version %d", flags.ver())
	}
	body := data[n:]
	if flags&vfChecksumBit != 0 {
		if len(body) < checksumSize {
			return nil, dataErrf(data, n, nil, "invalid value: truncated checksum")
		}
		sum := binary.LittleEndian.Uint64(body)
		body = body[checksumSize:]
		n += checksumSize
		if xxhash.Sum64(body) != sum {
			return nil, dataErrf(data, n, nil, "invalid value: checksum mismatch")
		}
	}

	var rec map[string]any
	switch flags.encoding() {
	case MsgPack:
		var r bytes.Reader
		r.Reset(body)
		dec := msgpack.GetDecoder()
		dec.Reset(&r)
		dec.UseLooseInterfaceDecoding(true)
		err := dec.Decode(&rec)
		msgpack.PutDecoder(dec)
		if err != nil {
			return nil, dataErrf(data, n, err, "failed to decode msgpack record")
		}
	case JSON:
		d := json.NewDecoder(bytes.NewReader(body))
		d.UseNumber()
		if err := d.Decode(&rec); err != nil {
			return nil, dataErrf(data, n, err, "failed to decode JSON record")
		}
		normalizeJSON(rec)
	}
	if rec == nil {
		return nil, dataErrf(data, n, nil, "record is not a map")
	}
	driver.DecodeRefs(rec)
	return rec, nil
}

const (
	jsonDateKey   = "$date"
	jsonBinaryKey = "$binary"
)

// tagJSON returns a copy of v with the values JSON has no type for (times and
// byte slices) replaced by single-key maps, {"$date": RFC 3339} and
// {"$binary": base64}.
func tagJSON(v any) any {
	switch v := v.(type) {
	case time.Time:
		return map[string]any{jsonDateKey: v.Format(time.RFC3339Nano)}
	case []byte:
		return map[string]any{jsonBinaryKey: base64.StdEncoding.EncodeToString(v)}
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = tagJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = tagJSON(e)
		}
		return out
	default:
		return v
	}
}

// untagJSON reverses tagJSON for a single map.
func untagJSON(m map[string]any) (any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	if s, ok := m[jsonDateKey].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		return t, err == nil
	}
	if s, ok := m[jsonBinaryKey].(string); ok {
		b, err := base64.StdEncoding.DecodeString(s)
		return b, err == nil
	}
	return nil, false
}

// normalizeJSON replaces json.Number values with int64 where exact, float64
// otherwise, and turns tagged times and byte slices back into time.Time and
// []byte.
func normalizeJSON(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		if tv, ok := untagJSON(v); ok {
			return tv
		}
		for k, e := range v {
			v[k] = normalizeJSON(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = normalizeJSON(e)
		}
		return v
	default:
		return v
	}
}
