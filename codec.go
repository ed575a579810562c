package autobib

import (
	"encoding/binary"
	"sort"
	"unicode/utf8"
)

// codecVersion0 is the only version currently emitted. Decoding accepts
// only this version; a different leading byte is MalformedRecord.
const codecVersion0 byte = 0

// EntryData is the logical, decoded form of a record's bibliographic
// payload: an entry type plus a set of field key/value pairs. Keys are
// unique and ASCII-lowercase.
type EntryData struct {
	EntryType string
	Fields    map[string]string
}

// NewEntryData constructs an empty EntryData for the given entry type.
func NewEntryData(entryType string) *EntryData {
	return &EntryData{EntryType: entryType, Fields: make(map[string]string)}
}

// Set assigns a field value under key exactly as given: it neither
// lower-cases nor validates the key. Encode rejects a key that is not
// ASCII-lowercase.
func (d *EntryData) Set(key, value string) {
	d.Fields[key] = value
}

// sortedKeys returns the field keys in ascending byte order, the order
// the codec requires on the wire.
func (d *EntryData) sortedKeys() []string {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode produces the canonical byte representation of d: VERSION(1) ||
// entry_type_len(1) || entry_type || repeat(key_len(1), value_len(2 LE),
// key, value) with fields sorted ascending by key. Encoding is
// deterministic: for a given logical record exactly one byte sequence is
// valid output.
func Encode(d *EntryData) ([]byte, error) {
	if len(d.EntryType) > 255 {
		return nil, &CodecError{Reason: "entry_type exceeds 255 bytes"}
	}
	if !utf8.ValidString(d.EntryType) {
		return nil, &CodecError{Reason: "entry_type is not valid UTF-8"}
	}

	keys := d.sortedKeys()

	size := 1 + 1 + len(d.EntryType)
	for _, k := range keys {
		v := d.Fields[k]
		if len(k) > 255 {
			return nil, &CodecError{Reason: "field key exceeds 255 bytes: " + k}
		}
		if len(v) > 65535 {
			return nil, &CodecError{Reason: "field value exceeds 65535 bytes for key: " + k}
		}
		if !isASCIILower(k) {
			return nil, &CodecError{Reason: "field key is not ASCII-lowercase: " + k}
		}
		if !utf8.ValidString(v) {
			return nil, &CodecError{Reason: "field value is not valid UTF-8 for key: " + k}
		}
		size += 1 + 2 + len(k) + len(v)
	}

	buf := make([]byte, size)
	off := 0
	buf[off] = codecVersion0
	off++
	buf[off] = byte(len(d.EntryType))
	off++
	off += copy(buf[off:], d.EntryType)

	for _, k := range keys {
		v := d.Fields[k]
		buf[off] = byte(len(k))
		off++
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(v)))
		off += 2
		off += copy(buf[off:], k)
		off += copy(buf[off:], v)
	}

	return buf, nil
}

// Decode parses the canonical byte representation produced by Encode,
// failing with MalformedRecordError on any violation of the wire format:
// bad version, truncation, out-of-range lengths, a non-lowercase key, an
// unsorted or duplicate key.
func Decode(raw []byte) (*EntryData, error) {
	if len(raw) < 2 {
		return nil, newMalformedRecordError("truncated header")
	}
	if raw[0] != codecVersion0 {
		return nil, newMalformedRecordError("unsupported codec version")
	}

	off := 1
	etLen := int(raw[off])
	off++
	if off+etLen > len(raw) {
		return nil, newMalformedRecordError("truncated entry_type")
	}
	entryType := string(raw[off : off+etLen])
	if !utf8.ValidString(entryType) {
		return nil, newMalformedRecordError("entry_type is not valid UTF-8")
	}
	off += etLen

	d := NewEntryData(entryType)
	prevKey := ""
	first := true

	for off < len(raw) {
		if off+1 > len(raw) {
			return nil, newMalformedRecordError("truncated key_len")
		}
		keyLen := int(raw[off])
		off++
		if off+2 > len(raw) {
			return nil, newMalformedRecordError("truncated value_len")
		}
		valueLen := int(binary.LittleEndian.Uint16(raw[off : off+2]))
		off += 2

		if off+keyLen > len(raw) {
			return nil, newMalformedRecordError("truncated key")
		}
		key := raw[off : off+keyLen]
		off += keyLen

		if off+valueLen > len(raw) {
			return nil, newMalformedRecordError("truncated value")
		}
		value := raw[off : off+valueLen]
		off += valueLen

		if !isASCIILowerBytes(key) {
			return nil, newMalformedRecordError("field key is not ASCII-lowercase")
		}
		if !utf8.Valid(value) {
			return nil, newMalformedRecordError("field value is not valid UTF-8")
		}

		keyStr := string(key)
		if !first && keyStr <= prevKey {
			if keyStr == prevKey {
				return nil, newMalformedRecordError("duplicate field key: " + keyStr)
			}
			return nil, newMalformedRecordError("field keys are not sorted ascending")
		}
		prevKey = keyStr
		first = false

		d.Fields[keyStr] = string(value)
	}

	return d, nil
}

func isASCIILower(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func isASCIILowerBytes(b []byte) bool {
	for _, c := range b {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
