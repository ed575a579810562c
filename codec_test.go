package autobib

import (
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	d := NewEntryData("article")
	d.Set("title", "Entropy and the clustering of periodic points")
	d.Set("doi", "10.4007/annals.2014.180.2.7")
	d.Set("year", "2014")

	encoded, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.EntryType != d.EntryType {
		t.Fatalf("entry type mismatch: got %q want %q", decoded.EntryType, d.EntryType)
	}
	for k, v := range d.Fields {
		if decoded.Fields[k] != v {
			t.Errorf("field %q: got %q want %q", k, decoded.Fields[k], v)
		}
	}

	reencoded, err := Encode(decoded)
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Fatalf("encode is not deterministic: %x != %x", encoded, reencoded)
	}
}

func TestCodecFieldsSortedOnWire(t *testing.T) {
	d := NewEntryData("book")
	d.Set("zebra", "1")
	d.Set("alpha", "2")
	d.Set("mid", "3")

	encoded, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	off := 1 + 1 + len(d.EntryType)
	var keys []string
	for off < len(encoded) {
		keyLen := int(encoded[off])
		off++
		valueLen := int(encoded[off]) | int(encoded[off+1])<<8
		off += 2
		keys = append(keys, string(encoded[off:off+keyLen]))
		off += keyLen + valueLen
	}
	want := []string{"alpha", "mid", "zebra"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i, k := range keys {
		if k != want[i] {
			t.Errorf("key %d: got %q want %q", i, k, want[i])
		}
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	_, err := Decode([]byte{1, 0})
	if err == nil {
		t.Fatal("expected MalformedRecordError for unsupported version")
	}
	if _, ok := err.(*MalformedRecordError); !ok {
		t.Fatalf("got %T, want *MalformedRecordError", err)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := Decode([]byte{0})
	if _, ok := err.(*MalformedRecordError); !ok {
		t.Fatalf("got %v (%T), want *MalformedRecordError", err, err)
	}
}

func TestDecodeRejectsUnsortedKeys(t *testing.T) {
	// version=0, entry_type_len=0, then field "b" then field "a" (out of order).
	raw := []byte{0, 0}
	raw = append(raw, fieldBytes("b", "1")...)
	raw = append(raw, fieldBytes("a", "2")...)
	_, err := Decode(raw)
	if _, ok := err.(*MalformedRecordError); !ok {
		t.Fatalf("got %v (%T), want *MalformedRecordError for unsorted keys", err, err)
	}
}

func TestDecodeRejectsDuplicateKeys(t *testing.T) {
	raw := []byte{0, 0}
	raw = append(raw, fieldBytes("a", "1")...)
	raw = append(raw, fieldBytes("a", "2")...)
	_, err := Decode(raw)
	if _, ok := err.(*MalformedRecordError); !ok {
		t.Fatalf("got %v (%T), want *MalformedRecordError for duplicate key", err, err)
	}
}

func TestDecodeRejectsNonLowercaseKey(t *testing.T) {
	raw := []byte{0, 0}
	raw = append(raw, fieldBytes("Title", "x")...)
	_, err := Decode(raw)
	if _, ok := err.(*MalformedRecordError); !ok {
		t.Fatalf("got %v (%T), want *MalformedRecordError for uppercase key", err, err)
	}
}

func fieldBytes(key, value string) []byte {
	out := []byte{byte(len(key)), byte(len(value)), byte(len(value) >> 8)}
	out = append(out, key...)
	out = append(out, value...)
	return out
}
