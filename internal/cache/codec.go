package cache

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes v for storage.
func Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode deserializes data into v. Interface values decode to their natural
// Go types (int64, float64, string, bool, time.Time) instead of the narrowest
// wire type.
func Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}
