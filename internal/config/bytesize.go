package config

import (
	"encoding/json"

	"github.com/shtefko55/toolsy/pkg/bytesize"
)

// ByteSize is a configuration size value accepting human-readable input
// like "500MB" or "2GB" as well as raw byte counts. It implements
// encoding.TextUnmarshaler so Viper and YAML decode it directly, plus
// json.Unmarshaler for JSON config files.
type ByteSize int64

// ParseByteSize parses a human-readable byte size string.
func ParseByteSize(s string) (ByteSize, error) {
	size, err := bytesize.Parse(s)
	if err != nil {
		return 0, err
	}
	return ByteSize(size), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalJSON accepts either a quoted size string or a bare number of
// bytes.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var raw int64
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*b = ByteSize(raw)
		return nil
	}
	return b.UnmarshalText([]byte(s))
}

// MarshalJSON implements json.Marshaler.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// Int64 returns the size as int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// String returns the human-readable representation.
func (b ByteSize) String() string {
	return bytesize.Format(bytesize.Size(b))
}
