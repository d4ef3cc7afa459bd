// Package bytesize parses and formats human-readable byte sizes such as
// "500MB" or "1.5 GB". Units use the binary (1024) base, and the short
// forms (KB, MB, ...) are treated the same as their explicit binary
// spellings (KiB, MiB, ...). A bare number is a byte count.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

// Binary base units.
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
	PB Size = 1024 * TB
)

var units = map[string]Size{
	"":      B,
	"b":     B,
	"byte":  B,
	"bytes": B,
	"k":     KB,
	"kb":    KB,
	"kib":   KB,
	"m":     MB,
	"mb":    MB,
	"mib":   MB,
	"g":     GB,
	"gb":    GB,
	"gib":   GB,
	"t":     TB,
	"tb":    TB,
	"tib":   TB,
	"p":     PB,
	"pb":    PB,
	"pib":   PB,
}

// Parse converts a size string like "5MB", "1.5 GB", or "1024" into a
// Size. Whitespace around and between the number and unit is ignored,
// and the unit is case-insensitive.
func Parse(s string) (Size, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	// Split into the leading numeric part and the trailing unit.
	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}

	numPart := trimmed[:split]
	unitPart := strings.ToLower(strings.TrimSpace(trimmed[split:]))

	if numPart == "" {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", numPart, err)
	}

	multiplier, ok := units[unitPart]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q", unitPart)
	}

	return Size(value * float64(multiplier)), nil
}

// MustParse is Parse for trusted literal inputs. It panics on error.
func MustParse(s string) Size {
	size, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return size
}

// Format renders a Size using the largest unit whose value is at least 1,
// with up to two decimal places and trailing zeros removed.
func Format(s Size) string {
	if s == 0 {
		return "0B"
	}

	negative := s < 0
	if negative {
		s = -s
	}

	var out string
	switch {
	case s >= PB:
		out = trimmedFloat(float64(s)/float64(PB)) + "PB"
	case s >= TB:
		out = trimmedFloat(float64(s)/float64(TB)) + "TB"
	case s >= GB:
		out = trimmedFloat(float64(s)/float64(GB)) + "GB"
	case s >= MB:
		out = trimmedFloat(float64(s)/float64(MB)) + "MB"
	case s >= KB:
		out = trimmedFloat(float64(s)/float64(KB)) + "KB"
	default:
		out = strconv.FormatInt(int64(s), 10) + "B"
	}

	if negative {
		return "-" + out
	}
	return out
}

func trimmedFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	formatted := strconv.FormatFloat(value, 'f', 2, 64)
	formatted = strings.TrimRight(formatted, "0")
	return strings.TrimRight(formatted, ".")
}

// Bytes returns the size as a plain int64 byte count.
func (s Size) Bytes() int64 {
	return int64(s)
}

// String implements fmt.Stringer.
func (s Size) String() string {
	return Format(s)
}
