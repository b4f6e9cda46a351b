// Package geo maps IPv4 addresses to countries using a sorted range table.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AddressKey is an IPv4 address as a big-endian unsigned integer.
type AddressKey uint32

// Encode converts a dotted-quad, or a number rendered as text, into an
// AddressKey. Anything else yields ErrInvalidAddress.
func Encode(ip string) (AddressKey, error) {
	s := strings.TrimSpace(ip)
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidAddress)
	}

	if strings.Contains(s, ".") && strings.Count(s, ".") == 3 && !strings.ContainsAny(s, "eE") {
		return encodeDottedQuad(s)
	}

	// Upstream datasets store addresses as float or integer columns.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}
	return EncodeNumeric(v)
}

// EncodeNumeric truncates v toward zero, renders the integer as text and
// parses it. Datasets store addresses as floats with spurious fractions.
func EncodeNumeric(v float64) (AddressKey, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v is not a number", ErrInvalidAddress, v)
	}
	v = math.Trunc(v)
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidAddress, v)
	}

	text := strconv.FormatUint(uint64(v), 10)
	n, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, text)
	}
	return AddressKey(n), nil
}

func encodeDottedQuad(s string) (AddressKey, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	var key uint32
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
			}
		}
		octet, err := strconv.Atoi(part)
		if err != nil || octet > 255 {
			return 0, fmt.Errorf("%w: octet %q out of range", ErrInvalidAddress, part)
		}
		key = key<<8 | uint32(octet)
	}
	return AddressKey(key), nil
}

// Decode renders the key as a dotted quad.
func Decode(key AddressKey) string {
	k := uint32(key)
	return fmt.Sprintf("%d.%d.%d.%d", k>>24, k>>16&0xff, k>>8&0xff, k&0xff)
}
