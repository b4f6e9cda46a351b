package geo

import (
	"errors"
	"math"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected AddressKey
		invalid  bool
	}{
		{name: "dotted quad", input: "192.168.0.1", expected: 3232235521},
		{name: "zero", input: "0.0.0.0", expected: 0},
		{name: "max", input: "255.255.255.255", expected: 4294967295},
		{name: "surrounding space", input: " 10.0.0.1 ", expected: 167772161},
		{name: "integer text", input: "732758368", expected: 732758368},
		{name: "float text", input: "732758368.0", expected: 732758368},
		{name: "exponent text", input: "7.32758368e+08", expected: 732758368},
		{name: "octet out of range", input: "999.1.1.1", invalid: true},
		{name: "word", input: "abc", invalid: true},
		{name: "empty", input: "", invalid: true},
		{name: "three octets", input: "1.2.3", invalid: true},
		{name: "five octets", input: "1.2.3.4.5", invalid: true},
		{name: "empty octet", input: "1..3.4", invalid: true},
		{name: "signed octet", input: "1.+2.3.4", invalid: true},
		{name: "fraction truncated", input: "732758368.79972", expected: 732758368},
		{name: "negative", input: "-1", invalid: true},
		{name: "too large", input: "4294967296", invalid: true},
		{name: "nan", input: "NaN", invalid: true},
		{name: "ipv6", input: "::1", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.input)
			if tt.invalid {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("expected ErrInvalidAddress, got %v (key %d)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	for _, input := range []string{"8.8.8.8", "abc", "999.1.1.1", "123456"} {
		k1, err1 := Encode(input)
		k2, err2 := Encode(input)
		if k1 != k2 || (err1 == nil) != (err2 == nil) {
			t.Errorf("Encode(%q) not deterministic: (%d, %v) vs (%d, %v)", input, k1, err1, k2, err2)
		}
	}
}

func TestEncodeNumeric(t *testing.T) {
	key, err := EncodeNumeric(732758368)
	if err != nil {
		t.Fatal(err)
	}
	if key != 732758368 {
		t.Errorf("expected 732758368, got %d", key)
	}

	key, err = EncodeNumeric(350311387.865908)
	if err != nil {
		t.Fatal(err)
	}
	if key != 350311387 {
		t.Errorf("expected 350311387, got %d", key)
	}

	for _, v := range []float64{-1, 1 << 32, math.NaN(), math.Inf(1)} {
		if _, err := EncodeNumeric(v); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("EncodeNumeric(%v): expected ErrInvalidAddress, got %v", v, err)
		}
	}
}

func TestDecode(t *testing.T) {
	key, err := Encode("192.168.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if got := Decode(key); got != "192.168.0.1" {
		t.Errorf("expected 192.168.0.1, got %s", got)
	}
}
