package geo

import (
	"encoding/binary"
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"

	"fraudservice/internal/model"
)

type entry struct {
	lower   uint32
	upper   uint32
	country string
}

// RangeIndex is an immutable table of ranges sorted by lower bound.
// It is safe for concurrent lookups.
type RangeIndex struct {
	entries     []entry
	fingerprint string
}

// BuildIndex sorts a copy of ranges by lower bound. The sort is stable, so
// ranges sharing a lower bound keep their input order. No range is rejected.
func BuildIndex(ranges []model.GeoRange) *RangeIndex {
	entries := make([]entry, len(ranges))
	for i, r := range ranges {
		entries[i] = entry{lower: r.Lower, upper: r.Upper, country: r.Country}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].lower < entries[j].lower
	})

	h := xxh3.New()
	var buf [8]byte
	for _, e := range entries {
		binary.BigEndian.PutUint32(buf[:4], e.lower)
		binary.BigEndian.PutUint32(buf[4:], e.upper)
		h.Write(buf[:])
		h.WriteString(e.country)
		h.Write([]byte{0})
	}

	return &RangeIndex{
		entries:     entries,
		fingerprint: strconv.FormatUint(h.Sum64(), 16),
	}
}

// Lookup returns the country of the range with the greatest lower bound not
// exceeding key. Among equal lower bounds the last one in sorted order is the
// candidate. The candidate must contain key, otherwise ErrNoRangeMatch.
func (idx *RangeIndex) Lookup(key AddressKey) (string, error) {
	k := uint32(key)
	// First entry whose lower bound is above key; the candidate precedes it.
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].lower > k
	})
	if i == 0 {
		return "", ErrNoRangeMatch
	}

	candidate := idx.entries[i-1]
	if k < candidate.lower || k > candidate.upper {
		return "", ErrNoRangeMatch
	}
	return candidate.country, nil
}

func (idx *RangeIndex) Len() int {
	return len(idx.entries)
}

// Fingerprint identifies the table contents. Two indexes built from the same
// ranges in the same order share a fingerprint.
func (idx *RangeIndex) Fingerprint() string {
	return idx.fingerprint
}

// Ranges returns the sorted table with positions renumbered in sorted order.
func (idx *RangeIndex) Ranges() []model.GeoRange {
	out := make([]model.GeoRange, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = model.GeoRange{Position: int64(i), Lower: e.lower, Upper: e.upper, Country: e.country}
	}
	return out
}
