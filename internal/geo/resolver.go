package geo

import (
	"errors"
	"maps"

	"fraudservice/internal/model"
)

type ResolveStats struct {
	Total          int
	Resolved       int
	InvalidAddress int
	NoMatch        int
}

// Resolve returns a copy of records, in the same order, with ResolvedCountry
// set. Each output record owns a copy of its Fields map. A record with a
// missing or malformed address is kept and marked unresolved; no single
// record can fail the batch.
func Resolve(records []model.TransactionRecord, idx *RangeIndex) ([]model.TransactionRecord, ResolveStats) {
	out := make([]model.TransactionRecord, len(records))
	stats := ResolveStats{Total: len(records)}

	for i, rec := range records {
		out[i] = rec
		out[i].Fields = maps.Clone(rec.Fields)
		country, err := ResolveOne(rec.IPAddress(), idx)
		switch {
		case err == nil:
			stats.Resolved++
			out[i].ResolvedCountry = country
		case errors.Is(err, ErrInvalidAddress):
			stats.InvalidAddress++
			out[i].ResolvedCountry = model.Unresolved
		default:
			stats.NoMatch++
			out[i].ResolvedCountry = model.Unresolved
		}
	}

	return out, stats
}

// ResolveOne encodes ip and looks it up in idx.
func ResolveOne(ip string, idx *RangeIndex) (string, error) {
	key, err := Encode(ip)
	if err != nil {
		return "", err
	}
	if idx == nil {
		return "", ErrNoRangeMatch
	}
	return idx.Lookup(key)
}
