package geo

import "errors"

var (
	// ErrInvalidAddress is returned for text that is not an IPv4 address.
	ErrInvalidAddress = errors.New("invalid IP address")
	// ErrNoRangeMatch is returned when an address falls outside every range.
	ErrNoRangeMatch = errors.New("no range contains address")
)
