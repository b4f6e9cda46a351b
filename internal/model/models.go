package model

// Unresolved marks a transaction whose address could not be mapped to a country.
const Unresolved = "unresolved"

// GeoRange is one row of the IP-to-country table. Bounds are inclusive.
type GeoRange struct {
	Position int64  `db:"position"`
	Lower    uint32 `db:"lower_bound_ip_address"`
	Upper    uint32 `db:"upper_bound_ip_address"`
	Country  string `db:"country"`
}

// TransactionRecord is a loaded dataset row. Columns are kept as raw strings;
// the geo pipeline only reads ip_address and writes ResolvedCountry.
type TransactionRecord struct {
	Fields          map[string]string
	ResolvedCountry string
}

func (r TransactionRecord) IPAddress() string {
	return r.Fields["ip_address"]
}

type IPResponse struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
}

type Error struct {
	Message string `json:"message"`
}

// ErrorResponse is the inference gateway error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
