// Package loader reads the geolocation table and transaction datasets from CSV.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"fraudservice/internal/geo"
	"fraudservice/internal/model"
)

const (
	ColumnLower   = "lower_bound_ip_address"
	ColumnUpper   = "upper_bound_ip_address"
	ColumnCountry = "country"

	ColumnResolvedCountry = "resolved_country"
)

type ParseStats struct {
	Rows    int
	Skipped int
}

// Dataset is a header-keyed table of transaction rows in file order.
type Dataset struct {
	Header  []string
	Records []model.TransactionRecord
}

type CSVLoader struct {
	logger *zap.Logger
}

func NewCSVLoader(logger *zap.Logger) *CSVLoader {
	return &CSVLoader{logger: logger}
}

func (l *CSVLoader) LoadGeoRanges(path string) ([]model.GeoRange, error) {
	startTime := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geo table: %w", err)
	}
	defer f.Close()

	ranges, stats, err := ParseGeoRanges(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.logger.Info("Loaded geo ranges",
		zap.String("path", path),
		zap.Int("ranges", stats.Rows),
		zap.Int("skipped_rows", stats.Skipped),
		zap.Duration("load_time", time.Since(startTime)))

	return ranges, nil
}

func (l *CSVLoader) LoadTransactions(path string) (*Dataset, error) {
	startTime := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	ds, err := ParseTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.logger.Info("Loaded dataset",
		zap.String("path", path),
		zap.Int("rows", len(ds.Records)),
		zap.Int("columns", len(ds.Header)),
		zap.Duration("load_time", time.Since(startTime)))

	return ds, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	return cr
}

func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

// ParseGeoRanges reads a table with lower/upper bound and country columns.
// Bounds may be dotted quads or integer-valued numbers such as "16777216.0".
// Rows with an empty country are skipped; any other malformed row is an error.
func ParseGeoRanges(r io.Reader) ([]model.GeoRange, ParseStats, error) {
	var stats ParseStats

	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, stats, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range []string{ColumnLower, ColumnUpper, ColumnCountry} {
		if _, ok := cols[name]; !ok {
			return nil, stats, fmt.Errorf("missing column %q", name)
		}
	}

	var ranges []model.GeoRange
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading geo table: %w", err)
		}
		line, _ := cr.FieldPos(0)

		country := strings.TrimSpace(row[cols[ColumnCountry]])
		if country == "" {
			stats.Skipped++
			continue
		}

		lower, err := geo.Encode(row[cols[ColumnLower]])
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: lower bound: %w", line, err)
		}
		upper, err := geo.Encode(row[cols[ColumnUpper]])
		if err != nil {
			return nil, stats, fmt.Errorf("line %d: upper bound: %w", line, err)
		}

		ranges = append(ranges, model.GeoRange{
			Position: int64(len(ranges)),
			Lower:    uint32(lower),
			Upper:    uint32(upper),
			Country:  country,
		})
		stats.Rows++
	}

	return ranges, stats, nil
}

// ParseTransactions reads a header-keyed dataset. Values are kept as raw text.
func ParseTransactions(r io.Reader) (*Dataset, error) {
	cr := newReader(r)
	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Header: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading dataset: %w", err)
		}

		fields := make(map[string]string, len(header))
		for i, name := range header {
			fields[name] = row[i]
		}
		ds.Records = append(ds.Records, model.TransactionRecord{Fields: fields})
	}

	return ds, nil
}

// WriteResolved writes the dataset columns followed by resolved_country, in
// record order.
func WriteResolved(w io.Writer, header []string, records []model.TransactionRecord) error {
	cw := csv.NewWriter(w)

	out := append(append([]string(nil), header...), ColumnResolvedCountry)
	if err := cw.Write(out); err != nil {
		return err
	}

	row := make([]string, len(out))
	for _, rec := range records {
		for i, name := range header {
			row[i] = rec.Fields[name]
		}
		row[len(header)] = rec.ResolvedCountry
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
