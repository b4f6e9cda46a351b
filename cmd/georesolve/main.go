// Command georesolve attaches a country to every row of a transaction CSV
// using an IP range table, and writes the rows back with a resolved_country
// column appended.
//
// Usage:
//
//	georesolve --ranges IpAddress_to_Country.csv --in Fraud_Data.csv --out resolved.csv
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fraudservice/internal/geo"
	"fraudservice/internal/loader"
)

type options struct {
	rangesPath string
	inPath     string
	outPath    string
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	var opts options
	root := &cobra.Command{
		Use:   "georesolve",
		Short: "Resolve transaction IP addresses to countries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, cmd.OutOrStdout(), logger)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&opts.rangesPath, "ranges", "", "IP range table CSV (lower/upper bound, country)")
	root.Flags().StringVar(&opts.inPath, "in", "", "transaction CSV with an ip_address column")
	root.Flags().StringVar(&opts.outPath, "out", "", "output CSV path (default stdout)")
	_ = root.MarkFlagRequired("ranges")
	_ = root.MarkFlagRequired("in")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts options, stdout io.Writer, logger *zap.Logger) error {
	startTime := time.Now()
	csvLoader := loader.NewCSVLoader(logger)

	ranges, err := csvLoader.LoadGeoRanges(opts.rangesPath)
	if err != nil {
		return err
	}
	ds, err := csvLoader.LoadTransactions(opts.inPath)
	if err != nil {
		return err
	}

	idx := geo.BuildIndex(ranges)
	records, stats := geo.Resolve(ds.Records, idx)

	out := stdout
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := loader.WriteResolved(out, ds.Header, records); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	logger.Info("Resolved transactions",
		zap.String("snapshot", idx.Fingerprint()),
		zap.Int("ranges", idx.Len()),
		zap.Int("total", stats.Total),
		zap.Int("resolved", stats.Resolved),
		zap.Int("invalid_address", stats.InvalidAddress),
		zap.Int("no_match", stats.NoMatch),
		zap.Duration("duration", time.Since(startTime)))

	return nil
}
