package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"fraudservice/internal/config"
	"fraudservice/internal/geo"
	"fraudservice/internal/loader"
	"fraudservice/internal/model"
)

const (
	EcommerceClassColumn  = "class"
	CreditCardClassColumn = "Class"
)

type DatasetLoader interface {
	LoadTransactions(path string) (*loader.Dataset, error)
}

type TransactionResolver interface {
	ResolveTransactions(records []model.TransactionRecord) ([]model.TransactionRecord, geo.ResolveStats, error)
}

// SummaryService computes the dataset overview served to the dashboard.
type SummaryService struct {
	loader   DatasetLoader
	resolver TransactionResolver
	config   *config.Config
	logger   *zap.Logger
	summary  atomic.Pointer[model.Summary]
}

func NewSummaryService(loader DatasetLoader, resolver TransactionResolver, config *config.Config, logger *zap.Logger) *SummaryService {
	return &SummaryService{
		loader:   loader,
		resolver: resolver,
		config:   config,
		logger:   logger,
	}
}

// Load reads the configured datasets and replaces the current summary.
// Datasets without a configured path are left out.
func (s *SummaryService) Load(ctx context.Context) error {
	if s.config.EcommerceDataPath == "" && s.config.CreditCardDataPath == "" {
		s.logger.Info("No datasets configured, summary disabled")
		return nil
	}

	startTime := time.Now()
	summary := &model.Summary{}

	if path := s.config.EcommerceDataPath; path != "" {
		ds, err := s.loader.LoadTransactions(path)
		if err != nil {
			return fmt.Errorf("loading e-commerce dataset: %w", err)
		}
		resolved, stats, err := s.resolver.ResolveTransactions(ds.Records)
		if err != nil {
			return fmt.Errorf("resolving e-commerce dataset: %w", err)
		}
		summary.Ecommerce = SummarizeEcommerce(resolved, stats)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if path := s.config.CreditCardDataPath; path != "" {
		ds, err := s.loader.LoadTransactions(path)
		if err != nil {
			return fmt.Errorf("loading credit card dataset: %w", err)
		}
		cc := Summarize(ds.Records, CreditCardClassColumn)
		summary.CreditCard = &cc
	}

	s.summary.Store(summary)
	s.logger.Info("Dataset summary ready", zap.Duration("duration", time.Since(startTime)))

	return nil
}

// Summary returns the last computed summary and whether one exists.
func (s *SummaryService) Summary() (*model.Summary, bool) {
	summary := s.summary.Load()
	return summary, summary != nil
}

// Summarize counts rows and fraud cases. A row is fraud when its class
// column holds a non-zero number.
func Summarize(records []model.TransactionRecord, classColumn string) model.DatasetSummary {
	var fraud int
	for _, rec := range records {
		if isFraud(rec.Fields[classColumn]) {
			fraud++
		}
	}
	return newDatasetSummary(len(records), fraud)
}

func SummarizeEcommerce(records []model.TransactionRecord, stats geo.ResolveStats) *model.EcommerceSummary {
	byCountry := make(map[string]int)
	var fraud int
	for _, rec := range records {
		if !isFraud(rec.Fields[EcommerceClassColumn]) {
			continue
		}
		fraud++
		byCountry[rec.ResolvedCountry]++
	}

	return &model.EcommerceSummary{
		DatasetSummary: newDatasetSummary(len(records), fraud),
		Resolved:       stats.Resolved,
		Unresolved:     stats.InvalidAddress + stats.NoMatch,
		FraudByCountry: byCountry,
	}
}

func newDatasetSummary(total, fraud int) model.DatasetSummary {
	var pct float64
	if total > 0 {
		pct = math.Round(float64(fraud)/float64(total)*10000) / 100
	}
	return model.DatasetSummary{
		TotalTransactions: total,
		FraudCases:        fraud,
		FraudPercentage:   pct,
		Display: model.Display{
			TotalTransactions: humanize.Comma(int64(total)),
			FraudCases:        humanize.Comma(int64(fraud)),
			FraudPercentage:   humanize.CommafWithDigits(pct, 2) + "%",
		},
	}
}

func isFraud(raw string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil && v != 0
}
