package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fraudservice/internal/config"
	"fraudservice/internal/geo"
	"fraudservice/internal/loader"
	"fraudservice/internal/model"
)

type stubDatasetLoader map[string]*loader.Dataset

func (s stubDatasetLoader) LoadTransactions(path string) (*loader.Dataset, error) {
	ds, ok := s[path]
	if !ok {
		return nil, errors.New("no such dataset")
	}
	return ds, nil
}

func rows(column string, values ...string) []model.TransactionRecord {
	out := make([]model.TransactionRecord, len(values))
	for i, v := range values {
		out[i] = model.TransactionRecord{Fields: map[string]string{column: v}}
	}
	return out
}

func TestSummarize(t *testing.T) {
	s := Summarize(rows("Class", "0", "1", "0", "1.0", "", "x"), CreditCardClassColumn)

	assert.Equal(t, 6, s.TotalTransactions)
	assert.Equal(t, 2, s.FraudCases)
	assert.Equal(t, 33.33, s.FraudPercentage)
	assert.Equal(t, "33.33%", s.Display.FraudPercentage)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, CreditCardClassColumn)

	assert.Zero(t, s.TotalTransactions)
	assert.Zero(t, s.FraudPercentage)
}

func TestSummarize_DisplayUsesThousandsSeparators(t *testing.T) {
	records := rows("Class", make([]string, 12345)...)
	records[0].Fields["Class"] = "1"

	s := Summarize(records, CreditCardClassColumn)

	assert.Equal(t, "12,345", s.Display.TotalTransactions)
	assert.Equal(t, "1", s.Display.FraudCases)
}

func TestSummarizeEcommerce(t *testing.T) {
	records := []model.TransactionRecord{
		{Fields: map[string]string{"class": "1"}, ResolvedCountry: "Japan"},
		{Fields: map[string]string{"class": "1"}, ResolvedCountry: "Japan"},
		{Fields: map[string]string{"class": "1"}, ResolvedCountry: model.Unresolved},
		{Fields: map[string]string{"class": "0"}, ResolvedCountry: "Brazil"},
	}
	stats := geo.ResolveStats{Total: 4, Resolved: 3, InvalidAddress: 0, NoMatch: 1}

	s := SummarizeEcommerce(records, stats)

	assert.Equal(t, 3, s.FraudCases)
	assert.Equal(t, 75.0, s.FraudPercentage)
	assert.Equal(t, 3, s.Resolved)
	assert.Equal(t, 1, s.Unresolved)
	assert.Equal(t, map[string]int{"Japan": 2, model.Unresolved: 1}, s.FraudByCountry)
}

func TestSummaryService_Load(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	repo, cache := newStoreMocks(testRanges)
	geoSvc := newGeoService(repo, cache, nil, &config.Config{})
	require.NoError(t, geoSvc.Reload(context.Background()))

	datasets := stubDatasetLoader{
		"Fraud_Data.csv": {
			Header: []string{"ip_address", "class"},
			Records: []model.TransactionRecord{
				{Fields: map[string]string{"ip_address": "8.8.8.8", "class": "1"}},
				{Fields: map[string]string{"ip_address": "9.9.9.9", "class": "0"}},
			},
		},
		"creditcard.csv": {
			Header:  []string{"Class"},
			Records: rows("Class", "0", "0", "0", "1"),
		},
	}
	cfg := &config.Config{
		EcommerceDataPath:  "Fraud_Data.csv",
		CreditCardDataPath: "creditcard.csv",
	}

	svc := NewSummaryService(datasets, geoSvc, cfg, logger)

	_, ok := svc.Summary()
	assert.False(t, ok)

	require.NoError(t, svc.Load(context.Background()))

	summary, ok := svc.Summary()
	require.True(t, ok)
	require.NotNil(t, summary.Ecommerce)
	require.NotNil(t, summary.CreditCard)

	assert.Equal(t, 50.0, summary.Ecommerce.FraudPercentage)
	assert.Equal(t, map[string]int{"United States": 1}, summary.Ecommerce.FraudByCountry)
	assert.Equal(t, 1, summary.Ecommerce.Unresolved)
	assert.Equal(t, 25.0, summary.CreditCard.FraudPercentage)
}

func TestSummaryService_LoadWithoutDatasets(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	svc := NewSummaryService(stubDatasetLoader{}, nil, &config.Config{}, logger)

	require.NoError(t, svc.Load(context.Background()))

	_, ok := svc.Summary()
	assert.False(t, ok)
}

func TestSummaryService_LoadMissingDataset(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cfg := &config.Config{CreditCardDataPath: "missing.csv"}
	svc := NewSummaryService(stubDatasetLoader{}, nil, cfg, logger)

	assert.Error(t, svc.Load(context.Background()))

	_, ok := svc.Summary()
	assert.False(t, ok)
}
