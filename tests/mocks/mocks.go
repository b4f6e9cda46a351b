package mocks

import (
	"context"

	"fraudservice/internal/model"
)

type MockRepository struct {
	ReplaceGeoRangesFunc func(ctx context.Context, ranges []model.GeoRange) error
	LoadGeoRangesFunc    func(ctx context.Context) ([]model.GeoRange, error)
	GetRangesCountFunc   func(ctx context.Context) (int64, error)
}

func (m *MockRepository) ReplaceGeoRanges(ctx context.Context, ranges []model.GeoRange) error {
	return m.ReplaceGeoRangesFunc(ctx, ranges)
}

func (m *MockRepository) LoadGeoRanges(ctx context.Context) ([]model.GeoRange, error) {
	return m.LoadGeoRangesFunc(ctx)
}

func (m *MockRepository) GetRangesCount(ctx context.Context) (int64, error) {
	return m.GetRangesCountFunc(ctx)
}

type MockCache struct {
	SetCountryFunc       func(ctx context.Context, snapshot, ip, country string) error
	GetCountryFunc       func(ctx context.Context, snapshot, ip string) (string, error)
	CacheGeoRangesFunc   func(ctx context.Context, ranges []model.GeoRange) error
	LoadCachedRangesFunc func(ctx context.Context) ([]model.GeoRange, error)
}

func (m *MockCache) SetCountry(ctx context.Context, snapshot, ip, country string) error {
	return m.SetCountryFunc(ctx, snapshot, ip, country)
}

func (m *MockCache) GetCountry(ctx context.Context, snapshot, ip string) (string, error) {
	return m.GetCountryFunc(ctx, snapshot, ip)
}

func (m *MockCache) CacheGeoRanges(ctx context.Context, ranges []model.GeoRange) error {
	return m.CacheGeoRangesFunc(ctx, ranges)
}

func (m *MockCache) LoadCachedRanges(ctx context.Context) ([]model.GeoRange, error) {
	return m.LoadCachedRangesFunc(ctx)
}

type MockRangeLoader struct {
	LoadGeoRangesFunc func(path string) ([]model.GeoRange, error)
}

func (m *MockRangeLoader) LoadGeoRanges(path string) ([]model.GeoRange, error) {
	return m.LoadGeoRangesFunc(path)
}
