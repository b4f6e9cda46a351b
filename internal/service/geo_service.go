package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fraudservice/internal/config"
	"fraudservice/internal/geo"
	"fraudservice/internal/metrics"
	"fraudservice/internal/model"
)

// ErrNotReady is returned before the first range snapshot has been built.
var ErrNotReady = errors.New("geo ranges not loaded")

type Repository interface {
	ReplaceGeoRanges(ctx context.Context, ranges []model.GeoRange) error
	LoadGeoRanges(ctx context.Context) ([]model.GeoRange, error)
	GetRangesCount(ctx context.Context) (int64, error)
}

type Cache interface {
	SetCountry(ctx context.Context, snapshot, ip, country string) error
	GetCountry(ctx context.Context, snapshot, ip string) (string, error)
	CacheGeoRanges(ctx context.Context, ranges []model.GeoRange) error
	LoadCachedRanges(ctx context.Context) ([]model.GeoRange, error)
}

// RangeLoader reads a range table from a file.
type RangeLoader interface {
	LoadGeoRanges(path string) ([]model.GeoRange, error)
}

type GeoService struct {
	repo      Repository
	cache     Cache
	loader    RangeLoader
	rirSvc    *RIRService
	config    *config.Config
	logger    *zap.Logger
	index     atomic.Pointer[geo.RangeIndex]
	updateMux sync.Mutex
}

func NewGeoService(
	repo Repository,
	cache Cache,
	loader RangeLoader,
	rirSvc *RIRService,
	config *config.Config,
	logger *zap.Logger,
) *GeoService {
	return &GeoService{
		repo:   repo,
		cache:  cache,
		loader: loader,
		rirSvc: rirSvc,
		config: config,
		logger: logger,
	}
}

// Start seeds the store when it is empty, builds the first snapshot and
// schedules periodic reloads until ctx is cancelled.
func (s *GeoService) Start(ctx context.Context) error {
	exists, err := s.checkDataExists(ctx)
	if err != nil {
		return fmt.Errorf("checking data existence: %w", err)
	}

	if !exists {
		s.logger.Info("No geo ranges found in database, performing initial load")
		if err := s.UpdateGeoRanges(ctx); err != nil {
			return fmt.Errorf("initial geo ranges update failed: %w", err)
		}
	} else {
		s.logger.Info("Existing geo ranges found in database, skipping initial load")
	}

	if err := s.Reload(ctx); err != nil {
		return fmt.Errorf("building geo snapshot: %w", err)
	}

	ticker := time.NewTicker(s.config.GeoRefreshInterval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				if err := s.refresh(ctx); err != nil {
					s.logger.Error("scheduled geo ranges refresh failed", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

func (s *GeoService) refresh(ctx context.Context) error {
	if s.config.FetchRIR && s.config.GeoTablePath == "" {
		if err := s.UpdateGeoRanges(ctx); err != nil {
			return err
		}
	}
	return s.Reload(ctx)
}

// UpdateGeoRanges replaces the stored table from the first available source:
// the configured CSV file, the RIR delegated files, or the last snapshot
// published to the cache.
func (s *GeoService) UpdateGeoRanges(ctx context.Context) error {
	s.updateMux.Lock()
	defer s.updateMux.Unlock()

	ranges, source, err := s.fetchRanges(ctx)
	if err != nil {
		return err
	}
	if len(ranges) == 0 {
		return fmt.Errorf("no geo ranges available from %s", source)
	}

	startTime := time.Now()
	if err := s.repo.ReplaceGeoRanges(ctx, ranges); err != nil {
		s.logger.Error("Failed to save geo ranges",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
		return err
	}

	s.logger.Info("Successfully saved geo ranges",
		zap.String("source", source),
		zap.Int("total_ranges", len(ranges)),
		zap.Duration("duration", time.Since(startTime)))

	return nil
}

func (s *GeoService) fetchRanges(ctx context.Context) ([]model.GeoRange, string, error) {
	if s.config.GeoTablePath != "" {
		ranges, err := s.loader.LoadGeoRanges(s.config.GeoTablePath)
		if err != nil {
			return nil, "", fmt.Errorf("loading geo table: %w", err)
		}
		return ranges, "csv", nil
	}

	if s.config.FetchRIR {
		var allRanges []model.GeoRange
		var errs []error
		for _, rir := range s.config.RIRs {
			ranges, stats, err := s.rirSvc.FetchGeoRanges(ctx, rir.URL)
			if err != nil {
				s.logger.Error("failed to fetch geo ranges",
					zap.String("rir", rir.Name),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", rir.Name, err))
				continue
			}
			allRanges = append(allRanges, ranges...)

			s.logger.Info("Fetched geo ranges",
				zap.String("rir", rir.Name),
				zap.Int("ipv4_ranges", stats.IPv4Count),
				zap.Int("ipv6_skipped", stats.IPv6Skipped),
				zap.Int("parse_errors", stats.ParseErrors))
		}
		if len(allRanges) == 0 {
			return nil, "", fmt.Errorf("no geo ranges fetched: %w", errors.Join(errs...))
		}
		return allRanges, "rir", nil
	}

	ranges, err := s.cache.LoadCachedRanges(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("restoring cached geo ranges: %w", err)
	}
	return ranges, "cache", nil
}

// Reload builds a new snapshot from the store and swaps it in. Lookups that
// already hold the previous snapshot finish against it.
func (s *GeoService) Reload(ctx context.Context) error {
	ranges, err := s.repo.LoadGeoRanges(ctx)
	if err != nil {
		return err
	}
	if len(ranges) == 0 {
		return fmt.Errorf("geo range table is empty")
	}

	idx := geo.BuildIndex(ranges)
	s.index.Store(idx)
	metrics.GeoRanges.Set(float64(idx.Len()))

	if err := s.cache.CacheGeoRanges(ctx, idx.Ranges()); err != nil {
		// The in-memory snapshot is authoritative; the cache copy only
		// seeds future cold starts.
		s.logger.Warn("Failed to publish geo ranges to cache", zap.Error(err))
	}

	s.logger.Info("Geo snapshot active",
		zap.Int("ranges", idx.Len()),
		zap.String("fingerprint", idx.Fingerprint()))

	return nil
}

// Snapshot returns the active index, or nil before the first load.
func (s *GeoService) Snapshot() *geo.RangeIndex {
	return s.index.Load()
}

// LookupIP resolves a single address. An address outside every range yields
// a response with Country set to model.Unresolved.
func (s *GeoService) LookupIP(ctx context.Context, ipStr string) (*model.IPResponse, error) {
	idx := s.index.Load()
	if idx == nil {
		return nil, ErrNotReady
	}

	key, err := geo.Encode(ipStr)
	if err != nil {
		metrics.GeoLookupsTotal.WithLabelValues("invalid_address").Inc()
		return nil, err
	}
	canonical := geo.Decode(key)

	if country, err := s.cache.GetCountry(ctx, idx.Fingerprint(), canonical); err == nil && country != "" {
		metrics.GeoLookupsTotal.WithLabelValues("cached").Inc()
		return &model.IPResponse{
			IP:      ipStr,
			Country: country,
		}, nil
	}

	country, err := idx.Lookup(key)
	if errors.Is(err, geo.ErrNoRangeMatch) {
		metrics.GeoLookupsTotal.WithLabelValues("no_match").Inc()
		// Don't cache unknown results
		return &model.IPResponse{
			IP:      ipStr,
			Country: model.Unresolved,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.GeoLookupsTotal.WithLabelValues("resolved").Inc()
	if err := s.cache.SetCountry(ctx, idx.Fingerprint(), canonical, country); err != nil {
		s.logger.Warn("failed to cache IP lookup result",
			zap.String("ip", ipStr),
			zap.Error(err))
	}

	return &model.IPResponse{
		IP:      ipStr,
		Country: country,
	}, nil
}

// ResolveTransactions attaches a country to every record against the active
// snapshot. Order and count are preserved.
func (s *GeoService) ResolveTransactions(records []model.TransactionRecord) ([]model.TransactionRecord, geo.ResolveStats, error) {
	idx := s.index.Load()
	if idx == nil {
		return nil, geo.ResolveStats{}, ErrNotReady
	}

	startTime := time.Now()
	out, stats := geo.Resolve(records, idx)

	s.logger.Info("Resolved transactions",
		zap.Int("total", stats.Total),
		zap.Int("resolved", stats.Resolved),
		zap.Int("invalid_address", stats.InvalidAddress),
		zap.Int("no_match", stats.NoMatch),
		zap.Duration("duration", time.Since(startTime)))

	return out, stats, nil
}

func (s *GeoService) checkDataExists(ctx context.Context) (bool, error) {
	count, err := s.repo.GetRangesCount(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
