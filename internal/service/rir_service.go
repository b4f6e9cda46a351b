package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fraudservice/internal/geo"
	"fraudservice/internal/model"
)

// RIRService builds geo ranges from Regional Internet Registry delegated
// statistics files. Only IPv4 allocations are kept.
type RIRService struct {
	logger     *zap.Logger
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

func NewRIRService(logger *zap.Logger) *RIRService {
	return &RIRService{
		logger: logger,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:       100,
				IdleConnTimeout:    90 * time.Second,
				DisableCompression: true,
				MaxConnsPerHost:    100,
				ForceAttemptHTTP2:  true,
			},
		},
		maxRetries: 3,
		retryDelay: 5 * time.Second,
	}
}

type RIRStats struct {
	IPv4Count    int
	IPv6Skipped  int
	SkippedCount int
	ParseErrors  int
}

func (s *RIRService) FetchGeoRanges(ctx context.Context, url string) ([]model.GeoRange, RIRStats, error) {
	var lastErr error
	var stats RIRStats

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * s.retryDelay
			select {
			case <-ctx.Done():
				return nil, stats, ctx.Err()
			case <-time.After(delay):
			}
		}

		ranges, stats, err := s.fetch(ctx, url)
		if err == nil {
			return ranges, stats, nil
		}

		lastErr = err
		s.logger.Warn("Failed to fetch RIR data, retrying...",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, stats, fmt.Errorf("failed after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *RIRService) fetch(ctx context.Context, url string) ([]model.GeoRange, RIRStats, error) {
	startTime := time.Now()

	s.logger.Info("Starting RIR data fetch", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, RIRStats{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "fraudservice/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, RIRStats{}, fmt.Errorf("fetching RIR data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, RIRStats{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	ranges, stats, err := s.parse(resp.Body)
	if err != nil {
		return nil, stats, err
	}

	s.logger.Info("Finished parsing RIR data",
		zap.String("url", url),
		zap.Int("ipv4_ranges", stats.IPv4Count),
		zap.Int("ipv6_skipped", stats.IPv6Skipped),
		zap.Int("skipped_lines", stats.SkippedCount),
		zap.Int("parse_errors", stats.ParseErrors),
		zap.Duration("total_time", time.Since(startTime)))

	return ranges, stats, nil
}

func (s *RIRService) parse(r io.Reader) ([]model.GeoRange, RIRStats, error) {
	var stats RIRStats
	var ranges []model.GeoRange

	scanner := bufio.NewScanner(r)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "#") || len(line) == 0 {
			stats.SkippedCount++
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 7 {
			stats.SkippedCount++
			continue
		}

		if parts[1] == "*" || parts[1] == "" || (parts[6] != "allocated" && parts[6] != "assigned") {
			stats.SkippedCount++
			continue
		}

		switch parts[2] {
		case "ipv4":
		case "ipv6":
			stats.IPv6Skipped++
			continue
		default:
			stats.SkippedCount++
			continue
		}

		geoRange, err := parseDelegation(parts)
		if err != nil {
			stats.ParseErrors++
			s.logger.Debug("failed to parse RIR delegation",
				zap.String("line", line),
				zap.Error(err))
			continue
		}

		geoRange.Position = int64(len(ranges))
		ranges = append(ranges, geoRange)
		stats.IPv4Count++
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("reading RIR data: %w", err)
	}

	return ranges, stats, nil
}

// parseDelegation turns "registry|cc|ipv4|start|count|date|status" into an
// inclusive range. The count need not be a power of two.
func parseDelegation(parts []string) (model.GeoRange, error) {
	start, err := geo.Encode(parts[3])
	if err != nil {
		return model.GeoRange{}, err
	}
	count, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		return model.GeoRange{}, err
	}
	if count == 0 || uint64(start)+count-1 > math.MaxUint32 {
		return model.GeoRange{}, fmt.Errorf("invalid address count %d for %s", count, parts[3])
	}

	return model.GeoRange{
		Lower:   uint32(start),
		Upper:   uint32(uint64(start) + count - 1),
		Country: parts[1],
	}, nil
}
