package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fraudservice/internal/model"
)

const rangesKey = "georanges"

type RedisRepository struct {
	client    *redis.Client
	logger    *zap.Logger
	lookupTTL time.Duration
}

func NewRedisRepository(client *redis.Client, lookupTTL time.Duration, logger *zap.Logger) *RedisRepository {
	return &RedisRepository{
		client:    client,
		logger:    logger,
		lookupTTL: lookupTTL,
	}
}

// Lookup results are namespaced by the range table fingerprint so a reload
// never serves answers computed against an older table.
func lookupKey(snapshot, ip string) string {
	return "geo:" + snapshot + ":" + ip
}

func (r *RedisRepository) SetCountry(ctx context.Context, snapshot, ip, country string) error {
	err := r.client.Set(ctx, lookupKey(snapshot, ip), country, r.lookupTTL).Err()
	if err != nil {
		r.logger.Error("failed to set country in cache",
			zap.String("ip", ip),
			zap.Error(err))
	}
	return err
}

func (r *RedisRepository) GetCountry(ctx context.Context, snapshot, ip string) (string, error) {
	country, err := r.client.Get(ctx, lookupKey(snapshot, ip)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		r.logger.Error("failed to get country from cache",
			zap.String("ip", ip),
			zap.Error(err))
		return "", err
	}
	return country, nil
}

// formatRangeMember encodes a range as a sorted-set member. The zero-padded
// position keeps members unique and restores the table order.
func formatRangeMember(rg model.GeoRange) string {
	return fmt.Sprintf("%012d|%d|%s", rg.Position, rg.Upper, rg.Country)
}

func parseRangeMember(member string, score float64) (model.GeoRange, error) {
	parts := strings.SplitN(member, "|", 3)
	if len(parts) != 3 {
		return model.GeoRange{}, fmt.Errorf("invalid range format %q", member)
	}
	position, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return model.GeoRange{}, fmt.Errorf("invalid range position %q: %w", parts[0], err)
	}
	upper, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return model.GeoRange{}, fmt.Errorf("invalid range upper bound %q: %w", parts[1], err)
	}
	return model.GeoRange{
		Position: position,
		Lower:    uint32(score),
		Upper:    uint32(upper),
		Country:  parts[2],
	}, nil
}

// CacheGeoRanges publishes the table as a sorted set scored by lower bound,
// replacing any previous snapshot atomically.
func (r *RedisRepository) CacheGeoRanges(ctx context.Context, ranges []model.GeoRange) error {
	pipe := r.client.TxPipeline()

	pipe.Del(ctx, rangesKey)

	members := make([]redis.Z, 0, len(ranges))
	for i, rg := range ranges {
		rg.Position = int64(i)
		members = append(members, redis.Z{
			Score:  float64(rg.Lower),
			Member: formatRangeMember(rg),
		})
	}
	if len(members) > 0 {
		pipe.ZAdd(ctx, rangesKey, members...)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// LoadCachedRanges restores the last published table in its original order.
func (r *RedisRepository) LoadCachedRanges(ctx context.Context) ([]model.GeoRange, error) {
	entries, err := r.client.ZRangeWithScores(ctx, rangesKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	ranges := make([]model.GeoRange, 0, len(entries))
	for _, z := range entries {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member type %T", z.Member)
		}
		rg, err := parseRangeMember(member, z.Score)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, rg)
	}

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Position < ranges[j].Position
	})
	return ranges, nil
}
