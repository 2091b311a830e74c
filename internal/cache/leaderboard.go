package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Entry is a leaderboard position.
type Entry struct {
	UserID uint
	Points int64
	Rank   int64
}

// PointsBoard mirrors user point totals in a Redis sorted set.
type PointsBoard struct {
	rdb *redis.Client
}

// NewPointsBoard creates a points leaderboard.
func NewPointsBoard(rdb *redis.Client) *PointsBoard {
	return &PointsBoard{rdb: rdb}
}

func member(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// SetPoints records the point total of a user.
func (b *PointsBoard) SetPoints(ctx context.Context, userID uint, points int64) error {
	return b.rdb.ZAdd(ctx, KeyLeaderboard, redis.Z{
		Score:  float64(points),
		Member: member(userID),
	}).Err()
}

// Top returns the count users with the most points.
func (b *PointsBoard) Top(ctx context.Context, count int64) ([]Entry, error) {
	results, err := b.rdb.ZRevRangeWithScores(ctx, KeyLeaderboard, 0, count-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		m, _ := z.Member.(string)
		id, _ := strconv.ParseUint(m, 10, 64)
		entries = append(entries, Entry{
			UserID: uint(id),
			Points: int64(z.Score),
			Rank:   int64(i + 1),
		})
	}
	return entries, nil
}

// Rank returns the 1-based rank of a user, or 0 when the user is not on the board.
func (b *PointsBoard) Rank(ctx context.Context, userID uint) (int64, error) {
	rank, err := b.rdb.ZRevRank(ctx, KeyLeaderboard, member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}

// Size returns the number of users on the board.
func (b *PointsBoard) Size(ctx context.Context) (int64, error) {
	return b.rdb.ZCard(ctx, KeyLeaderboard).Result()
}

// Rebuild replaces the board with the given totals.
func (b *PointsBoard) Rebuild(ctx context.Context, totals map[uint]int64) error {
	pipe := b.rdb.TxPipeline()
	pipe.Del(ctx, KeyLeaderboard)
	if len(totals) > 0 {
		members := make([]redis.Z, 0, len(totals))
		for id, pts := range totals {
			members = append(members, redis.Z{Score: float64(pts), Member: member(id)})
		}
		pipe.ZAdd(ctx, KeyLeaderboard, members...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
