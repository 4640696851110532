package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ActivityBot/logger"
	activitymodel "ActivityBot/module/activity/model"
)

const leaderboardCacheTTL = 30 * time.Second

func leaderboardCacheKey(guildID string, limit int64) string {
	return fmt.Sprintf("activity:top:%s:%d", guildID, limit)
}

// Leaderboard 返回 guild 内 xp 前 limit 名。结果在 redis 里缓存一小段时间；
// 缓存任何一步失败都降级成直接查库，只打 warn。
func (e *Engine) Leaderboard(ctx context.Context, guildID string, limit int64) ([]activitymodel.ActivityRecord, error) {
	key := leaderboardCacheKey(guildID, limit)

	if e.cache != nil {
		raw, err := e.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var rows []activitymodel.ActivityRecord
			if jsonErr := json.Unmarshal(raw, &rows); jsonErr == nil {
				return rows, nil
			}
			// 缓存内容损坏，当 miss 处理
		case err != redis.Nil:
			logger.Warn("leaderboard cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	rows, err := e.store.TopByXP(ctx, guildID, limit)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if raw, jsonErr := json.Marshal(rows); jsonErr == nil {
			if err := e.cache.Set(ctx, key, raw, leaderboardCacheTTL).Err(); err != nil {
				logger.Warn("leaderboard cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return rows, nil
}
