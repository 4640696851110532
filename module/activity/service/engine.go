package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ActivityBot/logger"
	activitymodel "ActivityBot/module/activity/model"
	"ActivityBot/tools/errs"
)

// MessageEvent 是网关层喂给引擎的归一化消息事件。
type MessageEvent struct {
	GuildID   string
	ChannelID string
	UserID    string
	UserName  string

	IsOwnMessage    bool
	IsDirectMessage bool
	IsBot           bool
}

// ActivityStore 是引擎依赖的存储能力；*store.Store 实现它。
type ActivityStore interface {
	IncrementMessage(ctx context.Context, guildID, userID, userName string) (*activitymodel.ActivityRecord, error)
	AddVoiceSeconds(ctx context.Context, guildID, userID, userName string, seconds int64) error
	Find(ctx context.Context, guildID, userID string) (*activitymodel.ActivityRecord, error)
	TopByXP(ctx context.Context, guildID string, limit int64) ([]activitymodel.ActivityRecord, error)
}

// Overview 是展示层要的聚合结果。
type Overview struct {
	UserName     string
	SendMessages int64
	VoiceSeconds int64
	LevelInfo
}

// Engine wires throttle, store and level model together.
type Engine struct {
	store    ActivityStore
	throttle *Throttle
	cache    *redis.Client // nil = leaderboard cache disabled

	voice *voiceSessions
	now   func() time.Time
}

func NewEngine(store ActivityStore, cache *redis.Client) *Engine {
	return &Engine{
		store:    store,
		throttle: NewThrottle(ActivityCooldown),
		cache:    cache,
		voice:    newVoiceSessions(),
		now:      time.Now,
	}
}

// RecordMessage 记录一条合格消息的活跃度。尽力而为：
// 存储失败只打日志，绝不影响消息处理本身。
func (e *Engine) RecordMessage(ctx context.Context, ev MessageEvent) {
	if ev.IsOwnMessage || ev.IsDirectMessage || ev.IsBot {
		return
	}
	if ev.GuildID == "" || ev.UserID == "" {
		// 上游保证过不会出现，真出现就丢弃
		logger.Warn("dropping malformed message event",
			zap.String("guildID", ev.GuildID),
			zap.String("userID", ev.UserID))
		return
	}

	key := ThrottleKey{GuildID: ev.GuildID, ChannelID: ev.ChannelID, UserID: ev.UserID}
	if !e.throttle.Allow(key) {
		logger.Debug("throttling activity update",
			zap.String("guildID", ev.GuildID),
			zap.String("userID", ev.UserID),
			zap.String("channelID", ev.ChannelID))
		return
	}

	rec, err := e.store.IncrementMessage(ctx, ev.GuildID, ev.UserID, ev.UserName)
	if err != nil {
		logger.Error("activity update failed",
			zap.String("guildID", ev.GuildID),
			zap.String("userID", ev.UserID),
			zap.Error(err))
		return
	}
	logger.Debug("activity updated",
		zap.String("id", rec.ID),
		zap.Int64("sendMessages", rec.SendMessages),
		zap.Int64("xp", rec.XP))
}

// Overview 返回展示用活跃度汇总；没有记录时返回 (nil, nil)。
func (e *Engine) Overview(ctx context.Context, guildID, userID string) (*Overview, error) {
	rec, err := e.store.Find(ctx, guildID, userID)
	if err != nil {
		return nil, errs.WrapMsg(err, "activity overview failed", "guildID", guildID, "userID", userID)
	}
	if rec == nil {
		return nil, nil
	}

	return &Overview{
		UserName:     rec.UserName,
		SendMessages: rec.SendMessages,
		VoiceSeconds: rec.VoiceSeconds,
		LevelInfo:    ComputeLevelInfo(float64(rec.XP)),
	}, nil
}

// Close stops the throttle sweeper and flushes open voice sessions.
func (e *Engine) Close() {
	e.throttle.Close()
	e.flushVoiceSessions(context.Background())
}
