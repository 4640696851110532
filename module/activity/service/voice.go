package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ActivityBot/logger"
)

// 语音会话只存在内存里：加入时间戳，离开时把时长累加进 voice_seconds。

type voiceKey struct {
	GuildID string
	UserID  string
}

type voiceSession struct {
	ChannelID string
	UserName  string
	JoinedAt  time.Time
}

type voiceSessions struct {
	mu       sync.Mutex
	sessions map[voiceKey]voiceSession
}

func newVoiceSessions() *voiceSessions {
	return &voiceSessions{sessions: make(map[voiceKey]voiceSession)}
}

// VoiceJoin 登记一次语音加入；换频道只更新频道，不重置计时。
func (e *Engine) VoiceJoin(guildID, channelID, userID, userName string, at time.Time) {
	key := voiceKey{GuildID: guildID, UserID: userID}

	e.voice.mu.Lock()
	defer e.voice.mu.Unlock()

	if sess, ok := e.voice.sessions[key]; ok {
		sess.ChannelID = channelID
		sess.UserName = userName
		e.voice.sessions[key] = sess
		return
	}
	e.voice.sessions[key] = voiceSession{ChannelID: channelID, UserName: userName, JoinedAt: at}
	logger.Debug("voice session started",
		zap.String("guildID", guildID),
		zap.String("userID", userID),
		zap.String("channelID", channelID))
}

// VoiceLeave 结束语音会话并把累计秒数写进存储。没有会话则忽略
// （进程重启后收到的孤儿 leave 事件属于这种情况）。
func (e *Engine) VoiceLeave(ctx context.Context, guildID, userID string, at time.Time) {
	key := voiceKey{GuildID: guildID, UserID: userID}

	e.voice.mu.Lock()
	sess, ok := e.voice.sessions[key]
	if ok {
		delete(e.voice.sessions, key)
	}
	e.voice.mu.Unlock()

	if !ok {
		return
	}
	e.storeVoiceSeconds(ctx, guildID, userID, sess, at)
}

func (e *Engine) storeVoiceSeconds(ctx context.Context, guildID, userID string, sess voiceSession, at time.Time) {
	seconds := int64(at.Sub(sess.JoinedAt).Seconds())
	if seconds <= 0 {
		return
	}
	if err := e.store.AddVoiceSeconds(ctx, guildID, userID, sess.UserName, seconds); err != nil {
		logger.Error("voice seconds update failed",
			zap.String("guildID", guildID),
			zap.String("userID", userID),
			zap.Error(err))
		return
	}
	logger.Debug("voice seconds added",
		zap.String("guildID", guildID),
		zap.String("userID", userID),
		zap.Int64("seconds", seconds))
}

// flushVoiceSessions 在关停时把仍然在线的会话按当前时间结算。
func (e *Engine) flushVoiceSessions(ctx context.Context) {
	now := e.now()

	e.voice.mu.Lock()
	open := e.voice.sessions
	e.voice.sessions = make(map[voiceKey]voiceSession)
	e.voice.mu.Unlock()

	for key, sess := range open {
		e.storeVoiceSeconds(ctx, key.GuildID, key.UserID, sess, now)
	}
}
