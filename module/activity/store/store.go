package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"ActivityBot/logger"
	activitymodel "ActivityBot/module/activity/model"
	"ActivityBot/tools/errs"
)

// MessageXPReward 每条有效消息奖励的经验值
const MessageXPReward = 10

var errMongoNotReady = errs.NewCodeError(errs.DatabaseError, "mongo not ready")

// DBProvider hands out the current database handle. The mongo manager
// satisfies it; after a reconnect the next call sees the fresh client.
type DBProvider interface {
	DB() (*mongo.Database, bool)
}

type Store struct {
	dbp DBProvider
}

func New(dbp DBProvider) *Store {
	return &Store{dbp: dbp}
}

func (s *Store) coll() (*mongo.Collection, error) {
	db, ok := s.dbp.DB()
	if !ok {
		return nil, errMongoNotReady.Wrap()
	}
	return db.Collection(activitymodel.ActivityRecord{}.GetTableName()), nil
}

// IncrementMessage 原子地 send_messages += 1, xp += 10；不存在则创建。
// 单次 FindOneAndUpdate 往返，两个并发调用绝不丢更新。
func (s *Store) IncrementMessage(ctx context.Context, guildID, userID, userName string) (*activitymodel.ActivityRecord, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}

	id := activitymodel.ActivityID(guildID, userID)
	filter := bson.M{activitymodel.ActivityFieldID: id}
	update := bson.M{
		"$inc": bson.M{
			activitymodel.ActivityFieldSendMessages: int64(1),
			activitymodel.ActivityFieldXP:           int64(MessageXPReward),
		},
		"$set": bson.M{activitymodel.ActivityFieldUserName: userName},
		"$setOnInsert": bson.M{
			activitymodel.ActivityFieldGuildID:      guildID,
			activitymodel.ActivityFieldUserID:       userID,
			activitymodel.ActivityFieldVoiceSeconds: int64(0),
		},
	}

	var before activitymodel.ActivityRecord
	err = c.FindOneAndUpdate(
		ctx, filter, update,
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.Before),
	).Decode(&before)
	if err == mongo.ErrNoDocuments {
		// 首条消息，文档刚被插入
		return &activitymodel.ActivityRecord{
			ID:           id,
			GuildID:      guildID,
			UserID:       userID,
			UserName:     userName,
			SendMessages: 1,
			XP:           MessageXPReward,
		}, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "activity upsert failed", "id", id)
	}

	if before.UserName != "" && before.UserName != userName {
		logger.Info("activity user name changed",
			zap.String("id", id),
			zap.String("old", before.UserName),
			zap.String("new", userName))
	}

	after := before
	after.UserName = userName
	after.SendMessages++
	after.XP += MessageXPReward
	return &after, nil
}

// AddVoiceSeconds 原子累加语音时长；不存在则创建。
func (s *Store) AddVoiceSeconds(ctx context.Context, guildID, userID, userName string, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	c, err := s.coll()
	if err != nil {
		return err
	}

	id := activitymodel.ActivityID(guildID, userID)
	update := bson.M{
		"$inc": bson.M{activitymodel.ActivityFieldVoiceSeconds: seconds},
		"$set": bson.M{activitymodel.ActivityFieldUserName: userName},
		"$setOnInsert": bson.M{
			activitymodel.ActivityFieldGuildID:      guildID,
			activitymodel.ActivityFieldUserID:       userID,
			activitymodel.ActivityFieldSendMessages: int64(0),
			activitymodel.ActivityFieldXP:           int64(0),
		},
	}

	_, err = c.UpdateOne(ctx,
		bson.M{activitymodel.ActivityFieldID: id},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errs.WrapMsg(err, "voice seconds update failed", "id", id)
	}
	return nil
}

// Find 按组合键查询；不存在返回 (nil, nil)，与连接错误严格区分。
func (s *Store) Find(ctx context.Context, guildID, userID string) (*activitymodel.ActivityRecord, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}

	id := activitymodel.ActivityID(guildID, userID)
	var rec activitymodel.ActivityRecord
	err = c.FindOne(ctx, bson.M{activitymodel.ActivityFieldID: id}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "activity query failed", "id", id)
	}
	return &rec, nil
}

// TopByXP 返回 guild 内按 xp 降序的前 limit 条。
func (s *Store) TopByXP(ctx context.Context, guildID string, limit int64) ([]activitymodel.ActivityRecord, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}

	cur, err := c.Find(ctx,
		bson.M{activitymodel.ActivityFieldGuildID: guildID},
		options.Find().
			SetSort(bson.D{{Key: activitymodel.ActivityFieldXP, Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "activity top query failed", "guildID", guildID)
	}

	var rows []activitymodel.ActivityRecord
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.WrapMsg(err, "activity top decode failed", "guildID", guildID)
	}
	return rows, nil
}
