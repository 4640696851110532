package model

// ActivityRecord 记录一个 (guild, user) 的累计活跃度。
// 主键是 guildID:userID 组合键，保证每对只有一条文档。
type ActivityRecord struct {
	ID           string `bson:"_id"`       // guildID:userID
	GuildID      string `bson:"guild_id"`  // 创建后不变
	UserID       string `bson:"user_id"`   // 创建后不变
	UserName     string `bson:"user_name"` // 展示名，观测到新名字时覆盖
	SendMessages int64  `bson:"send_messages"`
	XP           int64  `bson:"xp"`
	VoiceSeconds int64  `bson:"voice_seconds"`
}

const (
	ActivityFieldID           = "_id"
	ActivityFieldGuildID      = "guild_id"
	ActivityFieldUserID       = "user_id"
	ActivityFieldUserName     = "user_name"
	ActivityFieldSendMessages = "send_messages"
	ActivityFieldXP           = "xp"
	ActivityFieldVoiceSeconds = "voice_seconds"
)

func (ActivityRecord) GetTableName() string {
	return "activity"
}

// ActivityID builds the composite document key.
func ActivityID(guildID, userID string) string {
	return guildID + ":" + userID
}
