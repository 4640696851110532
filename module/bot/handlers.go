package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"ActivityBot/logger"
	"ActivityBot/module/activity/service"
	"ActivityBot/tools/errs"
)

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	logger.Infof("bot is online as %s", r.User.Username)
}

func (b *Bot) botUserID(s *discordgo.Session) string {
	if s.State != nil && s.State.User != nil {
		return s.State.User.ID
	}
	return ""
}

// onMessageCreate 把平台消息归一化成 MessageEvent 丢给引擎。
// 节流判定在 RecordMessage 里同步完成，存储 I/O 在本协程里等待。
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	ev := service.MessageEvent{
		GuildID:         m.GuildID,
		ChannelID:       m.ChannelID,
		UserID:          m.Author.ID,
		UserName:        m.Author.Username,
		IsOwnMessage:    m.Author.ID == b.botUserID(s),
		IsDirectMessage: m.GuildID == "",
		IsBot:           m.Author.Bot,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("message handler panic", zap.Error(errs.ErrPanic(r)))
		}
	}()
	b.engine.RecordMessage(context.Background(), ev)
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID == b.botUserID(s) {
		return
	}

	userName := v.UserID
	if v.Member != nil && v.Member.User != nil {
		if v.Member.User.Bot {
			return
		}
		userName = v.Member.User.Username
	}

	now := time.Now()
	if v.ChannelID == "" {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("voice handler panic", zap.Error(errs.ErrPanic(r)))
				}
			}()
			b.engine.VoiceLeave(context.Background(), v.GuildID, v.UserID, now)
		}()
		return
	}
	b.engine.VoiceJoin(v.GuildID, v.ChannelID, v.UserID, userName, now)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	cmd, ok := b.commands[name]
	if !ok {
		logger.Warn("unknown command", zap.String("name", name))
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("command handler panic",
					zap.String("name", name),
					zap.Error(errs.ErrPanic(r)))
			}
		}()
		cmd.run(b, s, i)
	}()
}
