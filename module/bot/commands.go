package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"ActivityBot/logger"
	"ActivityBot/module/activity/service"
)

const embedColor = 0xff2600

const leaderboardSize = 10

type slashCommand struct {
	data *discordgo.ApplicationCommand
	run  func(b *Bot, s *discordgo.Session, i *discordgo.InteractionCreate)
}

// commandRegistry 是启动时组装的静态注册表，取代运行期扫目录加载模块。
func commandRegistry() map[string]*slashCommand {
	return map[string]*slashCommand{
		"activity": {
			data: &discordgo.ApplicationCommand{Name: "activity", Description: "Shows user activity"},
			run:  runActivity,
		},
		"top": {
			data: &discordgo.ApplicationCommand{Name: "top", Description: "Shows the guild activity leaderboard"},
			run:  runTop,
		},
		"ping": {
			data: &discordgo.ApplicationCommand{Name: "ping", Description: "Replies with pong!"},
			run:  runPing,
		},
		"server": {
			data: &discordgo.ApplicationCommand{Name: "server", Description: "Replies with server info!"},
			run:  runServer,
		},
		"user": {
			data: &discordgo.ApplicationCommand{Name: "user", Description: "Replies with user info!"},
			run:  runUser,
		},
		"help": {
			data: &discordgo.ApplicationCommand{Name: "help", Description: "Shows help"},
			run:  runHelp,
		},
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func replyContent(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		logger.Error("interaction reply failed", zap.Error(err))
	}
}

func replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
	if err != nil {
		logger.Error("interaction reply failed", zap.Error(err))
	}
}

func formatVoiceTime(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}

func runActivity(b *Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if i.GuildID == "" || user == nil {
		replyContent(s, i, "This command only works inside a server")
		return
	}

	ov, err := b.engine.Overview(context.Background(), i.GuildID, user.ID)
	if err != nil {
		logger.Error("activity overview failed", zap.Error(err))
		replyContent(s, i, "Activity lookup failed, please try again later")
		return
	}
	if ov == nil {
		replyContent(s, i, "No activity records are available for this user")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Activity Overview",
		Description: fmt.Sprintf("For user **%s**", ov.UserName),
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Messages send", Value: strconv.FormatInt(ov.SendMessages, 10), Inline: true},
			{Name: "Current level", Value: strconv.Itoa(ov.CurrentLevel), Inline: true},
			{Name: "Level progress", Value: fmt.Sprintf("%.0f%%", ov.LevelFill*100), Inline: false},
			{Name: "Next level XP", Value: fmt.Sprintf("%.0f", ov.NextLevelXP), Inline: true},
			{Name: "Voice time", Value: formatVoiceTime(ov.VoiceSeconds), Inline: true},
		},
	}
	replyEmbed(s, i, embed)
}

func runTop(b *Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		replyContent(s, i, "This command only works inside a server")
		return
	}

	rows, err := b.engine.Leaderboard(context.Background(), i.GuildID, leaderboardSize)
	if err != nil {
		logger.Error("leaderboard failed", zap.Error(err))
		replyContent(s, i, "Leaderboard lookup failed, please try again later")
		return
	}
	if len(rows) == 0 {
		replyContent(s, i, "No activity records are available for this server")
		return
	}

	description := ""
	for n, row := range rows {
		level := service.ComputeLevelInfo(float64(row.XP)).CurrentLevel
		description += fmt.Sprintf("%d. **%s** — %d XP (level %d)\n", n+1, row.UserName, row.XP, level)
	}

	replyEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Activity Leaderboard",
		Description: description,
		Color:       embedColor,
	})
}

func runPing(_ *Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	replyContent(s, i, "Pong!")
}

func runServer(_ *Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		replyContent(s, i, "This command only works inside a server")
		return
	}

	guild, err := s.State.Guild(i.GuildID)
	if err != nil {
		guild, err = s.Guild(i.GuildID)
	}
	if err != nil {
		logger.Error("guild lookup failed", zap.String("guildID", i.GuildID), zap.Error(err))
		replyContent(s, i, "Server lookup failed")
		return
	}
	replyContent(s, i, fmt.Sprintf("Server name: %s\nTotal members: %d", guild.Name, guild.MemberCount))
}

func runUser(_ *Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	replyContent(s, i, fmt.Sprintf("Your tag: %s\nYour id: %s", user.String(), user.ID))
}

func runHelp(b *Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]*discordgo.MessageEmbedField, 0, len(names))
	for _, name := range names {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "`/" + name + "`",
			Value:  b.commands[name].data.Description,
			Inline: true,
		})
	}

	replyEmbed(s, i, &discordgo.MessageEmbed{
		Title:  "Help",
		Color:  embedColor,
		Fields: fields,
	})
}
