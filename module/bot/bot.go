package bot

import (
	"sort"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"ActivityBot/global/config"
	"ActivityBot/logger"
	"ActivityBot/module/activity/service"
	"ActivityBot/tools/errs"
)

// Bot 持有网关会话和活跃度引擎；会话在 main 里显式构造注入，不做全局单例。
type Bot struct {
	session *discordgo.Session
	engine  *service.Engine

	appID   string
	guildID string // 空 = 注册全局命令

	commands map[string]*slashCommand
}

func New(cfg *config.AppConfig, engine *service.Engine) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, errs.WrapMsg(err, "create gateway session failed")
	}

	session.ShouldRetryOnRateLimit = true
	session.MaxRestRetries = 3
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session:  session,
		engine:   engine,
		appID:    cfg.AppID,
		guildID:  cfg.GuildID,
		commands: commandRegistry(),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onVoiceStateUpdate)
	session.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Open 建立网关连接并整体覆盖注册 slash 命令。
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return errs.WrapMsg(err, "open gateway connection failed")
	}
	if err := b.registerCommands(); err != nil {
		_ = b.session.Close()
		return err
	}
	return nil
}

func (b *Bot) Close() {
	if err := b.session.Close(); err != nil {
		logger.Warn("close gateway session failed", zap.Error(err))
	}
}

func (b *Bot) registerCommands() error {
	defs := make([]*discordgo.ApplicationCommand, 0, len(b.commands))
	for _, cmd := range b.commands {
		defs = append(defs, cmd.data)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	if _, err := b.session.ApplicationCommandBulkOverwrite(b.appID, b.guildID, defs); err != nil {
		return errs.WrapMsg(err, "register commands failed", "appID", b.appID, "guildID", b.guildID)
	}
	logger.Infof("registered %d slash commands", len(defs))
	return nil
}
