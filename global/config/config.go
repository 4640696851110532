package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ActivityBot/tools/errs"
)

// AppConfig carries everything the process needs at startup. Values come from
// the environment, optionally seeded from a local .env file.
type AppConfig struct {
	Token   string // bot token
	AppID   string // application id used for command registration
	GuildID string // optional; empty registers commands globally

	MongoURI string
	MongoDB  string

	// optional; empty disables the leaderboard cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
}

func Load() (*AppConfig, error) {
	// .env is a convenience for local runs; absence is not an error
	_ = godotenv.Load()

	cfg := &AppConfig{
		Token:         os.Getenv("DISCORD_TOKEN"),
		AppID:         os.Getenv("APP_ID"),
		GuildID:       os.Getenv("GUILD_ID"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDB:       os.Getenv("MONGO_DB"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errs.WrapMsg(err, "REDIS_DB is not a number", "value", v)
		}
		cfg.RedisDB = n
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	required := map[string]string{
		"DISCORD_TOKEN": cfg.Token,
		"APP_ID":        cfg.AppID,
		"MONGO_URI":     cfg.MongoURI,
		"MONGO_DB":      cfg.MongoDB,
	}
	for name, v := range required {
		if v == "" {
			return nil, errs.NewCodeError(errs.ConfigError, name+" is not specified in environment").Wrap()
		}
	}

	return cfg, nil
}
