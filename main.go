package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	mongoutil "ActivityBot/data/database/mgo/mongoutil"
	"ActivityBot/global/config"
	"ActivityBot/logger"
	"ActivityBot/module/activity/service"
	activitystore "ActivityBot/module/activity/store"
	"ActivityBot/module/bot"
	"ActivityBot/service/mgo"
	redisstore "ActivityBot/service/storage/redis"
)

const mongoReadyTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", zap.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("invalid LOG_LEVEL, keeping info", zap.String("level", cfg.LogLevel))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mongo：异步连接，启动前等首次就绪
	manager := mgo.NewManager()
	manager.StartAsync(ctx, &mongoutil.Config{
		Uri:      cfg.MongoURI,
		Database: cfg.MongoDB,
	})

	waitCtx, waitCancel := context.WithTimeout(ctx, mongoReadyTimeout)
	err = manager.WaitReady(waitCtx)
	waitCancel()
	if err != nil {
		logger.Error("mongo not ready", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("connected to mongo", zap.String("database", cfg.MongoDB))

	// Redis 可选，只用于排行榜缓存；连不上就降级
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn("redis unavailable, leaderboard cache disabled", zap.Error(err))
			cache = nil
		}
	}

	engine := service.NewEngine(activitystore.New(manager), cache)
	defer engine.Close()

	b, err := bot.New(cfg, engine)
	if err != nil {
		logger.Error("create bot failed", zap.Error(err))
		os.Exit(1)
	}
	if err := b.Open(); err != nil {
		logger.Error("open bot failed", zap.Error(err))
		os.Exit(1)
	}
	defer b.Close()

	logger.Info("bot is running, press ctrl+c to exit")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	logger.Info("shutting down")
}
