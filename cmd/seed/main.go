// Package main seeds a portal database with demo residents, chat history and a poll,
// then prints a token per resident for local testing.
package main

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civic-connect/portal/config"
	"github.com/civic-connect/portal/internal/auth"
	"github.com/civic-connect/portal/internal/feed"
	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/internal/polls"
	"github.com/civic-connect/portal/pkg/database"
)

type userStore interface {
	Upsert(ctx context.Context, u *models.User) error
}

var chatThreads = [][2]string{
	{"Has anyone noticed the new park lights?", "Yes, they look great at night!"},
	{"When is the next community meet?", "I think it's next Saturday."},
	{"Please drive slowly near the school.", "Agreed, safety first."},
	{"Found a set of keys near the gate.", "Please post in Lost & Found tab."},
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	ctx := context.Background()

	var (
		users     userStore
		feedStore feed.Store
		pollStore polls.Store
	)
	if cfg.Database.Driver == config.DriverSQLite {
		db, err := database.NewSQLite(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		if err := database.MigrateSQLite(ctx, db); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		users, feedStore, pollStore = auth.NewSQLiteRepository(db), feed.NewSQLiteRepository(db), polls.NewSQLiteRepository(db)
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		users, feedStore, pollStore = auth.NewRepository(pool), feed.NewRepository(pool), polls.NewRepository(pool)
	}

	admin := &models.User{Username: "admin", DisplayName: "Ward Office", Role: models.RoleAdmin}
	if err := users.Upsert(ctx, admin); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	residents := make([]*models.User, 0, 5)
	for i := 1; i <= 5; i++ {
		u := &models.User{Username: fmt.Sprintf("citizen%d", i), DisplayName: fmt.Sprintf("Citizen %d", i), Role: models.RoleResident}
		if err := users.Upsert(ctx, u); err != nil {
			logger.Fatal("seed resident", zap.String("username", u.Username), zap.Error(err))
		}
		residents = append(residents, u)
	}

	feedService := feed.NewService(feedStore, nil, feed.Options{}, logger)
	for _, thread := range chatThreads {
		for _, text := range thread {
			author := residents[rand.Intn(len(residents))]
			if _, err := feedService.Append(ctx, author.ID, text); err != nil {
				logger.Fatal("seed message", zap.Error(err))
			}
		}
	}

	pollService := polls.NewService(pollStore, logger)
	poll, err := pollService.Create(ctx, admin.ID, "What should be the priority for next month's budget?",
		[]string{"Road Repair", "Park Renovation", "Streetlights", "Water Supply"})
	if err != nil {
		logger.Fatal("seed poll", zap.Error(err))
	}
	for _, u := range residents {
		opt := poll.Options[rand.Intn(len(poll.Options))]
		if _, err := pollService.CastVote(ctx, poll.ID, opt.ID, u.ID); err != nil {
			logger.Fatal("seed vote", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	for _, u := range append([]*models.User{admin}, residents...) {
		token, err := jwtService.Generate(u)
		if err != nil {
			logger.Fatal("token", zap.Error(err))
		}
		fmt.Printf("%-10s %s\n", u.Username, token)
	}
	logger.Info("seed complete", zap.Int64("poll_id", poll.ID), zap.Int("residents", len(residents)))
}

func newLogger() *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := zcfg.Build()
	return logger
}
