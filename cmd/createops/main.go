// Command createops creates an operations user able to upload files.
// It writes directly to the configured user store and is meant to be run
// against the same backend as the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KARTIKEY-KATYAL/EZ/adapters/mailer"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/store"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/tokenizer"
	"github.com/KARTIKEY-KATYAL/EZ/internal/config"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
	"github.com/KARTIKEY-KATYAL/EZ/service"
)

func main() {
	configPath := flag.String("config", "ez.yaml", "path to the configuration file")
	username := flag.String("username", "", "ops username")
	email := flag.String("email", "", "ops email address")
	password := flag.String("password", "", "ops password")
	flag.Parse()

	if *username == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: createops -username NAME -email ADDR -password PASS [-config FILE]")
		os.Exit(2)
	}

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	var users ports.UserStore
	if cfg.LedgerBackend == "redis" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid redis url", zap.Error(err))
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to reach redis", zap.Error(err))
		}
		users = store.NewRedisUserStore(client)
	} else {
		log.Fatal("createops requires a persistent user store, set ledger_backend to redis")
	}

	clock := ports.SystemClock{}
	tk := tokenizer.NewJWTTokenizer([]byte(cfg.AccessTokenSecret), cfg.AccessTokenTTL, clock)
	auth := service.NewAuthService(users, tk, mailer.NewTestMailer(), clock, log, cfg.BaseURL)

	user, err := auth.CreateOpsUser(ctx, *username, *email, *password)
	if err != nil {
		log.Fatal("failed to create ops user", zap.Error(err))
	}

	log.Info("ops user created",
		zap.String("id", user.ID),
		zap.String("username", user.Username))
}
