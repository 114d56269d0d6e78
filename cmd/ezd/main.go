// Command ezd runs the EZ file sharing daemon.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KARTIKEY-KATYAL/EZ/adapters/blob"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/events"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/ledger"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/mailer"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/sealer"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/store"
	"github.com/KARTIKEY-KATYAL/EZ/adapters/tokenizer"
	"github.com/KARTIKEY-KATYAL/EZ/internal/config"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
	"github.com/KARTIKEY-KATYAL/EZ/service"
	transport "github.com/KARTIKEY-KATYAL/EZ/transport/http"
)

const sweepInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "ez.yaml", "path to the configuration file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("daemon exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := cfg.SealKey()
	if err != nil {
		return err
	}
	seal, err := sealer.NewAEADSealer(key)
	if err != nil {
		return err
	}

	clock := ports.SystemClock{}

	var (
		grantLedger ports.GrantLedger
		users       ports.UserStore
		files       ports.FileStore
		publisher   ports.EventPublisher = events.NopPublisher{}
	)

	switch cfg.LedgerBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}

		grantLedger = ledger.NewRedisLedger(client)
		users = store.NewRedisUserStore(client)
		files = store.NewRedisFileStore(client)

		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: client,
		}, watermill.NopLogger{})
		if err != nil {
			return err
		}
		defer pub.Close()
		publisher = events.NewWatermillPublisher(pub)

	case "badger":
		db, err := badger.Open(badger.DefaultOptions(cfg.BadgerDir).WithLogger(nil))
		if err != nil {
			return err
		}
		defer db.Close()

		grantLedger = ledger.NewBadgerLedger(db)
		users = store.NewMemoryUserStore()
		files = store.NewMemoryFileStore()

	default:
		grantLedger = ledger.NewMemoryLedger()
		users = store.NewMemoryUserStore()
		files = store.NewMemoryFileStore()
	}

	blobs, err := blob.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	var mail ports.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn("smtp host not configured, verification mail disabled")
		mail = mailer.NewTestMailer()
	}

	tk := tokenizer.NewJWTTokenizer([]byte(cfg.AccessTokenSecret), cfg.AccessTokenTTL, clock)

	authService := service.NewAuthService(users, tk, mail, clock, log, cfg.BaseURL)

	fileService := service.NewFileService(files, blobs, clock, log)
	if cfg.MaxFileSize > 0 || len(cfg.AllowedExtensions) > 0 {
		maxSize := cfg.MaxFileSize
		if maxSize == 0 {
			maxSize = service.DefaultMaxFileSize
		}
		exts := cfg.AllowedExtensions
		if len(exts) == 0 {
			exts = service.DefaultAllowedExtensions
		}
		fileService = fileService.WithLimits(maxSize, exts)
	}

	grantService := service.NewGrantService(
		seal, grantLedger,
		service.NewFileAuthorizer(users, files),
		clock, publisher, log,
	).WithGrantTTL(cfg.GrantTTL)

	go sweepLoop(ctx, grantService, log)

	router := transport.SetupRouter(authService, fileService, grantService, log, cfg.BaseURL)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// sweepLoop periodically removes expired ledger entries.
func sweepLoop(ctx context.Context, grants *service.GrantService, log *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := grants.Sweep(ctx); err != nil {
				log.Warn("ledger sweep failed", zap.Error(err))
			}
		}
	}
}
