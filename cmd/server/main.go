package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levitt-app/levitt/internal/config"
	"github.com/levitt-app/levitt/internal/database"
	"github.com/levitt-app/levitt/internal/federated"
	"github.com/levitt-app/levitt/internal/handler"
	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/mailer"
	"github.com/levitt-app/levitt/internal/middleware"
	"github.com/levitt-app/levitt/internal/queue"
	"github.com/levitt-app/levitt/internal/repository"
	"github.com/levitt-app/levitt/internal/router"
	"github.com/levitt-app/levitt/internal/service"
	"github.com/levitt-app/levitt/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSON("prod").Error(context.Background(), "config", "err", err)
		os.Exit(1)
	}
	log := logging.NewJSON(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn(ctx, "redis unavailable, running without shared cache")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	var verifierOpts []federated.Option
	if rdb != nil {
		verifierOpts = append(verifierOpts, federated.WithCertCache(federated.NewRedisCertCache(rdb)))
	}
	verifier := federated.NewGoogleVerifier(cfg.Google.CertsURL, cfg.Google.ClientIDs, cfg.Google.CertsTTL, log, verifierOpts...)
	if len(cfg.Google.ClientIDs) == 0 {
		log.Warn(ctx, "GOOGLE_CLIENT_IDS is empty, google sign-in will reject every token")
	}

	sender, err := newSender(cfg.Mail, log)
	if err != nil {
		return err
	}
	deliver := queue.MailHandler(sender, cfg.Mail.ResetLinkBase)

	var publisher service.ResetPublisher = queue.Inline(deliver)
	if cfg.AMQP.Enabled {
		publisher = queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, log)
		consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, deliver, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "mail consumer stopped", "err", err)
			}
		}()
	}

	tokens := utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTokenTTL)
	resets := service.NewResetTokenManager(store, cfg.Auth.ResetTokenTTL, cfg.Auth.BcryptCost, publisher, log)
	linker := service.NewLinker(store, log)
	auth := handler.NewAuthHandler(store, tokens, resets, verifier, linker, cfg.Auth.BcryptCost, log)

	e := router.New(router.Deps{
		Auth:    auth,
		Tokens:  tokens,
		Health:  store,
		Metrics: middleware.NewMetrics(),
		Redis:   rdb,
		Cache:   cfg.Cache,
		Log:     log,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info(ctx, "listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	err = e.Shutdown(shutdownCtx)
	resets.Wait()
	return err
}

func openStore(ctx context.Context, cfg config.Config, log logging.Logger) (repository.AccountStore, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn(ctx, "using in-memory account store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return repository.NewAccountRepo(db), func() { _ = db.Close() }, nil
}

func newSender(cfg config.MailConfig, log logging.Logger) (mailer.Sender, error) {
	if cfg.PostmarkServerToken == "" {
		log.Warn(context.Background(), "POSTMARK_SERVER_TOKEN not set, reset mail is logged instead of sent")
		return mailer.NewLogSender(log), nil
	}
	return mailer.NewPostmarkSender(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.Sender)
}
