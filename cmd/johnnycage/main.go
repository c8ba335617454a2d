package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	discordnotify "github.com/ericfisherdev/johnnycage/internal/adapter/driven/discord"
	"github.com/ericfisherdev/johnnycage/internal/adapter/driven/overseerr"
	"github.com/ericfisherdev/johnnycage/internal/adapter/driven/plex"
	sqliteadapter "github.com/ericfisherdev/johnnycage/internal/adapter/driven/sqlite"
	discordbot "github.com/ericfisherdev/johnnycage/internal/adapter/driving/discord"
	httphandler "github.com/ericfisherdev/johnnycage/internal/adapter/driving/http"
	"github.com/ericfisherdev/johnnycage/internal/application"
	"github.com/ericfisherdev/johnnycage/internal/config"
	"github.com/ericfisherdev/johnnycage/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing env vars or a bad CRYPTO_KEY).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"overseerr_url", cfg.OverseerrURL,
		"plex_base_url", cfg.PlexBaseURL,
		"command_prefix", cfg.CommandPrefix,
		"link_poll_interval", cfg.LinkPollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Credential store; refuse to start if stored tokens do not decrypt.
	credentialStore, err := sqliteadapter.NewCredentialRepo(db, cfg.EncryptionKey)
	if err != nil {
		return err
	}
	if err := credentialStore.VerifyKey(ctx); err != nil {
		return fmt.Errorf("verify CRYPTO_KEY against stored tokens: %w", err)
	}

	// 6. Wire outbound adapters.
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	plexClient := plex.NewClient(plex.DefaultClientConfig(cfg.PlexBaseURL, cfg.PlexClientID), nil, slog.Default())
	catalog := overseerr.NewClient(cfg.OverseerrURL, cfg.OverseerrAPIKey, slog.Default())

	session, err := discordbot.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	notifier := discordnotify.NewNotifier(session, slog.Default())

	// 7. Application services.
	linkSvc := application.NewLinkService(plexClient, notifier, credentialStore, application.LinkConfig{
		PollInterval:    cfg.LinkPollInterval,
		DefaultTTL:      cfg.LinkDefaultTTL,
		MaxPollFailures: cfg.LinkMaxPollFailures,
		LinkURL:         cfg.PlexLinkURL,
	}, application.WithMetrics(metrics), application.WithLogger(slog.Default()))
	mediaSvc := application.NewMediaService(catalog, credentialStore, cfg.SearchResultLimit, slog.Default())

	// 8. Driving adapters.
	bot := discordbot.NewBot(session, linkSvc, mediaSvc, cfg.CommandPrefix, metrics, slog.Default())

	apiHandler := httphandler.NewHandler(db, linkSvc, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, promhttp.Handler(), slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := bot.Start(gctx); err != nil {
			return err
		}
		slog.Info("johnnycage started", "listen_addr", cfg.ListenAddr)
		<-gctx.Done()
		return nil
	})

	// 9. Wait for shutdown signal (or a failed component), then drain.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		if err := bot.Stop(); err != nil {
			slog.Error("discord shutdown error", "error", err)
		}
		linkSvc.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
