package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hoanghai1803/haak/internal/api"
	"github.com/hoanghai1803/haak/internal/api/handlers"
	"github.com/hoanghai1803/haak/internal/auth"
	"github.com/hoanghai1803/haak/internal/config"
	"github.com/hoanghai1803/haak/internal/mail"
	"github.com/hoanghai1803/haak/internal/session"
	"github.com/hoanghai1803/haak/internal/storage"
	"github.com/hoanghai1803/haak/internal/web"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	adminEmail := flag.String("admin", "", "email of an admin to create at startup if missing (overrides [admin] email)")
	flag.Parse()

	// Load configuration (auto-creates default if missing).
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *adminEmail != "" {
		cfg.Admin.Email = *adminEmail
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Server.LogLevel),
	})))

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	kv, err := openKV(ctx, g, cfg.Store)
	if err != nil {
		return err
	}
	store := storage.NewStore(kv)
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("checking store: %w", err)
	}

	if email := cfg.Admin.Email; email != "" {
		if !auth.ValidEmail(email) {
			return fmt.Errorf("invalid admin email %q", email)
		}
		created, err := store.EnsureAdmin(ctx, email)
		if err != nil {
			return fmt.Errorf("creating admin: %w", err)
		}
		if created {
			slog.Info("created admin user", "email", email)
		}
	}

	sender, err := newSender(cfg.Mail)
	if err != nil {
		return err
	}
	composer, err := mail.NewComposer(cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("creating mail composer: %w", err)
	}
	pages, err := web.NewRenderer()
	if err != nil {
		return err
	}

	router := api.NewRouter(handlers.Deps{
		Sessions: session.NewManager(kv, cfg.Session.Secret, session.Options{
			CookieName: cfg.Session.CookieName,
			TTL:        time.Duration(cfg.Session.TTLHours) * time.Hour,
			Secure:     cfg.Server.TLS(),
		}),
		Flow:  auth.NewFlow(store, sender, composer),
		Store: store,
		Pages: pages,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		var err error
		if cfg.Server.TLS() {
			slog.Info("starting server", "addr", "https://"+srv.Addr, "url", cfg.Server.URL)
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			slog.Info("starting server", "addr", "http://"+srv.Addr, "url", cfg.Server.URL)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openKV connects the configured key-value backend. The SQLite backend also
// gets an expiry sweeper running in g.
func openKV(ctx context.Context, g *errgroup.Group, cfg config.StoreConfig) (storage.KV, error) {
	switch cfg.Backend {
	case "redis":
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		if cfg.RedisURL != "" {
			var err error
			if opts, err = redis.ParseURL(cfg.RedisURL); err != nil {
				return nil, fmt.Errorf("parsing redis url: %w", err)
			}
		}
		kv, err := storage.OpenRedis(ctx, opts)
		if err != nil {
			return nil, err
		}
		return kv, nil

	default:
		db, err := storage.OpenDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := storage.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}

		kv := storage.NewSQLiteKV(db)
		interval := time.Duration(cfg.PurgeIntervalMinutes) * time.Minute
		g.Go(func() error {
			return kv.RunPurger(ctx, interval)
		})
		return kv, nil
	}
}

func newSender(cfg config.MailConfig) (mail.Sender, error) {
	switch cfg.Transport {
	case "smtp":
		s, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("creating smtp sender: %w", err)
		}
		return s, nil
	case "sendmail":
		return mail.SendmailSender{Path: cfg.SendmailPath}, nil
	default:
		return mail.LogSender{}, nil
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
