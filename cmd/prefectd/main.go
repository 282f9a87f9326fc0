package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rsundqvist/prefect/internal/admission"
	"github.com/rsundqvist/prefect/internal/logging"
	"github.com/rsundqvist/prefect/internal/scheduler"
	"github.com/rsundqvist/prefect/internal/secrets"
	"github.com/rsundqvist/prefect/internal/store"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	switch args[0] {
	case "apply":
		if len(args) < 2 {
			return fmt.Errorf("usage: prefectd apply <manifest>")
		}
		return applyManifest(cfg, logger, args[1], true)
	case "validate":
		if len(args) < 2 {
			return fmt.Errorf("usage: prefectd validate <manifest>")
		}
		return applyManifest(cfg, logger, args[1], false)
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	case "version":
		fmt.Println("prefectd", version)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func applyManifest(cfg Config, logger *slog.Logger, path string, persist bool) error {
	manifest, err := loadManifest(path)
	if err != nil {
		return err
	}

	admitter := admission.NewAdmitter(admission.Config{}, logger)
	ap := &Applier{admitter: admitter, cfg: cfg, logger: logger}

	if persist {
		if err := os.MkdirAll(prefectDir(), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		s, err := store.NewLibSQLStore("file:" + cfg.DBPath)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Migrate(context.Background()); err != nil {
			return err
		}
		ap.store = s

		if cfg.VaultKey != "" {
			key, err := secrets.KeyFromBase64(cfg.VaultKey)
			if err != nil {
				return err
			}
			vault, err := secrets.NewAESVault(secrets.VaultConfig{MasterKey: key})
			if err != nil {
				return err
			}
			ap.docs = secrets.NewSealedDocuments(vault, s)
		}
	}

	if err := ap.Apply(context.Background(), manifest); err != nil {
		return err
	}
	if persist {
		logger.Info("manifest applied", slog.String("path", path))
	} else {
		logger.Info("manifest valid", slog.String("path", path))
	}
	return nil
}

// serve runs the scheduled-run provisioning loop until ctx is cancelled.
func serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	s, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		return err
	}

	admitter := admission.NewAdmitter(admission.Config{}, logger)
	sched := scheduler.NewScheduler(s, admitter, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	logger.Info("serving", slog.String("db_path", cfg.DBPath))

	<-ctx.Done()
	return sched.Stop()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(handler))
}

func usage() {
	fmt.Println(`prefectd - orchestration admission server

Usage:
  prefectd apply <manifest>     validate and persist manifest resources
  prefectd validate <manifest>  validate manifest resources without persisting
  prefectd serve                provision scheduled runs until interrupted
  prefectd version              print version`)
}
