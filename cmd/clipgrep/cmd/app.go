package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/clipgrep/clipgrep/internal/config"
	"github.com/clipgrep/clipgrep/internal/encode"
	clierrors "github.com/clipgrep/clipgrep/internal/errors"
	"github.com/clipgrep/clipgrep/internal/logging"
	"github.com/clipgrep/clipgrep/internal/scanner"
	"github.com/clipgrep/clipgrep/internal/store"
)

// app bundles the wired components a command needs. Close releases
// them in reverse order of acquisition.
type app struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	lock    *store.WriterLock
	encoder encode.Encoder
	scanner *scanner.Scanner

	cleanups []func()
}

// Close releases all acquired resources. Safe to call once.
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// loadConfig loads configuration and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if debugMode {
		cfg.Log.Level = "debug"
	}
	if offlineMode {
		cfg.Encoder.Offline = true
	}
	if indexingBatchSize > 0 {
		cfg.Index.BatchSize = indexingBatchSize
	}
	if len(excludeDirs) > 0 {
		cfg.Index.ExcludeDirs = excludeDirs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires config, logging, store, lock, scanner and encoder.
// The store lock is always taken: even read-only commands share the
// single SQLite session, and a concurrent sweep would interleave with
// it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create data directory %s: %w", cfg.DataDir, err)
	}

	logCleanup, err := logging.SetupDefault(cfg.DataDir, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("cannot set up logging: %w", err)
	}
	a.cleanups = append(a.cleanups, logCleanup)

	a.lock = store.NewWriterLock(cfg.DataDir)
	locked, err := a.lock.TryLock()
	if err != nil {
		return nil, clierrors.New(clierrors.ErrCodeIndexLocked,
			fmt.Sprintf("cannot acquire index lock at %s", a.lock.Path()), err)
	}
	if !locked {
		return nil, clierrors.New(clierrors.ErrCodeIndexLocked,
			"another clipgrep instance is using the index", nil)
	}
	a.cleanups = append(a.cleanups, func() { _ = a.lock.Unlock() })

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	a.store = st
	a.cleanups = append(a.cleanups, func() { _ = st.Close() })

	a.scanner = scanner.New(scanner.Options{
		ExcludeDirs: cfg.Index.ExcludeDirs,
		Extensions:  cfg.Index.Extensions,
	})

	enc, err := newEncoder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.encoder = enc
	a.cleanups = append(a.cleanups, func() { _ = enc.Close() })

	ok = true
	return a, nil
}

// newEncoder builds the configured encoder: the deterministic hash
// encoder in offline mode, otherwise the CLIP service wrapped in the
// query cache.
func newEncoder(ctx context.Context, cfg *config.Config) (encode.Encoder, error) {
	if cfg.Encoder.Offline {
		slog.Debug("using offline hash encoder")
		return encode.NewStaticEncoder(), nil
	}

	svc, err := encode.NewServiceEncoder(ctx, encode.ServiceConfig{
		Endpoint: cfg.Encoder.Endpoint,
		Model:    cfg.Encoder.Model,
		Timeout:  cfg.Encoder.Timeout,
	})
	if err != nil {
		return nil, clierrors.New(clierrors.ErrCodeEncoderUnavailable,
			fmt.Sprintf("encoder service at %s is not available", cfg.Encoder.Endpoint), err)
	}
	return encode.NewCachedEncoder(svc, cfg.Encoder.CacheSize), nil
}
