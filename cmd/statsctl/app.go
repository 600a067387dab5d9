package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	statsclient "github.com/MrEthical07/statsclient"
	"github.com/MrEthical07/statsclient/internal/logging"
	promexport "github.com/MrEthical07/statsclient/metrics/export/prometheus"
	"github.com/MrEthical07/statsclient/render"
	"github.com/MrEthical07/statsclient/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	storeFile   = "file"
	storeRedis  = "redis"
	storeMemory = "memory"
)

// exitError carries the process status for an outcome already reported to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// app is everything one command invocation needs.
type app struct {
	cfg     *Config
	client  *statsclient.Client
	out     *render.Renderer
	closers []func() error
}

func openApp(ctx context.Context, cfg *Config, stdout, stderr io.Writer) (_ *app, err error) {
	a := &app{cfg: cfg, out: render.New(stdout)}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	logger := logging.New(stderr, cfg.logLevel, cfg.logFormat)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		if errors.Is(err, session.ErrBlobCorrupt) {
			logger.Warn("discarding unreadable session", "error", err)
			_ = store.Clear(ctx)
		} else {
			return nil, fmt.Errorf("load session: %w", err)
		}
	}

	b := statsclient.New().
		WithConfig(clientConfig(cfg)).
		WithStore(store).
		WithLogger(logger)

	if cfg.eventLog != "" {
		f, err := os.OpenFile(cfg.eventLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		b.WithEventSink(statsclient.NewJSONWriterSink(f))
	}

	client, err := b.Build()
	if err != nil {
		return nil, err
	}
	a.client = client
	return a, nil
}

func clientConfig(cfg *Config) statsclient.Config {
	conf := statsclient.DefaultConfig()
	conf.BaseURL = cfg.baseURL
	conf.HTTP.Timeout = cfg.timeout
	conf.RateLimit.Enabled = cfg.rateLimit > 0
	if cfg.rateLimit > 0 {
		conf.RateLimit.RequestsPerSecond = cfg.rateLimit
		conf.RateLimit.Burst = 1
	}
	conf.UserAgent = "statsctl/" + releaseVersion
	return conf
}

func (a *app) openStore(ctx context.Context) (*session.Store, error) {
	switch a.cfg.store {
	case storeMemory:
		return session.NewMemoryStore(), nil
	case storeRedis:
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.redisAddr})
		a.closers = append(a.closers, rdb.Close)
		return session.NewStore(session.NewRedisStore(rdb, a.cfg.redisPrefix, a.cfg.profile, a.cfg.sessionTTL)), nil
	default:
		path, err := a.cfg.sessionPath()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		var pass []byte
		if a.cfg.passphrase != "" {
			pass = []byte(a.cfg.passphrase)
		}
		fs, err := session.NewFileStore(path, pass)
		if err != nil {
			return nil, err
		}
		return session.NewStore(fs), nil
	}
}

// close flushes events, writes the metrics file and releases resources.
func (a *app) close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.client != nil {
		a.client.Close()
		if a.cfg.metricsFile != "" {
			errs = append(errs, a.writeMetrics())
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *app) writeMetrics() error {
	reg := prometheus.NewRegistry()
	if _, err := promexport.Register(reg, a.client); err != nil {
		return err
	}
	if err := promexport.WriteTextfile(a.cfg.metricsFile, reg); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

// finish prints the notice for err and converts it into an exitError.
func (a *app) finish(err error) error {
	if err == nil {
		return nil
	}
	a.out.Notice(err)
	return &exitError{code: render.ExitCode(err), err: err}
}
