package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ipkv/internal/server"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "ipkv-server",
	Short:         "Serve the endpoint list API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.String("addr", ":8787", "listen address")
	f.String("api-key", "", "shared secret callers must present")
	f.String("store", "sqlite", "store backend: sqlite, redis, memory or none")
	f.String("db-path", "./data/ipkv.db", "SQLite database path")
	f.String("redis-addr", "127.0.0.1:6379", "Redis server address")
	f.String("redis-password", "", "Redis password")
	f.String("log-level", "info", "log level")
	f.String("log-format", "json", "log format: json or console")

	viper.SetEnvPrefix("IPKV")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(f)
}

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	var out io.Writer = os.Stderr
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// openStore returns the configured backend and a close func. "none" binds
// no store at all.
func openStore(log zerolog.Logger) (server.Store, func() error, error) {
	switch kind := viper.GetString("store"); kind {
	case "sqlite":
		dbPath := viper.GetString("db-path")
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, nil, fmt.Errorf("create db dir %s: %w", dir, err)
			}
		}
		db, err := server.OpenDB(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db %s: %w", dbPath, err)
		}
		log.Info().Str("db", dbPath).Msg("using sqlite store")
		return server.NewSQLiteStore(db), db.Close, nil
	case "redis":
		rs := server.NewRedisStore(viper.GetString("redis-addr"), viper.GetString("redis-password"))
		log.Info().Str("redis", viper.GetString("redis-addr")).Msg("using redis store")
		return rs, rs.Close, nil
	case "memory":
		log.Warn().Msg("using in-memory store; lists are lost on restart")
		return server.NewMemoryStore(), func() error { return nil }, nil
	case "none":
		log.Warn().Msg("no store bound; list routes will fail")
		return nil, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := newLogger(viper.GetString("log-level"), viper.GetString("log-format"))
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("closing store")
		}
	}()

	cfg := server.Config{
		APIKey: viper.GetString("api-key"),
		Store:  store,
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("IPKV_API_KEY is not set; protected routes will refuse every request")
	}

	api := server.NewAPI(cfg)
	srv := &http.Server{
		Addr:              viper.GetString("addr"),
		Handler:           api.Handler(log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("ipkv-server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
