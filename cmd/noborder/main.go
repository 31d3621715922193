// Command noborder runs the no-border data core: the local store, its
// schema migrations, and the sync daemon against the remote store.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Dantrux22/no-border-app-sub000/internal/blob"
	"github.com/Dantrux22/no-border-app-sub000/internal/config"
	"github.com/Dantrux22/no-border-app-sub000/internal/identity"
	"github.com/Dantrux22/no-border-app-sub000/internal/remote"
	"github.com/Dantrux22/no-border-app-sub000/internal/store"
	"github.com/Dantrux22/no-border-app-sub000/internal/syncengine"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "noborder",
	Short: "no-border local-first data core",
	Long: `Manage the no-border on-device data core.

The data core keeps a local SQLite database as the source of truth for
social content and continuously reconciles it with the remote replicated
store: local posts flow up on a timer, remote posts flow down through a
live subscription.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the sync daemon until interrupted",
	Long: `Run the bidirectional sync daemon.

The daemon:
  1. Applies schema migrations to the local database
  2. Pushes unsynced local posts to the remote store on a timer
  3. Subscribes to the remote posts collection and inserts new records`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger := newLogger(cfg)

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open local store: %w", err)
		}
		defer st.Close()

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		rc := remote.NewRedis(rdb, logger)

		idp := identity.NewService(st, &blob.LocalDir{Base: cfg.BlobDir}, logger)

		engine, err := syncengine.New(st, rc, idp, &syncengine.Config{
			UpsyncInterval:  cfg.UpsyncInterval,
			UpsyncBatchSize: cfg.UpsyncBatchSize,
			Logger:          logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := engine.Start(ctx); err != nil {
			return err
		}
		defer engine.Stop()

		logger.Printf("Sync daemon running, press Ctrl-C to stop")
		<-ctx.Done()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open local store: %w", err)
		}
		defer st.Close()

		if err := st.EnsureSchema(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("Schema up to date: %s\n", cfg.DBPath)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the upsync backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open local store: %w", err)
		}
		defer st.Close()

		if err := st.EnsureSchema(cmd.Context()); err != nil {
			return err
		}

		n, err := st.CountUnsynced(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Unsynced posts: %d\n", n)
		return nil
	},
}

// newLogger returns a stderr logger, or a rotating file logger when
// log_file is configured.
func newLogger(cfg *config.Config) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
	}
	return log.New(w, "[noborder] ", log.LstdFlags)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.AddCommand(syncCmd, migrateCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
