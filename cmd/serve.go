package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lmor152/omnibooker-v2/internal/auth"
	"github.com/lmor152/omnibooker-v2/internal/booking"
	"github.com/lmor152/omnibooker-v2/internal/config"
	"github.com/lmor152/omnibooker-v2/internal/crypto"
	"github.com/lmor152/omnibooker-v2/internal/db"
	"github.com/lmor152/omnibooker-v2/internal/logging"
	"github.com/lmor152/omnibooker-v2/internal/metrics"
	"github.com/lmor152/omnibooker-v2/internal/migrate"
	"github.com/lmor152/omnibooker-v2/internal/providers/better"
	"github.com/lmor152/omnibooker-v2/internal/providers/clubspark"
	"github.com/lmor152/omnibooker-v2/internal/store"
	"github.com/lmor152/omnibooker-v2/internal/web"
	"github.com/lmor152/omnibooker-v2/internal/worker"
)

// app bundles the wired components shared by the serve and worker commands.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	db      *db.DB
	store   *store.Store
	service *booking.Service
	worker  *worker.Worker
}

func newApp(ctx context.Context, migrateUp bool) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	metrics.Init()

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}

	aead, err := crypto.New(cfg.CredentialsKey)
	if err != nil {
		d.Close()
		return nil, err
	}
	st := store.New(d, aead)

	registry := booking.NewRegistry()
	if err := registry.Register(better.Type, better.NewHandler(log).Book); err != nil {
		d.Close()
		return nil, err
	}
	if err := registry.Register(clubspark.Type, clubspark.NewHandler(log).Book); err != nil {
		d.Close()
		return nil, err
	}

	calc := booking.NewCalculator(time.LoadLocation, log)
	exec := booking.NewExecutor(st, registry, time.LoadLocation, time.Now, log)
	svc := booking.NewService(st, calc, exec, cfg.QueueDepth, time.Now, log)
	w := worker.New(st, exec, svc, cfg.PollInterval, cfg.BatchSize, time.Now, log)

	return &app{cfg: cfg, log: log, db: d, store: st, service: svc, worker: w}, nil
}

func (a *app) close() { a.db.Close() }

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API and the booking worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer a.close()

			go func() { _ = a.worker.Run(ctx) }()

			sessions := auth.NewSessions(a.cfg.CookieHashKey, a.cfg.CookieBlockKey)
			server := web.NewServer(a.store, a.service, sessions, a.log)
			a.log.Info().Str("addr", a.cfg.ListenAddr).Msg("api listening")
			return web.Start(ctx, a.cfg.ListenAddr, server.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
