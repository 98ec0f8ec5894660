package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/LiveClass/internal/adapters/http"
	"github.com/dkeye/LiveClass/internal/adapters/postgres"
	"github.com/dkeye/LiveClass/internal/adapters/rtc"
	wssignal "github.com/dkeye/LiveClass/internal/adapters/signal"
	"github.com/dkeye/LiveClass/internal/app"
	"github.com/dkeye/LiveClass/internal/app/orch"
	"github.com/dkeye/LiveClass/internal/config"
	"github.com/dkeye/LiveClass/internal/core"
)

const shutdownReason = "server shutting down"

var rootCmd = &cobra.Command{
	Use:           "liveclass",
	Short:         "Signaling coordinator for live classes",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().Int("port", 8080, "HTTP listen port")
	rootCmd.Flags().String("mode", "release", "gin mode: debug, release or test")
	rootCmd.Flags().String("config", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
}

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("liveclass failed")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	ice, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		return err
	}

	schedules, closeSchedules, err := openSchedules(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSchedules()

	rooms := app.NewRoomManager(app.SimplePolicy{KickAfter: cfg.Rooms.KickAfterDrops})
	o := &orch.Orchestrator{
		Registry:               app.NewRegistry(),
		Rooms:                  rooms,
		Schedules:              schedules,
		Authz:                  app.ScheduleAuthorizer{},
		AllowAdhoc:             cfg.Rooms.AllowAdhoc,
		DefaultMaxParticipants: cfg.Rooms.DefaultMaxParticipants,
	}

	srv := newServer(cfg, o, ice)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.http.Addr).Msg("LiveClass server started")
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		rooms.RunJanitor(gctx, cfg.Rooms.SweepInterval, cfg.Rooms.IdleGrace)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.drain(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

type server struct {
	http       *http.Server
	orch       *orch.Orchestrator
	signal     *wssignal.SignalWSController
	closeConns context.CancelFunc
}

// newServer gives signaling sockets their own context so a shutdown
// signal does not tear them down before rooms announce room-closed.
func newServer(cfg *config.Config, o *orch.Orchestrator, ice []webrtc.ICEServer) *server {
	connCtx, closeConns := context.WithCancel(context.Background())
	handler, ctl := router.SetupRouter(connCtx, cfg, o, ice)
	return &server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		orch:       o,
		signal:     ctl,
		closeConns: closeConns,
	}
}

// drain stops the listener, ends every room while sockets can still carry
// the notice, then releases the remaining sockets and waits for them to
// flush.
func (s *server) drain(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.orch.Shutdown(ctx, shutdownReason)
	s.closeConns()
	if werr := s.signal.Wait(ctx); err == nil {
		err = werr
	}
	return err
}

// openSchedules prefers the scheduling database and falls back to the
// sessions listed in config.
func openSchedules(ctx context.Context, cfg *config.Config) (core.ScheduleStore, func(), error) {
	if cfg.Database.DSN != "" {
		store, err := postgres.NewScheduleStore(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	specs, err := cfg.RoomSpecs()
	if err != nil {
		return nil, nil, err
	}
	log.Info().Int("schedules", len(specs)).Msg("using configured schedules")
	return app.NewMemorySchedules(specs...), func() {}, nil
}
