package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voltline/j1939-console/internal/metrics"
	"github.com/voltline/j1939-console/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the console HTTP server",
	Long: `Starts the console backend: the REST API, the server-rendered console pages,
websocket menu sessions, /healthz and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		closer := setupLogging(cfg, "server")
		defer closer.Close()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		m := metrics.New()
		svc, err := server.NewServices(cfg, database, m, nil)
		if err != nil {
			return err
		}
		srv := server.New(cfg.Server, database, m)
		srv.Mount(svc)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("j1939c server starting",
			"port", cfg.Server.Port,
			"database", database.Path(),
			"auth_disabled", cfg.Auth.Disabled,
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			slog.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
