package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lockcode-manager/core/loader"
	"lockcode-manager/core/logger"
	"lockcode-manager/core/middleware/auth"
	"lockcode-manager/core/middleware/rayid"
	"lockcode-manager/feature/credentials"
	"lockcode-manager/feature/directory"
	"lockcode-manager/feature/reconciliation"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation server",
	Long: `Starts the HTTP trigger surface and the scheduler.
The scheduler reaps stuck runs periodically and, when SYNC_RUN_INTERVAL_MINUTES
is set, starts a reconciliation run on that cadence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		logg := a.log

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		mgr := loader.NewManager()
		mgr.Register(reconciliation.NewFeature(
			reconciliation.NewHandler(a.runner, a.retry, a.store, logg.Named("reconciliation")),
		))
		mgr.Register(directory.NewFeature(a.dir, a.store, logg.Named("directory")))
		mgr.Register(credentials.NewFeature(a.store, a.creds, logg.Named("credentials")))

		// RayID first so every later log line can be traced.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))
		if !a.cfg.Server.AuthEnabled() {
			logg.Warn("SERVER_API_KEY is empty; the API is unauthenticated")
		}

		if err := mgr.LoadAll(app); err != nil {
			return err
		}

		sched := reconciliation.NewScheduler(a.runner, a.reaper,
			a.cfg.Sync.ReapInterval(), a.cfg.Sync.RunInterval(), logg.Named("scheduler"))
		go sched.Run(ctx)

		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port))
			if err := app.Listen(a.cfg.Server.Address()); err != nil {
				logg.Error("Server failed to start", zap.Error(err))
				cancel()
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-ctx.Done():
		}
		logg.Info("Shutting down server...")
		cancel()
		_ = app.Shutdown()

		// Background runs are not cancelled by shutdown; let them finish.
		logg.Info("Waiting for in-flight runs")
		a.runner.Wait()
		return nil
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
