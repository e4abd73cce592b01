// cmd/service/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"repo-mirror/internal/api"
	"repo-mirror/internal/config"
	"repo-mirror/migrations"
)

const shutdownTimeout = 15 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "repo-mirror",
		Short:         "Mirror GitHub repositories into Gitea",
		Long:          "Discovers repositories on GitHub, mirrors them into Gitea and keeps the mirrors in sync on a schedule.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newRecoverCmd(),
		newFailInProgressCmd(),
		newRepairCmd(),
		newStatusCmd(),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run recovery, the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			// Jobs interrupted by the previous process resume before new work is scheduled.
			if _, err := a.recovery.Run(ctx); err != nil {
				a.logger.Error("Startup recovery failed", "error", err)
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.scheduler.Start(ctx)
			}()

			srv := &http.Server{
				Addr: a.cfg.HTTPAddr,
				Handler: api.NewRouter(api.Dependencies{
					Store:      a.store,
					Runner:     a.scheduler,
					Operations: a.service,
					Remediator: a.recovery,
					Gatherer:   a.registry,
					Logger:     a.logger,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				a.logger.Info("HTTP server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			a.logger.Info("Application started. Waiting for shutdown signal...")
			select {
			case <-ctx.Done():
				a.logger.Info("Shutdown signal received")
			case err = <-serveErr:
				cancel()
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				a.logger.Error("HTTP server shutdown failed", "error", serr)
			}
			wg.Wait()
			a.logger.Info("Shutdown complete")
			return err
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, logLevel := newLogger()
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			setLogLevel(cfg.LogLevel, logLevel)
			if cfg.StoreDriver != config.DriverPostgres {
				return fmt.Errorf("migrations need the %s store, got %s", config.DriverPostgres, cfg.StoreDriver)
			}
			if down {
				if err := migrations.Down(cfg.DBURL); err != nil {
					return err
				}
				logger.Info("Database migrations rolled back")
				return nil
			}
			if err := migrations.Up(cfg.DBURL); err != nil {
				return err
			}
			logger.Info("Database migrations applied successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration instead of applying them")
	return cmd
}

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Resume or fail jobs left in progress by a previous process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.recovery.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "found %d, resumed %d, completed %d, failed %d\n",
				report.Found, report.Resumed, report.Completed, report.Failed)
			return nil
		},
	}
}

func newFailInProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fail-in-progress",
		Short: "Mark every in-progress job failed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.recovery.FailAllInProgress(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d jobs failed\n", n)
			return nil
		},
	}
}

func newRepairCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reconcile repositories stuck in transient states with the destination",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.service.RepairStatus(ctx, userID)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Outcome", "Count"})
			table.Append([]string{"Checked", fmt.Sprintf("%d", report.Checked)})
			table.Append([]string{"Converged", fmt.Sprintf("%d", len(report.Converged))})
			table.Append([]string{"Failed", fmt.Sprintf("%d", len(report.Failed))})
			table.Append([]string{"Unchanged", fmt.Sprintf("%d", len(report.Unchanged))})
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User ID whose repositories are repaired")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a user's repositories and their mirror status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			repos, err := a.store.ListRepositories(ctx, userID)
			if err != nil {
				return err
			}
			if len(repos) == 0 {
				fmt.Fprintln(os.Stderr, "No repositories tracked for this user.")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Repository", "Status", "Mirrored At", "Last Mirrored", "Error"})
			for _, r := range repos {
				last := "-"
				if r.LastMirrored != nil {
					last = r.LastMirrored.Format("2006-01-02 15:04")
				}
				table.Append([]string{r.FullName, string(r.Status), r.MirroredLocation, last, r.ErrorMessage})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User ID whose repositories are listed")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
