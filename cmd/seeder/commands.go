package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yashrajoria/catalog-seeder/controllers"
	"github.com/yashrajoria/catalog-seeder/middleware"
	pkgaws "github.com/yashrajoria/catalog-seeder/pkg/aws"
	"github.com/yashrajoria/catalog-seeder/routes"
	"github.com/yashrajoria/catalog-seeder/services"
)

func (c *cli) newRunCommand() *cobra.Command {
	var force, overwrite, prune bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the seed import if it is due",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			app, err := c.openApp(cmd.Context(), out)
			if err != nil {
				return err
			}
			defer app.Close()

			opts := c.runOptions("cli")
			opts.Force = force
			opts.PruneMissing = opts.PruneMissing || prune
			if cmd.Flags().Changed("overwrite") {
				opts.Overwrite = &overwrite
			}

			res := app.orchestrator.RunIfNeeded(cmd.Context(), opts)
			fmt.Fprintf(out, "state: %s\n", res.State)
			return res.Err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if the seed version was already applied")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "update existing documents that changed (default: stored setting)")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete remote documents missing from the seed files")
	return cmd
}

func (c *cli) newDryRunCommand() *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Report what a run would create, update, skip and delete",
		Long: `dry-run classifies every seed record against the remote store without
writing anything. Changed documents are always reported as updates; whether
a run applies them depends on the overwrite setting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := c.openApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			report, _, err := app.importer.ImportSmart(ctx, services.ImportRequest{
				Sources:           services.SourceNames{Extension: c.cfg.SeedExtension},
				ChecksumNamespace: c.cfg.ChecksumNamespace,
				DryRun:            true,
				PruneMissing:      c.cfg.PruneMissing || prune,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "include remote orphans as deletes")
	return cmd
}

func (c *cli) newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the seeded markers so the next run is due",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.openApp(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.orchestrator.ResetMarkers(cmd.Context())
		},
	}
}

func (c *cli) newSettingsCommand() *cobra.Command {
	var (
		enabled, overwrite bool
		required, bump     int
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the run markers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := c.openApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			var u services.SettingsUpdate
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				u.Enabled = &enabled
			}
			if flags.Changed("overwrite") {
				u.Overwrite = &overwrite
			}
			if flags.Changed("required-version") {
				u.RequiredSeedVersion = &required
			}
			if flags.Changed("bump") {
				u.BumpSeedVersion = &bump
			}

			state, err := app.settings.Apply(ctx, u)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", true, "enable or disable seed runs")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "update existing documents that changed")
	cmd.Flags().IntVar(&required, "required-version", 0, "set the required seed version")
	cmd.Flags().IntVar(&bump, "bump", 0, "raise the required seed version by this much")
	return cmd
}

func (c *cli) newServeCommand() *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the seed admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.ValidateServer(); err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := c.openApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			var history controllers.RunHistory
			if app.history != nil {
				history = app.history
			}
			sc := controllers.NewSeedController(app.orchestrator, app.importer, app.settings, history)
			router := routes.NewRouter(sc, routes.Options{
				JWTSecret:    []byte(c.cfg.JWTSecret),
				RateLimiter:  middleware.NewRateLimiter(rate.Limit(c.cfg.RateLimitRPS), c.cfg.RateLimitBurst),
				Metrics:      app.metrics,
				Logger:       app.logger,
				AllowOrigins: c.cfg.CORSAllowedOrigins,
			})

			srv := &http.Server{
				Addr:    ":" + c.cfg.Port,
				Handler: router,
			}

			go func() {
				app.logger.Info("seed admin API listening", zap.String("port", c.cfg.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					app.logger.Fatal("listen failed", zap.Error(err))
				}
			}()

			if runOnStart {
				go func() {
					res := app.orchestrator.RunIfNeeded(ctx, c.runOptions("startup"))
					app.logger.Info("startup seed run finished", zap.String("state", string(res.State)))
				}()
			}

			<-ctx.Done()
			app.logger.Info("shutting down seed admin API")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run the seed import once at startup if it is due")
	return cmd
}

// triggerMessage is the SQS body that requests a run.
type triggerMessage struct {
	Force        bool `json:"force"`
	PruneMissing bool `json:"prune_missing"`
}

// runHandler turns queue messages into runs. Returning an error leaves the
// message on the queue for redelivery.
func runHandler(orch *services.Orchestrator, base services.RunOptions) pkgaws.MessageHandler {
	return func(ctx context.Context, body string) error {
		var msg triggerMessage
		if body != "" {
			if err := json.Unmarshal([]byte(body), &msg); err != nil {
				return fmt.Errorf("decode trigger message: %w", err)
			}
		}
		opts := base
		opts.Force = msg.Force
		opts.PruneMissing = opts.PruneMissing || msg.PruneMissing
		return orch.RunIfNeeded(ctx, opts).Err
	}
}

func (c *cli) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the seed import whenever a trigger message arrives on SQS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.SQSQueueURL == "" {
				return fmt.Errorf("SQS_QUEUE_URL is required for watch")
			}
			ctx := cmd.Context()
			app, err := c.openApp(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer app.Close()

			consumer := pkgaws.NewSQSConsumer(*app.awsCfg, c.cfg.SQSQueueURL, app.logger)
			err = consumer.StartPolling(ctx, runHandler(app.orchestrator, c.runOptions("sqs")))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func (c *cli) newTriggerCommand() *cobra.Command {
	var msg triggerMessage

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Send a run request to the watch queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.SQSQueueURL == "" {
				return fmt.Errorf("SQS_QUEUE_URL is required for trigger")
			}
			ctx := cmd.Context()
			app, err := c.openApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			body, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			consumer := pkgaws.NewSQSConsumer(*app.awsCfg, c.cfg.SQSQueueURL, app.logger)
			if err := consumer.SendMessage(ctx, string(body)); err != nil {
				return err
			}
			return writeLine(cmd.OutOrStdout(), "run requested")
		},
	}
	cmd.Flags().BoolVar(&msg.Force, "force", false, "force the run")
	cmd.Flags().BoolVar(&msg.PruneMissing, "prune", false, "delete remote orphans")
	return cmd
}

func writeLine(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
