package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	api "lead-responder/cmd/api"
	authUsecase "lead-responder/internal/auth/usecase"
	"lead-responder/internal/notification"
	"lead-responder/internal/watch"
	"lead-responder/pkg/config"
	"lead-responder/pkg/database"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	root := &cobra.Command{
		Use:   "lead-responder",
		Short: "Answers inbound store emails with AI replies",
		Long:  "lead-responder watches a Gmail inbox, replies to customer leads with catalog-aware answers and escalates risky emails to a human.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server, Pub/Sub subscriber and watch renewal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func watchCmd() *cobra.Command {
	var stopWatch bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Register the Gmail watch once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, config.Load())
			if err != nil {
				return err
			}
			if stopWatch {
				if err := app.gmail.Stop(ctx); err != nil {
					return err
				}
				log.Println("Gmail watch stopped")
				return nil
			}
			resp, err := app.registrar.RegisterWatch(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("historyId=%d expiration=%s\n", resp.HistoryID, resp.Expiration)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stopWatch, "stop", false, "stop push notifications instead of registering")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := database.NewPostgresConnection(cfg)
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return err
			}
			log.Println("Migration complete")
			return nil
		},
	}
}

func backfillCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "backfill-bodies",
		Short: "Refetch plain-text bodies for records stored without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, config.Load())
			if err != nil {
				return err
			}
			report, err := backfillBodies(ctx, app.repo, app.gmail, batch)
			log.Printf("Backfill finished: updated=%d failed=%d", report.Updated, report.Failed)
			return err
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "records loaded per query")
	return cmd
}

func tokenCmd() *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a Bearer token for the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			token, err := authUsecase.NewOperatorAuth(cfg.OperatorJWTSecret, cfg.OperatorTokenExpiry).IssueToken(operator)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "name recorded in the token")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(app.db); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	handler := api.NewHandler(cfg, app.orchestrator, app.registrar, app.repo)
	g.Go(func() error {
		return handler.Start(gctx, ":"+cfg.Port)
	})

	if cfg.GooglePubSubSubscription != "" {
		notifService, err := notification.NewService(gctx, cfg.GoogleProjectID, shortTopicName(cfg.GooglePubSubTopic),
			cfg.GooglePubSubSubscription, app.orchestrator, cfg.GoogleCredentials)
		if err != nil {
			return err
		}
		defer notifService.Close()
		g.Go(func() error {
			return notifService.Start(gctx)
		})
	} else {
		log.Printf("[WARN] GOOGLE_PUBSUB_SUBSCRIPTION not configured, pull subscriber disabled")
	}

	if cfg.GooglePubSubTopic != "" {
		scheduler := watch.NewRenewalScheduler(app.registrar, cfg.WatchRenewInterval)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	} else {
		log.Printf("[WARN] GOOGLE_PUBSUB_TOPIC not configured, watch renewal disabled")
	}

	return g.Wait()
}
