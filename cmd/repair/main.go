package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/postpilotapp/postpilot-backend/internal/billing"
	"github.com/postpilotapp/postpilot-backend/internal/repair"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/internal/tokens"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

const usage = `usage: repair <command> [-apply]

commands:
  duplicates          remove redundant settings rows per location
  backfill-end-dates  fill missing subscription period ends from Razorpay
  expired-tokens      delete unrecoverable Google credentials

Without -apply every command is a dry run that prints its plan.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	apply := flags.Bool("apply", false, "execute the plan instead of printing it")
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "repair"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "repair",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"command": command,
		"apply":   *apply,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(logg, "database", err)
	defer dbClient.Close()

	now := time.Now()

	switch command {
	case "duplicates":
		op, err := repair.NewDuplicates(settings.NewRepository(dbClient.DB()), logg)
		requireResource(logg, "duplicates op", err)

		plans, err := op.Plan(ctx, now)
		requireResource(logg, "duplicates plan", err)
		printPlan(plans)

		if *apply {
			deleted, err := op.Apply(ctx, plans)
			requireResource(logg, "duplicates apply", err)
			fmt.Printf("deleted %d duplicate rows\n", deleted)
		}

	case "backfill-end-dates":
		billingClient, err := billing.NewClient(billing.ClientParams{
			Config: cfg.Razorpay,
			Logger: logg,
		})
		requireResource(logg, "razorpay client", err)

		op, err := repair.NewBackfill(subscriptions.NewRepository(dbClient.DB()), billingClient, logg)
		requireResource(logg, "backfill op", err)

		plans, err := op.Plan(ctx)
		requireResource(logg, "backfill plan", err)
		printPlan(plans)

		if *apply {
			updated, err := op.Apply(ctx, plans)
			requireResource(logg, "backfill apply", err)
			fmt.Printf("backfilled %d subscriptions\n", updated)
		}

	case "expired-tokens":
		tokensService, err := tokens.NewService(tokens.ServiceParams{
			Repo:   tokens.NewRepository(dbClient.DB()),
			Logger: logg,
			Google: cfg.Google,
		})
		requireResource(logg, "tokens service", err)

		op, err := repair.NewExpiredTokens(tokensService, logg)
		requireResource(logg, "expired-tokens op", err)

		plans, err := op.Plan(ctx, now)
		requireResource(logg, "expired-tokens plan", err)
		printPlan(plans)

		if *apply {
			removed, err := op.Apply(ctx, now)
			requireResource(logg, "expired-tokens apply", err)
			fmt.Printf("removed %d stale tokens\n", removed)
		}

	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func printPlan(plan any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(plan); err != nil {
		fmt.Fprintf(os.Stderr, "encoding plan: %v\n", err)
		os.Exit(1)
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to initialize "+resource, err)
	os.Exit(1)
}
