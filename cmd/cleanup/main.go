package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"complaint-service/internal/account"
	"complaint-service/internal/config"
	"complaint-service/internal/db"
	"complaint-service/internal/logger"
	"complaint-service/internal/metrics"

	"github.com/joho/godotenv"
)

// find-duplicate-emails reports accounts sharing an email address and, unless
// --dry-run is given, deactivates all but the newest account in each group.
func main() {
	dryRun := flag.Bool("dry-run", false, "report duplicate-email groups without changing anything")
	flag.Parse()

	_ = godotenv.Load()

	slogLogger := logger.New()
	slog.SetDefault(slogLogger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database := db.New(cfg.Database)
	defer db.Close(database)

	repo := account.NewRepository(database, metrics.NewMock())
	cleanup := account.NewCleanupService(repo, slogLogger)

	report, err := cleanup.Run(context.Background(), *dryRun)
	if err != nil {
		log.Fatalf("cleanup failed: %v", err)
	}

	if len(report.Groups) == 0 {
		fmt.Println("No duplicate email addresses found.")
		return
	}

	for _, group := range report.Groups {
		fmt.Printf("%s (%d accounts):\n", group.Email, len(group.Accounts))
		for i, acct := range group.Accounts {
			state := "deactivate"
			if i == 0 {
				state = "keep"
			}
			if report.DryRun {
				state = "would " + state
			}
			fmt.Printf("  [%s] %s (id=%d, created=%s, active=%t)\n",
				state, acct.Username, acct.ID, acct.CreatedAt.Format("2006-01-02"), acct.IsActive)
		}
	}

	if report.DryRun {
		fmt.Printf("\nDry run: %d groups found, nothing changed.\n", len(report.Groups))
	} else {
		fmt.Printf("\nDeactivated %d accounts across %d groups.\n", len(report.Deactivated), len(report.Groups))
	}
}
