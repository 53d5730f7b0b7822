// diagnose-ledger runs the ledger integrity checks for one or every boarding house:
// unbalanced or short transactions, balance cache drift, student AR drift,
// AR control vs subledger and petty cash drift.
//
// Usage:
//
//	go run ./cmd/diagnose-ledger --boarding-house-id=3
//	go run ./cmd/diagnose-ledger --dry-run    # all houses, findings are not stored
//
// Exit codes: 0 clean, 1 failure, 2 bad flags, 3 findings reported.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	boardingHouseID := flag.Int("boarding-house-id", 0, "Optional: check a single boarding house (default: every active house)")
	dryRun := flag.Bool("dry-run", false, "Report only; do not store findings in reconciliation_reports")
	verbose := flag.Bool("verbose", false, "Print every finding, not just the counts")
	flag.Parse()

	if *boardingHouseID < 0 {
		fmt.Fprintln(os.Stderr, "--boarding-house-id must be >= 0")
		os.Exit(2)
	}

	logger := logrus.New()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		if err := config.ConnectRedis(); err != nil {
			logger.Warn("redis unavailable; running without the maintenance lock: " + err.Error())
		}
	}

	ctx := context.Background()
	houses, err := workflow.TargetBoardingHouses(ctx, db, *boardingHouseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed: %v\n", err)
		os.Exit(1)
	}

	dirty := 0
	for _, house := range houses {
		houseCtx := workflow.HouseMaintenanceContext(ctx, "diagnose-ledger", house.ID)
		var report *models.IntegrityReport
		err := workflow.WithMaintenanceLock(houseCtx, "integrity", house.ID, func(ctx context.Context) error {
			var err error
			if *dryRun {
				report, err = models.CheckIntegrityTx(db.WithContext(ctx), house.ID)
			} else {
				report, err = models.RunIntegrityChecks(ctx, house.ID)
			}
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "boarding_house_id=%d failed: %v\n", house.ID, err)
			os.Exit(1)
		}

		fmt.Printf("boarding_house_id=%d code=%s clean=%t correlation_id=%s\n", house.ID, house.Code, report.IsClean, report.CorrelationId)
		checks := make([]string, 0, len(report.Counts))
		for check := range report.Counts {
			checks = append(checks, check)
		}
		sort.Strings(checks)
		for _, check := range checks {
			fmt.Printf("  %-24s %d\n", check, report.Counts[check])
		}
		if *verbose {
			for _, f := range report.Findings {
				fmt.Printf("  - %s %s#%d %s\n", f.CheckType, f.EntityType, f.EntityId, f.Details)
			}
		}
		if !report.IsClean {
			dirty++
		}
	}

	fmt.Printf("checked=%d with_findings=%d dry_run=%t\n", len(houses), dirty, *dryRun)
	if dirty > 0 {
		os.Exit(3)
	}
}
