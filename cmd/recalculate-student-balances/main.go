// recalculate-student-balances rebuilds student_account_balances from non-void
// invoices and payments and prints every student whose cached balance was off.
//
// Usage:
//
//	go run ./cmd/recalculate-student-balances --boarding-house-id=3 --dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	boardingHouseID := flag.Int("boarding-house-id", 0, "Optional: a single boarding house (default: every active house)")
	dryRun := flag.Bool("dry-run", false, "Show the drift only (no writes)")
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

	for _, house := range houses {
		houseCtx := workflow.HouseMaintenanceContext(ctx, "recalculate-student-balances", house.ID)
		var result *models.RecalculateStudentBalancesResult
		err := workflow.WithMaintenanceLock(houseCtx, "student-balances", house.ID, func(ctx context.Context) error {
			var err error
			result, err = models.RecalculateStudentBalances(ctx, *dryRun)
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "boarding_house_id=%d failed: %v\n", house.ID, err)
			os.Exit(1)
		}
		fmt.Printf("boarding_house_id=%d students_checked=%d drifted=%d dry_run=%t\n",
			house.ID, result.StudentsChecked, len(result.Drifts), result.DryRun)
		for _, d := range result.Drifts {
			fmt.Printf("  student=%s %q cached=%s invoiced=%s paid=%s actual=%s\n",
				d.StudentNumber, d.StudentName, d.CachedBalance, d.ActualInvoiced, d.ActualPaid, d.ActualBalance)
		}
	}
}
