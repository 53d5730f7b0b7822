// generate-monthly-invoices raises one rent invoice per active enrollment for a period.
// Enrollments already invoiced for the period are skipped, so reruns are safe.
//
// Usage:
//
//	go run ./cmd/generate-monthly-invoices --period=2025-03
//	go run ./cmd/generate-monthly-invoices --boarding-house-id=3 --dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/mmdatafocus/boarding_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	boardingHouseID := flag.Int("boarding-house-id", 0, "Optional: a single boarding house (default: every active house)")
	period := flag.String("period", utils.PeriodOf(time.Now()), "Billing period YYYY-MM (default: current month)")
	dryRun := flag.Bool("dry-run", false, "List what would be invoiced (no writes)")
	flag.Parse()

	if *boardingHouseID < 0 {
		fmt.Fprintln(os.Stderr, "--boarding-house-id must be >= 0")
		os.Exit(2)
	}
	if _, _, err := utils.ParsePeriod(*period); err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	failed := 0
	for _, house := range houses {
		houseCtx := workflow.HouseMaintenanceContext(ctx, "generate-monthly-invoices", house.ID)
		var result *models.GenerateInvoicesResult
		err := workflow.WithMaintenanceLock(houseCtx, "monthly-invoices", house.ID, func(ctx context.Context) error {
			var err error
			result, err = models.GenerateMonthlyInvoices(ctx, *period, *dryRun)
			return err
		})
		if err != nil {
			// one house failing must not block billing of the others
			failed++
			config.LogError(logger, "generate-monthly-invoices", "main", "GenerateMonthlyInvoices", house.ID, err)
			continue
		}
		fmt.Printf("boarding_house_id=%d period=%s created=%d skipped=%d total=%s dry_run=%t\n",
			house.ID, result.Period, result.Created, result.Skipped, result.Total, result.DryRun)
		for _, inv := range result.Invoices {
			fmt.Printf("  student_id=%d enrollment_id=%d amount=%s number=%s\n", inv.StudentId, inv.EnrollmentId, inv.Amount, inv.InvoiceNumber)
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d boarding house(s) failed\n", failed)
		os.Exit(1)
	}
}
