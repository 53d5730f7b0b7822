// rebuild-account-balances recomputes current_account_balances from the journal entries
// of non-deleted transactions and prints the drift it corrected.
// With --petty-cash it also replays petty cash movements into the account balances.
//
// Usage:
//
//	go run ./cmd/rebuild-account-balances --boarding-house-id=3 --dry-run
//	go run ./cmd/rebuild-account-balances --petty-cash
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var errDryRun = errors.New("dry run")

func main() {
	boardingHouseID := flag.Int("boarding-house-id", 0, "Optional: rebuild a single boarding house (default: every active house)")
	pettyCash := flag.Bool("petty-cash", false, "Also recalculate petty cash balances from their movements")
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
		houseCtx := workflow.HouseMaintenanceContext(ctx, "rebuild-account-balances", house.ID)
		err := workflow.WithMaintenanceLock(houseCtx, "rebuild-balances", house.ID, func(ctx context.Context) error {
			result, err := models.RebuildAccountBalances(ctx, *dryRun)
			if err != nil {
				return err
			}
			fmt.Printf("boarding_house_id=%d accounts_checked=%d drifted=%d dry_run=%t\n",
				house.ID, result.AccountsChecked, len(result.Drifts), result.DryRun)
			for _, d := range result.Drifts {
				fmt.Printf("  account=%s %q cached=%s ledger=%s difference=%s missing=%t\n",
					d.AccountCode, d.AccountName, d.CachedBalance, d.LedgerBalance, d.Difference, d.MissingInCache)
			}
			if !*pettyCash {
				return nil
			}
			return rebuildPettyCash(ctx, db, house.ID, *dryRun)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "boarding_house_id=%d failed: %v\n", house.ID, err)
			os.Exit(1)
		}
	}
}

func rebuildPettyCash(ctx context.Context, db *gorm.DB, boardingHouseID int, dryRun bool) error {
	var drifts []models.PettyCashDrift
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		drifts, err = models.RecalculatePettyCashTx(tx, boardingHouseID)
		if err != nil {
			return err
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return err
	}
	fmt.Printf("  petty_cash drifted=%d\n", len(drifts))
	for _, d := range drifts {
		fmt.Printf("  petty_cash_account=%d %q stored=%s actual=%s\n", d.PettyCashAccountId, d.Name, d.Stored, d.Actual)
	}
	return nil
}
