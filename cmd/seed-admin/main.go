// seed-admin creates or updates the boss user that manages every boarding house.
// Boss users have no boarding house of their own and pick one per request.
//
// Usage:
//
//	SEED_ADMIN_PASSWORD=... go run ./cmd/seed-admin --username=boss --name="Owner"
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
	"github.com/mmdatafocus/boarding_backend/utils"
	"gorm.io/gorm"
)

func main() {
	username := flag.String("username", "boss", "Login name of the boss user")
	name := flag.String("name", "Boarding Owner", "Display name")
	email := flag.String("email", "", "Optional email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "Password (default: $SEED_ADMIN_PASSWORD)")
	flag.Parse()

	login := strings.ToLower(strings.TrimSpace(*username))
	if login == "" {
		fmt.Fprintln(os.Stderr, "--username is required")
		os.Exit(2)
	}
	if err := utils.ValidatePasswordStrength(*password); err != nil {
		fmt.Fprintf(os.Stderr, "password rejected: %v (set --password or SEED_ADMIN_PASSWORD)\n", err)
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		if err := config.ConnectRedis(); err != nil {
			fmt.Fprintf(os.Stderr, "redis unavailable, existing sessions are not revoked: %v\n", err)
		}
	}

	ctx := utils.NewMaintenanceContext(context.Background(), "seed-admin")
	ctx = utils.SetIsAdminInContext(ctx, true)

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", login).Take(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username:        login,
			Name:            *name,
			Email:           *email,
			Password:        string(hashed),
			Role:            models.RoleBoss,
			BoardingHouseId: 0,
			IsActive:        utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create boss user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created boss user: username=%q id=%d\n", login, u.ID)
		return
	}

	if err := db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"password":          string(hashed),
		"name":              *name,
		"is_active":         true,
		"role":              models.RoleBoss,
		"boarding_house_id": 0,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update boss user: %v\n", err)
		os.Exit(1)
	}
	if err := models.RevokeUserSessions(login); err != nil {
		fmt.Fprintf(os.Stderr, "failed to revoke sessions: %v\n", err)
	}
	fmt.Printf("Updated boss user: username=%q id=%d\n", login, existing.ID)
}
