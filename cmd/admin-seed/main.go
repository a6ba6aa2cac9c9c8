// Command admin-seed creates a review panel account, or resets its password
// when the email already exists.
//
//	admin-seed -email admin@choiceproperties.com -password '...' -name 'Site Admin'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"rental_app_backend/internal/config"
	"rental_app_backend/internal/database"
	"rental_app_backend/internal/repositories"
	"rental_app_backend/internal/services"
	"rental_app_backend/pkg/utils"

	"github.com/rs/zerolog/log"
)

func main() {
	email := flag.String("email", "", "admin email (must also be on auth.admin_allowlist to see applications)")
	password := flag.String("password", os.Getenv("ADMIN_SEED_PASSWORD"), "admin password, defaults to $ADMIN_SEED_PASSWORD")
	name := flag.String("name", "", "display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	utils.InitLogger(cfg.App.LogLevel, true)

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.InitDB(ctx, cfg.Database.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Database unavailable")
	}
	defer db.Close()

	if cfg.Database.Postgres.ApplySchema {
		if err := database.ApplySchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Schema not applied")
		}
	}

	auth := services.NewAuthService(repositories.NewAdminRepository(db), utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))
	admin, err := auth.EnsureAdmin(ctx, *email, *password, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("Admin not saved")
	}

	allowlisted := false
	for _, allowed := range cfg.Auth.AdminAllowlist {
		if allowed == admin.Email {
			allowlisted = true
			break
		}
	}
	if !allowlisted {
		utils.LogWarn(nil, "Admin is not on the allowlist and will only see the restricted view", map[string]interface{}{"email": admin.Email})
	}
	utils.LogInfo("Admin ready", map[string]interface{}{"email": admin.Email, "id": admin.ID})
}
