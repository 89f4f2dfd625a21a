// Seed creates the initial administrator and, in development, sample advisor and supervisor accounts.
// Idempotent: accounts whose code already exists are skipped.
package main

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/audit"
	"chancafe-q/backend/internal/config"
	"chancafe-q/backend/internal/db"
	"chancafe-q/backend/internal/logger"
	"chancafe-q/backend/internal/security"
	sessionservice "chancafe-q/backend/internal/session/service"
	userdomain "chancafe-q/backend/internal/user/domain"
	userservice "chancafe-q/backend/internal/user/service"
)

// devPassword is shared by the development sample accounts.
const devPassword = "Chancafe#2024"

var devUsers = []userservice.CreateInput{
	{Code: "SUP001", Name: "Supervisor Demo", Email: "supervisor@chancafe.com", Role: userdomain.RoleSupervisor},
	{Code: "ADV001", Name: "Asesor Demo", Email: "asesor@chancafe.com", Role: userdomain.RoleAgent},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Env, cfg.LogLevel, "chancafe-q-seed")
	defer func() { _ = log.Sync() }()

	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatal("seed requires STORE_DRIVER=postgres")
	}
	if cfg.SeedAdminPassword == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is not set")
	}

	ctx := context.Background()
	stores, err := db.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	recorder := audit.NewRecorder(stores.Activity, log, nil, nil)
	sessions := sessionservice.NewStore(stores.Sessions, stores.Users, cfg.SessionTTL(), nil)
	policy := security.DefaultPasswordPolicy()
	policy.MinLength = cfg.PasswordMinLength
	users := userservice.NewService(stores.Users, security.NewHasher(cfg.BcryptCost), policy, sessions, recorder, nil)

	accounts := []userservice.CreateInput{{
		Code:     cfg.SeedAdminCode,
		Name:     cfg.SeedAdminName,
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
		Role:     userdomain.RoleAdmin,
	}}
	if cfg.IsDevelopment() {
		for _, u := range devUsers {
			u.Password = devPassword
			accounts = append(accounts, u)
		}
	}

	failed := false
	for _, in := range accounts {
		u, err := users.Create(ctx, "", in)
		switch {
		case err == nil:
			log.Info("user created", zap.String("code", u.Code), zap.String("role", string(u.Role)))
		case apperr.HasCode(err, apperr.CodeUserAlreadyExists):
			log.Info("user exists, skipping", zap.String("code", in.Code))
		default:
			failed = true
			var ae *apperr.Error
			if errors.As(err, &ae) && ae.Details != nil {
				log.Error("create user", zap.String("code", in.Code), zap.Error(err), zap.Any("details", ae.Details))
			} else {
				log.Error("create user", zap.String("code", in.Code), zap.Error(err))
			}
		}
	}

	if err := recorder.Wait(ctx); err != nil {
		log.Warn("activity writes pending", zap.Error(err))
	}
	if failed {
		os.Exit(1)
	}
}
