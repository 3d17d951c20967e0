package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/charitychain/charitychain-api/models"
	"github.com/charitychain/charitychain-api/store"
	"github.com/charitychain/charitychain-api/utils"
)

const (
	defaultAdminEmail = "admin@charitychain.com"
	defaultAdminName  = "Admin"
)

var (
	adminEmail    string
	adminPassword string
	adminName     string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the admin account if it does not exist",
	Long: `create-admin inserts an admin user. Running it again is a no-op.

The email and password come from the flags, falling back to ADMIN_EMAIL and
ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := firstNonEmpty(adminEmail, cfg.AdminEmail, defaultAdminEmail)
		password := firstNonEmpty(adminPassword, cfg.AdminPassword)
		if password == "" {
			return errors.New("admin password required: pass --password or set ADMIN_PASSWORD")
		}

		ctx := cmd.Context()
		closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer func() { _ = closeStore(context.Background()) }()

		created, err := ensureAdmin(ctx, cfg.Store, adminName, email, password)
		if err != nil {
			return err
		}
		if created {
			logger.Info("admin user created", zap.String("email", email))
			fmt.Fprintf(cmd.OutOrStdout(), "Admin user created: %s\n", email)
		} else {
			logger.Info("admin user already exists", zap.String("email", email))
			fmt.Fprintf(cmd.OutOrStdout(), "Admin user already exists: %s\n", email)
		}
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email (default ADMIN_EMAIL or "+defaultAdminEmail+")")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Admin password (default ADMIN_PASSWORD)")
	createAdminCmd.Flags().StringVar(&adminName, "name", defaultAdminName, "Admin display name")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ensureAdmin creates the admin account unless an admin with that email
// already exists. An email held by a donor or NGO is an error.
func ensureAdmin(ctx context.Context, s store.Users, name, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < utils.MinPasswordLength {
		return false, fmt.Errorf("admin password must be at least %d characters", utils.MinPasswordLength)
	}

	exists, err := existingAdmin(ctx, s, email)
	if err != nil || exists {
		return false, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	admin := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     email,
		Password:  hash,
		Role:      models.RoleAdmin,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// created concurrently; report whatever holds the email now
			_, err = existingAdmin(ctx, s, email)
			return false, err
		}
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

// existingAdmin reports whether email belongs to an admin. It fails when the
// email is registered under another role.
func existingAdmin(ctx context.Context, s store.Users, email string) (bool, error) {
	u, err := s.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup admin: %w", err)
	}
	if u.Role != models.RoleAdmin {
		return false, fmt.Errorf("%s is already registered as a %s account", email, u.Role)
	}
	return true, nil
}
