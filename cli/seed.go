package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"xhunt-server/config"
	"xhunt-server/database"
	"xhunt-server/models"
	"xhunt-server/services"
	"xhunt-server/types"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	AdminEmail    string
	AdminPassword string
	DemoEmail     string
	DemoPassword  string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create an admin, a demo user and welcome notifications",
		Long: `Create an admin account, a demo user and a few welcome notifications.

Existing accounts are left untouched and the demo user only receives the
welcome notifications while it has none, so the command can be rerun.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Open(cfg.Database, log)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			return Seed(cmd.Context(), db, cfg.Notifications, opts, log)
		},
	}

	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", "admin@xhunt.local", "admin account email")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", "", "admin account password (required)")
	cmd.Flags().StringVar(&opts.DemoEmail, "demo-email", "demo@xhunt.local", "demo user email")
	cmd.Flags().StringVar(&opts.DemoPassword, "demo-password", "demo-password", "demo user password")
	_ = cmd.MarkFlagRequired("admin-password")

	return cmd
}

var welcomeNotifications = []services.CreateNotificationInput{
	{
		Type:    models.NotificationSystem,
		Title:   "Welcome to X-Hunt",
		Message: "Your account is ready. Start exploring experiences near you.",
	},
	{
		Type:    models.NotificationRewardEarned,
		Title:   "Welcome bonus",
		Message: "You earned 100 points for joining.",
		Data:    map[string]interface{}{"points": 100},
	},
	{
		Type:    models.NotificationChallengeCompleted,
		Title:   "First challenge completed",
		Message: "You completed the sign-up challenge.",
		Data:    map[string]interface{}{"challenge": "sign-up"},
	},
}

// Seed creates the admin and demo accounts and the demo user's welcome notifications.
func Seed(ctx context.Context, db *gorm.DB, notifCfg config.NotificationsConfig, opts *SeedOptions, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	users := services.NewUserService(db, log)
	notifications := services.NewNotificationService(db, notifCfg, nil, log)

	admin, err := users.CreateAdmin(ctx, opts.AdminEmail, opts.AdminPassword, "Administrator")
	if errors.Is(err, types.ErrConflict) {
		log.Info("admin already exists", zap.String("email", opts.AdminEmail))
		admin, err = users.GetByEmail(ctx, opts.AdminEmail)
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	demo, err := users.Register(ctx, services.RegisterInput{
		Email:    opts.DemoEmail,
		Password: opts.DemoPassword,
		Name:     "Demo User",
	})
	if errors.Is(err, types.ErrConflict) {
		log.Info("demo user already exists", zap.String("email", opts.DemoEmail))
		demo, err = users.GetByEmail(ctx, opts.DemoEmail)
	}
	if err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", demo.ID).Count(&existing).Error; err != nil {
		return fmt.Errorf("count demo notifications: %w", err)
	}
	if existing > 0 {
		log.Info("demo notifications already present", zap.Int64("count", existing))
		return nil
	}

	for _, input := range welcomeNotifications {
		input.UserID = demo.ID
		if _, err := notifications.Create(ctx, admin, input); err != nil {
			return fmt.Errorf("seed notification %q: %w", input.Title, err)
		}
	}
	log.Info("seed complete", zap.Int("notifications", len(welcomeNotifications)))
	return nil
}
