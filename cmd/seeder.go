package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/frahmantamala/opsboard/internal/auth"
	"github.com/frahmantamala/opsboard/internal/user"
	"github.com/spf13/cobra"
)

var (
	adminUsername string
	adminPassword string
	adminRole     string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed reference data and an optional local admin account",
	Long: `Apply the bundled RBAC catalog and default departments. With --admin-password,
also create or update a local account usable when the directory is unreachable.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, logger := mustLoadConfig()

		s, err := openStore(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		fmt.Println("RBAC catalog and departments are up to date")

		if adminPassword == "" {
			return
		}

		hash, err := auth.HashPassword(adminPassword, cfg.Security.BCryptCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}

		services := buildServices(cfg, s, logger)
		if err := services.Users.EnsureLocalAccount(ctx, adminUsername, adminRole, hash); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed local account %s: %v\n", adminUsername, err)
			os.Exit(1)
		}
		if err := services.RBAC.ChangeUserRole(ctx, adminUsername, adminRole); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set role of %s: %v\n", adminUsername, err)
			os.Exit(1)
		}

		fmt.Printf("Seeded local account %s with role %s\n", adminUsername, adminRole)
		if !cfg.Security.LocalAuthFallback {
			fmt.Println("note: security.local_auth_fallback is off, the account is only used once it is enabled")
		}
	},
}

func init() {
	seedCmd.Flags().StringVar(&adminUsername, "admin-username", "admin", "Local account username")
	seedCmd.Flags().StringVar(&adminPassword, "admin-password", "", "Local account password; the account is skipped when empty")
	seedCmd.Flags().StringVar(&adminRole, "admin-role", user.RoleAdmin, "Role given to the local account")
}
