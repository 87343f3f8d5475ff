// Command devtoken mints a bearer token for local development, standing in
// for the identity provider. With --profile it also creates the user's profile.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskmate/backend/internal/config"
	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/store"
	"github.com/taskmate/backend/internal/utils"
)

var (
	userID     uint
	name       string
	role       string
	hours      int
	profile    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:          "devtoken",
	Short:        "Mint a development bearer token",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.UintVar(&userID, "user", 1, "user id (subject of the token)")
	flags.StringVar(&name, "name", "dev", "username claim and profile name")
	flags.StringVar(&role, "role", "user", "role claim: user or admin")
	flags.IntVar(&hours, "hours", 24, "token lifetime in hours")
	flags.BoolVar(&profile, "profile", false, "create or update the user's profile row")
	flags.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "config file")
}

func run(cmd *cobra.Command, _ []string) error {
	if userID == 0 {
		return errors.New("user id must be positive")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	utils.SetJWTSecret(cfg.JWT.Secret)

	if profile {
		db, err := models.Open(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := models.Migrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		user := &models.User{ID: userID, Name: name}
		if err := store.New(db).UpsertUser(context.Background(), user); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "profile %d saved\n", user.ID)
	}

	token, err := utils.GenerateToken(userID, name, role, hours)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
