package main

import (
	"context"
	"fmt"
	"os"
	"time"

	mongoRepo "github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/repository/mongodb"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/seed"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "marketplace-seed",
		Short: "Load fixture users and listings into the marketplace database",
	}
	rootCmd.AddCommand(loadCmd(), validateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readFixture(path string) (*seed.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seed.Parse(f)
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a fixture file without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			f, err := readFixture(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d users, %d listings\n", path, len(f.Users), len(f.Listings))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "seed.yaml", "Fixture file")
	return cmd
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Insert the users and listings of a fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			appLogger := logger.NewLogger()
			defer func() { _ = appLogger.Sync() }()

			f, err := readFixture(path)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig(appLogger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
			if err != nil {
				return fmt.Errorf("connect to MongoDB: %w", err)
			}
			defer func() {
				if err := client.Disconnect(context.Background()); err != nil {
					appLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
				}
			}()
			db := client.Database(cfg.MongoDatabase)

			loader := seed.NewLoader(
				mongoRepo.NewListingRepository(db, appLogger),
				mongoRepo.NewUserRepository(db, appLogger),
				appLogger,
			)
			res, err := loader.Apply(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users created: %d, users existing: %d, listings created: %d\n",
				res.UsersCreated, res.UsersExisting, res.ListingsCreated)
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "seed.yaml", "Fixture file")
	cmd.Flags().Duration("timeout", time.Minute, "Overall time limit")
	return cmd
}
