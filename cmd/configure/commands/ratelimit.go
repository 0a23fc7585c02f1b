package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// NewRatelimitCmd creates the ratelimit command. The API picks up changes within a minute.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage the per-client request rate",
		Long:  "Show or replace the rate (e.g. 5-S, 100-M, 1000-H) applied per client IP.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			c, err := database.NewRatelimitConfigRepository(db).Get(context.Background())
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			if c == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No rate stored; the API uses RATE_LIMIT_DEFAULT (%s).\n", cfg.RateLimitDefault)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rate: %s (updated %s)\n", c.Rate, c.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:     "set",
		Short:   "Replace the rate",
		Example: "  restaurant-finder-configure ratelimit set --rate 100-M",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if err := validateRate(rate); err != nil {
				return err
			}

			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewRatelimitConfigRepository(db).Set(context.Background(), &models.RatelimitConfig{Rate: rate}); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rate limit set to %s.\n", rate)
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate such as 5-S, 100-M or 1000-H (required)")
	return cmd
}

// validateRate rejects rates the limiter middleware could not load.
func validateRate(rate string) error {
	if rate == "" {
		return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return nil
}
