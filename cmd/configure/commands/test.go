package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/restaurant-finder/internal/config"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"github.com/spf13/cobra"
)

const testTimeout = 15 * time.Second

// NewTestCmd creates the test command with places and database subcommands.
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check connectivity to the API's dependencies",
	}
	cmd.AddCommand(newTestPlacesCmd())
	cmd.AddCommand(newTestDatabaseCmd())
	return cmd
}

func newTestPlacesCmd() *cobra.Command {
	var (
		lat, lng float64
		radius   int
	)
	cmd := &cobra.Command{
		Use:   "places",
		Short: "Run one nearby search with the configured API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateCoordinates(lat, lng); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.GoogleMapsAPIKey == "" {
				return fmt.Errorf("GOOGLE_MAPS_API_KEY is not set")
			}

			client := places.NewClient(places.Config{
				APIKey:    cfg.GoogleMapsAPIKey,
				BaseURL:   cfg.PlacesBaseURL,
				V1BaseURL: cfg.PlacesV1BaseURL,
				Language:  cfg.PlacesLanguage,
				Timeout:   cfg.UpstreamTimeout,
			}, nil)

			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			start := time.Now()
			results, err := client.NearbySearch(ctx, places.NearbyRequest{Lat: lat, Lng: lng, Radius: radius, Type: "restaurant"})
			if err != nil {
				return fmt.Errorf("nearby search failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Nearby search returned %d place(s) in %s\n", len(results), time.Since(start).Round(time.Millisecond))
			for i, p := range results {
				if i == 3 {
					break
				}
				fmt.Fprintf(out, "  %s (%s)\n", p.Name, p.PlaceID)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 25.0478, "Latitude to search around")
	cmd.Flags().Float64Var(&lng, "lng", 121.5170, "Longitude to search around")
	cmd.Flags().IntVar(&radius, "radius", 500, "Search radius in meters")
	return cmd
}

func newTestDatabaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "database",
		Short: "Ping the database and report the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()
			start := time.Now()
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Database reachable (%s)\n", time.Since(start).Round(time.Millisecond))

			var version int64
			var dirty bool
			err = db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "  schema version: unknown (run 'migrate up')")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  schema version: %d (dirty: %v)\n", version, dirty)
			return nil
		},
	}
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("--lat must be within [-90, 90], got %v", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("--lng must be within [-180, 180], got %v", lng)
	}
	return nil
}
