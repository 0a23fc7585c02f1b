package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors command. The API picks up changes within a minute.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage the CORS policy",
		Long:  "Show or replace the allowed origins the API reloads from the database. Without a stored policy the API uses CORS_ORIGINS.",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored CORS policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			c, err := database.NewCorsConfigRepository(db).Get(context.Background())
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintf(out, "No CORS policy stored; the API falls back to CORS_ORIGINS (%s).\n", cfg.CORSOrigins)
				return nil
			}
			fmt.Fprintln(out, "CORS policy:")
			for _, origin := range database.AllowedOriginsSlice(c.AllowedOrigins) {
				fmt.Fprintf(out, "  origin: %s\n", origin)
			}
			fmt.Fprintf(out, "  allow credentials: %v\n", c.AllowCredentials)
			fmt.Fprintf(out, "  max age: %ds\n", c.MaxAge)
			fmt.Fprintf(out, "  updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	var (
		origins    string
		allowCreds bool
		maxAge     int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the CORS policy",
		Example: "  restaurant-finder-configure cors set --origins https://app.example.com,http://localhost:5173",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := parseOrigins(origins)
			if err != nil {
				return err
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age cannot be negative")
			}

			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			c := &models.CorsConfig{
				AllowedOrigins:   strings.Join(list, ","),
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := database.NewCorsConfigRepository(db).Set(context.Background(), c); err != nil {
				return fmt.Errorf("set cors config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CORS policy updated (%d origin(s)).\n", len(list))
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age in seconds")
	return cmd
}

// parseOrigins normalises the list and rejects entries that are not
// scheme://host[:port] origins. "*" is accepted as-is.
func parseOrigins(raw string) ([]string, error) {
	list := database.AllowedOriginsSlice(raw)
	if len(list) == 0 {
		return nil, fmt.Errorf("--origins is required (comma-separated list)")
	}
	for _, origin := range list {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return nil, fmt.Errorf("invalid origin %q: want scheme://host[:port]", origin)
		}
	}
	return list, nil
}
