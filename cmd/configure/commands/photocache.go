package commands

import (
	"fmt"

	"github.com/benvon/restaurant-finder/internal/config"
	"github.com/benvon/restaurant-finder/internal/photocache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewPhotoCacheCmd creates the photocache command. Badger holds an exclusive
// directory lock, so these commands only work while the API is stopped.
func NewPhotoCacheCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "photocache",
		Short: "Inspect or empty the on-disk photo cache",
		Long:  "Inspect or empty the photo cache. Stop the API first; the cache directory is locked while it runs.",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Cache directory (defaults to PHOTO_CACHE_DIR)")
	cmd.AddCommand(newPhotoCacheStatsCmd(&dir))
	cmd.AddCommand(newPhotoCachePurgeCmd(&dir))
	return cmd
}

func withPhotoCache(dir string, fn func(c *photocache.Cache) error) error {
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dir = cfg.PhotoCacheDir
	}
	cache, err := photocache.Open(dir, 0, nil)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()
	return fn(cache)
}

func newPhotoCacheStatsCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry count and disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPhotoCache(*dir, func(c *photocache.Cache) error {
				stats, err := c.Stats()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Entries:   %d\n", stats.Entries)
				fmt.Fprintf(out, "LSM size:  %s\n", humanize.IBytes(uint64(stats.LSMBytes)))
				fmt.Fprintf(out, "Vlog size: %s\n", humanize.IBytes(uint64(stats.VLogBytes)))
				return nil
			})
		},
	}
}

func newPhotoCachePurgeCmd(dir *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every cached photo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to purge without --yes")
			}
			return withPhotoCache(*dir, func(c *photocache.Cache) error {
				if err := c.Purge(); err != nil {
					return err
				}
				if err := c.CollectGarbage(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Photo cache purged.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the purge")
	return cmd
}
