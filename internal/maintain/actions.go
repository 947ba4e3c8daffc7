// Package maintain implements the periodic maintenance command. It is meant
// to be invoked on a daily schedule (cron or similar) and removes durable
// cache entries past the retention window.
package maintain

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"nameglass/internal/common"
	"nameglass/pkg/cache"
	"nameglass/pkg/store"
)

func PurgeAction(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), 2)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open store: %v", err), 2)
	}
	defer st.Close()

	removed, err := cache.New(st).PurgeExpired()
	if err != nil {
		return cli.Exit(fmt.Sprintf("purge failed: %v", err), 2)
	}

	logger.Info("purge complete", "removed", removed)
	fmt.Fprintf(c.App.Writer, "purged %d expired entries\n", removed)
	return nil
}
