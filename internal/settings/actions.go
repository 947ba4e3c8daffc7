// Package settings implements the command-line rendition of the settings
// surface: credential management, the enable toggle, and state display.
package settings

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"nameglass/internal/common"
	"nameglass/pkg/store"
)

func openStore(c *cli.Context) (*store.Store, error) {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// TokenAction sets or clears the API credential.
func TokenAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer st.Close()

	if c.Bool("clear") {
		if err := st.SetToken(""); err != nil {
			return cli.Exit(err.Error(), 2)
		}
		fmt.Fprintln(c.App.Writer, "token cleared")
		return nil
	}

	token := c.Args().First()
	if token == "" {
		return cli.Exit("usage: nameglass token <token> (or --clear)", 1)
	}
	if err := st.SetToken(token); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	fmt.Fprintln(c.App.Writer, "token stored")
	return nil
}

// ToggleAction persists the global enabled flag. Already-running sessions
// pick it up through their controller; new sessions read it at startup.
func ToggleAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer st.Close()

	var enabled bool
	switch c.Args().First() {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return cli.Exit("usage: nameglass toggle on|off", 1)
	}

	if err := st.SetEnabled(enabled); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	fmt.Fprintf(c.App.Writer, "enabled: %t\n", enabled)
	return nil
}

// StateAction prints the enabled flag and the last rate-limit snapshot.
func StateAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer st.Close()

	enabled, err := st.Enabled()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	fmt.Fprintf(c.App.Writer, "enabled: %t\n", enabled)

	if snap, ok, err := st.RateLimit(); err == nil && ok {
		fmt.Fprintf(c.App.Writer, "rate limit: %d/%d, resets %s\n",
			snap.Remaining, snap.Limit, snap.ResetAt.Format("15:04:05"))
	} else {
		fmt.Fprintln(c.App.Writer, "rate limit: no snapshot")
	}
	return nil
}

// RefreshAction clears the durable label cache so the next session
// re-resolves everything. The in-memory tier of a live session is cleared via
// its controller; from the CLI the durable wipe is the shared part.
func RefreshAction(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer st.Close()

	if err := st.ClearLabels(); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	fmt.Fprintln(c.App.Writer, "label cache cleared")
	return nil
}
