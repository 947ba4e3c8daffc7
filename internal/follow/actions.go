// Package follow implements the live mode: scan a document, then keep tailing
// it for appended content, resolving handles as they stream in. On interrupt
// the annotated snapshot is written out.
package follow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PuerkitoBio/goquery"
	"github.com/urfave/cli/v2"

	"nameglass/internal/common"
	"nameglass/pkg/watch"
)

func Action(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), 2)
	}

	input := c.String("input")
	data, err := os.ReadFile(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read %s: %v", input, err), 2)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to parse %s: %v", input, err), 2)
	}

	session, err := common.NewSession(cfg, doc, logger)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer session.Close()

	follower, err := watch.NewFollower(input, doc, session.Pipeline.DocLock(), int64(len(data)), logger)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := follower.Start(); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer follower.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session.Pipeline.Scan(ctx)
	logger.Info("initial scan complete", "marked", session.Pipeline.Marked())

	// Blocks until interrupted; the debounced drain handles appended bursts.
	session.Pipeline.Observe(ctx, follower, cfg.DebounceWindow)

	// Background revalidations may still be rendering; snapshot under the
	// document lock.
	docMu := session.Pipeline.DocLock()
	docMu.RLock()
	rendered, err := doc.Html()
	docMu.RUnlock()
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to render document: %v", err), 2)
	}
	output := c.String("output")
	if output == "" || output == "-" {
		fmt.Fprint(c.App.Writer, rendered)
		return nil
	}
	if err := os.WriteFile(output, []byte(rendered), 0644); err != nil {
		return cli.Exit(fmt.Sprintf("failed to write %s: %v", output, err), 2)
	}
	logger.Info("annotated document written", "path", output)
	return nil
}
