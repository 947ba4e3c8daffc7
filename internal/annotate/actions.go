// Package annotate implements the one-shot CLI command: parse a document,
// resolve every handle it displays, and write the annotated HTML out.
package annotate

import (
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/urfave/cli/v2"

	"nameglass/internal/common"
)

func Action(c *cli.Context) error {
	logger := common.NewLogger(c.Bool("quiet"))

	cfg, err := common.LoadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), 2)
	}

	input := c.String("input")
	file, err := os.Open(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open %s: %v", input, err), 2)
	}
	doc, err := goquery.NewDocumentFromReader(file)
	file.Close()
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to parse %s: %v", input, err), 2)
	}

	session, err := common.NewSession(cfg, doc, logger)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer session.Close()

	session.Pipeline.Scan(c.Context)
	logger.Info("scan complete", "marked", session.Pipeline.Marked(), "cached", session.Cache.Len())

	// Stale-entry revalidations render in the background; snapshot under the
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
