package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"nameglass/internal/annotate"
	"nameglass/internal/follow"
	"nameglass/internal/maintain"
	"nameglass/internal/settings"
)

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Value: "nameglass.yaml",
			Usage: "path to the YAML config file",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "override the SQLite store path",
		},
		&cli.StringFlag{
			Name:  "api-base",
			Usage: "override the lookup service base URL",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "only log errors",
		},
	}

	docFlags := append([]cli.Flag{
		&cli.StringFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "HTML document to scan",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "where to write the annotated document (default stdout)",
		},
	}, commonFlags...)

	app := &cli.App{
		Name:  "nameglass",
		Usage: "resolve user handles in HTML documents to display names",
		Commands: []*cli.Command{
			{
				Name:   "annotate",
				Usage:  "scan a document once and write the annotated result",
				Flags:  docFlags,
				Action: annotate.Action,
			},
			{
				Name:   "follow",
				Usage:  "scan a document and keep annotating as it grows",
				Flags:  docFlags,
				Action: follow.Action,
			},
			{
				Name:   "purge",
				Usage:  "remove cache entries past the retention window (run daily)",
				Flags:  commonFlags,
				Action: maintain.PurgeAction,
			},
			{
				Name:      "token",
				Usage:     "store the API credential",
				ArgsUsage: "<token>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "clear", Usage: "remove the stored credential"},
				}, commonFlags...),
				Action: settings.TokenAction,
			},
			{
				Name:      "toggle",
				Usage:     "enable or disable resolution globally",
				ArgsUsage: "on|off",
				Flags:     commonFlags,
				Action:    settings.ToggleAction,
			},
			{
				Name:   "state",
				Usage:  "print the enabled flag and last rate-limit snapshot",
				Flags:  commonFlags,
				Action: settings.StateAction,
			},
			{
				Name:   "refresh",
				Usage:  "clear the durable label cache",
				Flags:  commonFlags,
				Action: settings.RefreshAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
