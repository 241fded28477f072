package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "westudy",
		Usage: "Generate study material from videos and web pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-mode",
				Usage: "Log encoding: dev (console) or prod (JSON)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Generate study material for a video or page URL",
				ArgsUsage: "<url>",
				Action:    generateCommand,
				Flags: append(llmFlags(),
					&cli.StringFlag{
						Name:  "user",
						Usage: "User id the material is stored for",
						Value: "cli",
					},
					&cli.StringFlag{
						Name:  "thumbnail",
						Usage: "Thumbnail URL stored with the material",
					},
					&cli.BoolFlag{
						Name:  "no-store",
						Usage: "Do not persist the generated material",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the document as JSON",
					},
				),
			},
			{
				Name:   "serve",
				Usage:  "Serve the generation pipeline over websocket",
				Action: serveCommand,
				Flags: append(llmFlags(),
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Find stored materials similar to a query",
				ArgsUsage: "[query]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "db-url",
						Usage: "PostgreSQL connection string",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "List this user's materials, newest first, when no query is given",
					},
				},
			},
		},
	}
}

// llmFlags are shared by the commands that run the pipeline.
func llmFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "LLM provider (ollama, openai)",
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "LLM model to use",
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "LLM server URL",
		},
		&cli.Float64Flag{
			Name:  "temperature",
			Usage: "Set the LLM temperature",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Maximum characters per chunk",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Chunks generated concurrently",
		},
		&cli.DurationFlag{
			Name:  "pacing",
			Usage: "Pause between batches",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Retries for rate limits and server errors (-1 disables)",
		},
		&cli.StringFlag{
			Name:  "transcript-url",
			Usage: "Transcript service URL",
		},
		&cli.StringFlag{
			Name:  "db-url",
			Usage: "PostgreSQL connection string",
		},
	}
}
