// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/partners/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "partners",
		Usage: "Partner catalog with semantic, keyword and full-text recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Storage backend (badger, postgres)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
			},
			&cli.StringFlag{
				Name:  "postgres-url",
				Usage: "PostgreSQL connection URL; implies --store postgres",
			},
			&cli.StringFlag{
				Name:  "embedding-backend",
				Usage: "Embedding backend (openai, hugot)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "OpenAI-compatible embedding service URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "model-path",
				Usage: "ONNX model directory for the hugot backend",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a partner",
				Action:    addCommand,
				Flags:     partnerFlags(),
				ArgsUsage: " ",
			},
			{
				Name:      "get",
				Usage:     "Show a partner",
				ArgsUsage: "ID",
				Action:    getCommand,
			},
			{
				Name:   "list",
				Usage:  "List partners ordered by ID",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset", Usage: "Number of partners to skip"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum partners to show", Value: 100},
				},
			},
			{
				Name:      "update",
				Usage:     "Change fields of a partner",
				ArgsUsage: "ID",
				Action:    updateCommand,
				Flags: append(partnerFlags(),
					&cli.StringSliceFlag{
						Name:  "clear",
						Usage: "Clear an optional field (repeatable)",
					},
					&cli.StringFlag{
						Name:  "patch",
						Usage: "JSON object of fields to change; null clears a field",
					},
				),
			},
			{
				Name:      "delete",
				Usage:     "Delete a partner",
				ArgsUsage: "ID",
				Action:    deleteCommand,
			},
			{
				Name:      "search",
				Usage:     "Recommend partners for a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Ranking strategy (semantic, keyword, fulltext)",
						Value:   "semantic",
					},
					&cli.IntFlag{
						Name:    "top-n",
						Aliases: []string{"n"},
						Usage:   "Number of results",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Create partners from a JSON array",
				ArgsUsage: "FILE (- for stdin)",
				Action:    importCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every partner embedding with the configured model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of partners to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N partners",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each embedding call",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "index",
				Usage:  "Build the vector and lexical search indexes",
				Action: indexCommand,
			},
		},
	}
}

func partnerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Partner name"},
		&cli.StringFlag{Name: "description", Usage: "Free-text description"},
		&cli.StringFlag{Name: "industry", Usage: "Industry"},
		&cli.StringFlag{Name: "location", Usage: "Location"},
		&cli.StringFlag{Name: "website", Usage: "Website URL"},
		&cli.StringFlag{Name: "email", Usage: "Contact email"},
		&cli.StringFlag{Name: "phone", Usage: "Contact phone"},
		&cli.StringSliceFlag{
			Name:  "attr",
			Usage: "Additional data as key=value; JSON values are decoded (repeatable)",
		},
	}
}

// setup loads the env file and configures the default logger.
func setup(c *cli.Context) error {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return fmt.Errorf("failed to load %s: %w", c.String("env-file"), err)
	}
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	levelStr := c.String("log-level")
	if levelStr == "" {
		levelStr = os.Getenv(config.Prefix + "_LOG_LEVEL")
	}
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
