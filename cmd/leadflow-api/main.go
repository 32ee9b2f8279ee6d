package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/leadflow/pkg/log"
)

const (
	defaultPort          = 9091
	defaultMaxConcurrent = 10
)

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "leadflow-api",
		Usage:                 "Run lead enrichment workflows over CSV datasets",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "api-key",
				Usage:    "Sixtyfour API key used by the enrichment blocks",
				Required: true,
				Sources:  cli.EnvVars("SIXTYFOUR_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Sixtyfour API base URL (defaults to the public endpoint)",
				Sources: cli.EnvVars("SIXTYFOUR_API_URL"),
			},
			&cli.StringFlag{
				Name:    "uploads-dir",
				Usage:   "Directory holding uploaded CSV files",
				Value:   "./uploads",
				Sources: cli.EnvVars("UPLOADS_DIR"),
			},
			&cli.StringFlag{
				Name:    "outputs-dir",
				Usage:   "Directory where save_csv blocks write results",
				Value:   "./outputs",
				Sources: cli.EnvVars("OUTPUTS_DIR"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent-api-calls",
				Usage:   "Upper bound on simultaneous enrichment API calls per block",
				Value:   defaultMaxConcurrent,
				Sources: cli.EnvVars("MAX_CONCURRENT_API_CALLS"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Leadflow API")

			api, cleanup := NewAPI(ctx, logger, Config{
				APIKey:        command.String("api-key"),
				APIURL:        command.String("api-url"),
				UploadsDir:    command.String("uploads-dir"),
				OutputsDir:    command.String("outputs-dir"),
				MaxConcurrent: command.Int("max-concurrent-api-calls"),
				EventBus:      command.String("event-bus"),
			})
			defer cleanup()

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
