package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/usecase/pipeline"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg         config
		userID      string
		hiveContext string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID",
			Sources:     cli.EnvVars("MEERA_USER_ID"),
			Destination: &userID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "hive-context",
			Usage:       "Extra knowledge text appended to the prompt",
			Destination: &hiveContext,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a single message through the pipeline",
		ArgsUsage: "<message>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			message := strings.Join(c.Args().Slice(), " ")
			if message == "" {
				return goerr.New("message is required")
			}

			ctx = cfg.loggingContext(ctx)

			p, repo, err := cfg.newPipeline(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			result, err := p.Invoke(ctx, pipeline.Input{
				UserID:      userID,
				Message:     message,
				HiveContext: hiveContext,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to process message")
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 80))
			fmt.Fprintf(w, "MEERA RESPONSE:\n")
			fmt.Fprintf(w, "%s\n", strings.Repeat("=", 80))
			fmt.Fprintf(w, "%s\n", result.Response)
			fmt.Fprintf(w, "%s\n", strings.Repeat("=", 80))
			if result.Intent != "" {
				fmt.Fprintf(w, "\nIntent: %s\n", result.Intent)
			}
			fmt.Fprintf(w, "Memories created: %d\n", len(result.MemoryIDs))

			return nil
		},
	}
}
