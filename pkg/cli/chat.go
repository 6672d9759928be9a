package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/usecase/pipeline"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg    config
		userID string
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
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, retrievalFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggingContext(ctx)

			p, repo, err := cfg.newPipeline(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started. Type 'exit' to quit.\n")

			var history []model.Message
			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt || err == io.EOF {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				if line == "exit" {
					break
				}
				if line == "" {
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " thinking..."
				sp.Start()

				result, err := p.Invoke(ctx, pipeline.Input{
					UserID:  userID,
					Message: line,
					History: history,
				})
				sp.Stop()

				if err != nil {
					return goerr.Wrap(err, "failed to process message")
				}

				fmt.Fprintf(w, "%s\n", result.Response)
				history = result.History
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}
