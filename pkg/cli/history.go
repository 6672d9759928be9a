package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		userID string
		offset int64
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "Filter by user ID",
			Destination: &userID,
		},
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "Number of interactions to skip",
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of interactions",
			Value:       10,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List past interactions",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggingContext(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			interactions, err := repo.ListInteractions(ctx, userID, int(offset), int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list interactions")
			}

			w := c.Root().Writer
			if len(interactions) == 0 {
				fmt.Fprintf(w, "No interactions\n")
				return nil
			}

			for _, interaction := range interactions {
				fmt.Fprintf(w, "%s  %s  user=%s\n", interaction.CreatedAt.Format("2006-01-02 15:04:05"),
					interaction.ID, interaction.UserID)
				fmt.Fprintf(w, "  Q: %s\n", interaction.Message)
				fmt.Fprintf(w, "  A: %s\n", interaction.Response)
				if interaction.Intent != "" {
					fmt.Fprintf(w, "  Intent: %s\n", interaction.Intent)
				}
			}
			return nil
		},
	}
}
