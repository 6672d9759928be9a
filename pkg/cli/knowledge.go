package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
	"github.com/urfave/cli/v3"
)

func knowledgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "knowledge",
		Usage: "Manage hive knowledge entries",
		Commands: []*cli.Command{
			knowledgeAddCommand(),
			knowledgeSearchCommand(),
		},
	}
}

func knowledgeAddCommand() *cli.Command {
	var (
		cfg     config
		userID  string
		title   string
		content string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "Owner user ID (omit for a global entry)",
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "Entry title",
			Destination: &title,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "content",
			Usage:       "Entry content",
			Destination: &content,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Add a knowledge entry",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggingContext(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			entry := &model.Knowledge{
				ID:        model.NewKnowledgeID(),
				UserID:    userID,
				Title:     title,
				Content:   content,
				Metadata:  map[string]string{"source": "operator"},
				CreatedAt: time.Now(),
			}

			if err := repo.PutKnowledge(ctx, entry); err != nil {
				return goerr.Wrap(err, "failed to add knowledge entry")
			}

			fmt.Fprintf(c.Root().Writer, "Added knowledge entry %s\n", entry.ID)
			return nil
		},
	}
}

func knowledgeSearchCommand() *cli.Command {
	var (
		cfg    config
		userID string
		limit  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User scope (global entries always match)",
			Destination: &userID,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of results",
			Value:       5,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search knowledge entries",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.Args().First()
			if query == "" {
				return goerr.New("query is required")
			}

			ctx = cfg.loggingContext(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.SearchKnowledge(ctx, userID, query, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to search knowledge")
			}

			w := c.Root().Writer
			if len(entries) == 0 {
				fmt.Fprintf(w, "No matching entries\n")
				return nil
			}

			for _, entry := range entries {
				scope := "global"
				if !entry.Global() {
					scope = entry.UserID
				}
				fmt.Fprintf(w, "[%.3f] (%s) %s: %s\n", entry.Score, scope, entry.Title, entry.Content)
			}
			return nil
		},
	}
}
