// Command creditctl is the operator tool: credit grants and balances, text
// queue inspection, schema setup, provider keys and test tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "creditctl",
		Usage: "operate the generation studio",
		Commands: []*cli.Command{
			{
				Name:  "credits",
				Usage: "credit ledger",
				Commands: []*cli.Command{
					{
						Name:  "grant",
						Usage: "add credits to an owner",
						Flags: []cli.Flag{
							ownerFlag(),
							&cli.Int64Flag{Name: "amount", Usage: "credits to add", Required: true},
						},
						Action: creditsGrantAction,
					},
					{
						Name:   "balance",
						Usage:  "show an owner's balance",
						Flags:  []cli.Flag{ownerFlag()},
						Action: creditsBalanceAction,
					},
				},
			},
			{
				Name:  "queue",
				Usage: "text letter queue",
				Commands: []*cli.Command{
					{
						Name:   "status",
						Usage:  "show waiting and processing counts",
						Action: queueStatusAction,
					},
					{
						Name:   "stuck",
						Usage:  "list job ids left in the processing list",
						Action: queueStuckAction,
					},
					{
						Name:  "release",
						Usage: "drop a job id from the processing list",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "job", Usage: "job id", Required: true},
						},
						Action: queueReleaseAction,
					},
				},
			},
			{
				Name:  "db",
				Usage: "database schema",
				Commands: []*cli.Command{
					{
						Name:   "migrate",
						Usage:  "create tables and indexes when missing",
						Action: dbMigrateAction,
					},
				},
			},
			{
				Name:  "keys",
				Usage: "provider api keys kept in the database",
				Commands: []*cli.Command{
					{
						Name:  "set",
						Usage: "store an api key for a provider",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "provider", Usage: "gemini, replicate or openai", Required: true},
							&cli.StringFlag{Name: "key", Usage: "api key", Required: true},
						},
						Action: keysSetAction,
					},
				},
			},
			{
				Name:  "token",
				Usage: "sign a bearer token for an owner",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{Name: "secret", Usage: "HS256 secret", Sources: cli.EnvVars("JWT_SECRET"), Required: true},
					&cli.StringFlag{Name: "locale", Usage: "locale claim (en or id)"},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: defaultTokenTTL},
				},
				Action: tokenAction,
			},
		},
	}
}

func ownerFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "owner", Usage: "owner id (JWT subject)", Required: true}
}
