package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"surveybox/internal/admin"
	"surveybox/internal/config"
	"surveybox/internal/docstore"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flags := append(config.LogFlags(), config.StoreFlags()...)

	app := &cli.App{
		Name:  "managedb",
		Usage: "add accounts, locations and streams",
		Flags: flags,
		Commands: []*cli.Command{
			{
				Name:  "add-account",
				Usage: "create a new account (a business or organization)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "account name, e.g. Cafe Allegro", Required: true},
				},
				Action: withAdmin(func(c *cli.Context, a *admin.Admin) (string, error) {
					return a.CreateAccount(c.Context, c.String("name"))
				}),
			},
			{
				Name:  "add-location",
				Usage: "create a location under an existing account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.Float64Flag{Name: "lat", Required: true},
					&cli.Float64Flag{Name: "lon", Required: true},
				},
				Action: withAdmin(func(c *cli.Context, a *admin.Admin) (string, error) {
					return a.CreateLocation(c.Context, c.String("account-id"), c.String("name"), c.Float64("lat"), c.Float64("lon"))
				}),
			},
			{
				Name:  "add-stream",
				Usage: "create a stream for a location, one per survey box",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account-id", Required: true},
					&cli.StringFlag{Name: "location-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: withAdmin(func(c *cli.Context, a *admin.Admin) (string, error) {
					return a.CreateStream(c.Context, c.String("account-id"), c.String("location-id"), c.String("name"))
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "managedb:", err)
		os.Exit(1)
	}
}

// withAdmin opens the store, runs fn and prints the created id.
func withAdmin(fn func(c *cli.Context, a *admin.Admin) (string, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		log, err := config.Logger(c)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		st, err := docstore.Open(c.Context, config.StoreOptions(c), log)
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := fn(c, admin.New(st, log))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, id)
		return nil
	}
}
