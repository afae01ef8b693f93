package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2/google"
)

const datastoreScope = "https://www.googleapis.com/auth/datastore"

func main() {
	app := &cli.App{
		Name:  "fstoken",
		Usage: "print an OAuth access token for the Firestore REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "credentials", Usage: "service account JSON file", Required: true, EnvVars: []string{"SURVEYBOX_CREDENTIALS"}},
		},
		Action: func(c *cli.Context) error {
			data, err := os.ReadFile(c.String("credentials"))
			if err != nil {
				return fmt.Errorf("read credentials: %w", err)
			}
			creds, err := google.CredentialsFromJSON(c.Context, data, datastoreScope)
			if err != nil {
				return fmt.Errorf("parse credentials: %w", err)
			}
			tok, err := creds.TokenSource.Token()
			if err != nil {
				return fmt.Errorf("mint token: %w", err)
			}
			fmt.Fprintln(c.App.Writer, tok.AccessToken)
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fstoken:", err)
		os.Exit(1)
	}
}
