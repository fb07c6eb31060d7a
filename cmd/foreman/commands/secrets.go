package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/internal/secrets"
)

// NewSecretsCommand returns the secrets subcommand.
func NewSecretsCommand() *cli.Command {
	return &cli.Command{
		Name:  "secrets",
		Usage: "Manage encrypted config values",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Generate the encryption key (no-op when present)",
				Action: func(_ context.Context, _ *cli.Command) error {
					path := secrets.KeyPath()
					if err := secrets.GenerateIdentity(path); err != nil {
						return fmt.Errorf("generate key: %w", err)
					}
					fmt.Printf("key ready at %s\n", path)
					return nil
				},
			},
			{
				Name:      "encrypt",
				Usage:     "Encrypt a value for use in config.jsonc",
				ArgsUsage: "<value>",
				Action:    runSecretsEncrypt,
			},
		},
	}
}

func runSecretsEncrypt(_ context.Context, cmd *cli.Command) error {
	value := cmd.Args().First()
	if value == "" {
		return fmt.Errorf("usage: foreman secrets encrypt <value>")
	}

	identity, err := secrets.LoadIdentity(secrets.KeyPath())
	if err != nil {
		return fmt.Errorf("load key (run 'foreman secrets init' first): %w", err)
	}

	blob, err := secrets.Encrypt(value, identity.Recipient())
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	fmt.Println(blob)
	return nil
}
