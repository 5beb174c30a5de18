// Command mailengine drives the mail session engine from the terminal:
// interactive provider login, silent session restore, and OAuth client
// credential management.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-engine/internal/engine"
	"github.com/nhle/mail-engine/internal/model"
)

var configPath string

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	rootCmd := &cobra.Command{
		Use:          "mailengine",
		Short:        "Sign in to a mail provider and fetch a recent inbox summary",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(),
		"path to the configuration file")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newSettingsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <provider>",
		Short: "Sign in to a provider (google or outlook) and fetch the inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := model.ParseProvider(args[0])
			if err != nil {
				return err
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			result, err := eng.LoginAndFetch(context.Background(), provider)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <provider>",
		Short: "Restore a saved session without opening a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := model.ParseProvider(args[0])
			if err != nil {
				return err
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			result, err := eng.TryRestoreSession(context.Background(), provider)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Printf("No saved session for %s. Run: mailengine login %s\n",
					provider.Label(), provider)
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

func newSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage stored OAuth client credentials",
	}
	settingsCmd.AddCommand(newSettingsSetCmd())
	settingsCmd.AddCommand(newSettingsShowCmd())
	return settingsCmd
}

func newSettingsSetCmd() *cobra.Command {
	var clientID, clientSecret string

	cmd := &cobra.Command{
		Use:   "set <provider>",
		Short: "Save the OAuth client id and optional secret for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := model.ParseProvider(args[0])
			if err != nil {
				return err
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			creds := model.ProviderCredentials{
				ClientID:     clientID,
				ClientSecret: clientSecret,
			}
			if err := eng.SaveProviderCredentials(context.Background(), provider, creds); err != nil {
				return err
			}
			fmt.Printf("Saved credentials for %s.\n", provider.Label())
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret (optional)")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show which providers have stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			settings, err := eng.LoadOAuthSettings(context.Background())
			if err != nil {
				return err
			}

			for _, provider := range []model.Provider{model.ProviderGoogle, model.ProviderOutlook} {
				creds := settings.ForProvider(provider)
				if creds == nil {
					fmt.Printf("%-8s not configured\n", provider.Label())
					continue
				}
				secret := "no secret"
				if creds.ClientSecret != "" {
					secret = "secret set"
				}
				fmt.Printf("%-8s %s (%s)\n", provider.Label(), creds.ClientID, secret)
			}
			return nil
		},
	}
}

func openEngine() (*engine.Engine, error) {
	cfg, err := model.LoadEngineConfig(configPath)
	if err != nil {
		return nil, err
	}
	return engine.New(cfg)
}

func printResult(result *model.LoginResult) {
	fmt.Printf("Signed in to %s as %s (%d messages)\n\n",
		result.Provider.Label(), result.Account, len(result.Messages))
	for i, msg := range result.Messages {
		fmt.Printf("%2d. %s\n    %s | %s\n    %s\n",
			i+1, msg.Subject, msg.From, msg.Date, previewLine(msg.Body))
	}
}

// previewLine collapses a body preview onto one trimmed line.
func previewLine(body string) string {
	line := strings.Join(strings.Fields(body), " ")
	if len(line) > 100 {
		line = line[:100] + "…"
	}
	return line
}
