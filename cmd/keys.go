package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/longkey1/nostack/internal/nostack/credentials"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// keysCmd represents the keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage saved API keys",
	Long: `Manage API keys saved in the OS keyring.

Keys are only saved while the saveApiKey setting is on:
  nostack settings set saveApiKey true

A key in the config file or environment always wins over a saved key.`,
}

// keysListCmd represents the keys list command
var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show where each provider's API key comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tSOURCE\tKEY")
		fmt.Fprintln(w, "--------\t------\t---")
		for _, provider := range config.Providers {
			source, key := "-", "-"
			if v := configuredToken(a.cfg, provider); v != "" {
				source, key = "config/env", credentials.Mask(v)
			} else if a.creds != nil {
				if v, err := a.creds.Get(provider); err == nil {
					source, key = "keyring", credentials.Mask(v)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", provider, source, key)
		}
		w.Flush()

		if !a.prefs.SaveAPIKey {
			fmt.Println("\nSaving API keys is turned off. Enable it with:")
			fmt.Println("  nostack settings set saveApiKey true")
		}
		return nil
	},
}

// configuredToken returns the token set in the config file or environment.
func configuredToken(cfg *config.Config, provider string) string {
	switch provider {
	case "openai":
		return cfg.OpenAIToken
	case "anthropic":
		return cfg.AnthropicToken
	case "gemini":
		return cfg.GeminiToken
	}
	return ""
}

// keysSetCmd represents the keys set command
var keysSetCmd = &cobra.Command{
	Use:   "set <provider> [key]",
	Short: "Save the API key of a provider",
	Long: `Save the API key of a provider in the OS keyring.
Without a key argument the key is read from the terminal without echo, or
from stdin when it is not a terminal.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.prefs.SaveAPIKey {
			return credentials.ErrDisabled
		}
		creds, err := a.openCredentials()
		if err != nil {
			return err
		}

		var key string
		if len(args) > 1 {
			key = args[1]
		} else {
			key, err = readKey(args[0])
			if err != nil {
				return err
			}
		}

		if err := creds.Set(args[0], key); err != nil {
			return err
		}
		fmt.Printf("API key for %s saved (%s).\n", args[0], credentials.Mask(strings.TrimSpace(key)))
		return nil
	},
}

func readKey(provider string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading key from stdin: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprintf(os.Stderr, "%s API key: ", provider)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return string(b), nil
}

// keysDeleteCmd represents the keys delete command
var keysDeleteCmd = &cobra.Command{
	Use:   "delete <provider|all>",
	Short: "Delete a saved API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		creds, err := a.openCredentials()
		if err != nil {
			return err
		}

		if args[0] == "all" {
			if err := creds.DeleteAll(); err != nil {
				return err
			}
			fmt.Println("All saved API keys deleted.")
			return nil
		}
		if err := creds.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("API key for %s deleted.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysDeleteCmd)
}
