package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/longkey1/nostack/internal/nostack/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change preferences",
	Long: `Show and change the preferences kept in the local settings database:
theme, accent colour, default temperature and system prompt, and whether
API keys are saved in the OS keyring.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowCmd.RunE(cmd, args)
	},
}

// settingsShowCmd represents the settings show command
var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p := a.prefs
		values := map[string]string{
			settings.KeyTheme:        p.Theme,
			settings.KeyHue:          strconv.Itoa(p.Hue),
			settings.KeySaturation:   strconv.Itoa(p.Saturation),
			settings.KeyTemperature:  strconv.FormatFloat(p.Temperature, 'f', -1, 64),
			settings.KeySystemPrompt: p.SystemPrompt,
			settings.KeySaveAPIKey:   strconv.FormatBool(p.SaveAPIKey),
		}

		st := a.styles()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, key := range settings.EditableKeys() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, values[key], st.Muted.Render(settings.Help(key)))
		}
		w.Flush()
		fmt.Printf("\nAccent: %s\n", st.Accent.Render("●"))
		return nil
	},
}

// settingsSetCmd represents the settings set command
var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Change a setting. Available keys: ` + strings.Join(settings.EditableKeys(), ", ") + `

Turning saveApiKey off deletes every key saved in the OS keyring.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		key, value := args[0], strings.Join(args[1:], " ")
		if err := a.store.Update(key, value); err != nil {
			return err
		}

		if key == settings.KeySaveAPIKey {
			prefs, err := a.store.Load()
			if err != nil {
				return err
			}
			switch {
			case prefs.SaveAPIKey:
				a.prefs.SaveAPIKey = true
				a.warnAboutKeys()
			case a.prefs.SaveAPIKey:
				if err := forgetKeys(a); err != nil {
					return err
				}
				fmt.Println("Saved API keys deleted.")
			}
		}

		fmt.Printf("%s updated.\n", key)
		return nil
	},
}

// forgetKeys removes every key from the keyring.
func forgetKeys(a *app) error {
	creds, err := a.openCredentials()
	if err != nil {
		return err
	}
	if err := creds.DeleteAll(); err != nil {
		return fmt.Errorf("deleting saved keys: %w", err)
	}
	return nil
}

// settingsResetCmd represents the settings reset command
var settingsResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Restore default settings",
	Long: `Restore a setting, or all settings and model preferences, to the defaults.
Resetting saveApiKey or everything deletes saved API keys.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		keys := append(settings.EditableKeys(), settings.KeyModelSettings, settings.KeyNotWarnedAPIKey)
		if len(args) > 0 {
			if settings.Help(args[0]) == "" {
				return fmt.Errorf("unknown setting %q (available: %s)", args[0], strings.Join(settings.EditableKeys(), ", "))
			}
			keys = []string{args[0]}
		} else if !confirm("Reset all settings to their defaults?") {
			fmt.Println("Reset cancelled.")
			return nil
		}

		for _, key := range keys {
			if err := a.store.Delete(key); err != nil {
				return fmt.Errorf("resetting %s: %w", key, err)
			}
			log.Debug().Str("key", key).Msg("setting reset")
		}

		for _, key := range keys {
			if key == settings.KeySaveAPIKey && a.prefs.SaveAPIKey {
				if err := forgetKeys(a); err != nil {
					return err
				}
				fmt.Println("Saved API keys deleted.")
			}
		}

		fmt.Println("Settings reset.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}
