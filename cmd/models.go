/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/catalog"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	showAllModels bool
	remoteModels  bool
	refreshModels bool
)

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List available models",
	Long: `List the models that can be selected with --model.

By default the built-in catalog is shown, marking the default model and
whether an API key is configured for each provider. Hidden models are shown
with --all.

With --remote the model lists are fetched from the provider APIs. Lists are
cached for model_cache_hours hours; --refresh ignores the cache.

Example:
  nostack models                 # Catalog models
  nostack models anthropic       # Catalog models of one provider
  nostack models --remote        # Models reported by all providers
  nostack models gemini --remote --refresh`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		providers := a.catalog.Providers()
		if len(args) > 0 {
			if !contains(providers, args[0]) {
				return fmt.Errorf("unsupported provider '%s'\nSupported providers: %s", args[0], strings.Join(providers, ", "))
			}
			providers = []string{args[0]}
		}

		if remoteModels || refreshModels {
			return listRemoteModels(cmd.Context(), a, providers)
		}
		listCatalogModels(a, providers)
		return nil
	},
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// pad left-aligns s in a column of width terminal cells.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func listCatalogModels(a *app, providers []string) {
	type row struct{ model, name, key, def, desc string }
	var rows []row
	modelWidth, nameWidth := len("MODEL"), len("NAME")

	for _, provider := range providers {
		key := "no"
		if a.cfg.HasToken(provider) {
			key = "yes"
		}
		for _, m := range a.catalog.ByProvider(provider) {
			if m.Hidden && !showAllModels {
				continue
			}
			r := row{model: m.String(), name: m.Name, key: key, desc: m.Description}
			if m.IsDefault {
				r.def = "Yes"
			}
			if m.Hidden {
				r.name += " (hidden)"
			}
			modelWidth = max(modelWidth, runewidth.StringWidth(r.model))
			nameWidth = max(nameWidth, runewidth.StringWidth(r.name))
			rows = append(rows, r)
		}
	}

	fmt.Printf("%s  %s  %-7s  %-7s  %s\n", pad("MODEL", modelWidth), pad("NAME", nameWidth), "API KEY", "DEFAULT", "DESCRIPTION")
	fmt.Printf("%s  %s  %s  %s  %s\n",
		strings.Repeat("-", modelWidth),
		strings.Repeat("-", nameWidth),
		strings.Repeat("-", 7),
		strings.Repeat("-", 7),
		strings.Repeat("-", 40))
	for _, r := range rows {
		fmt.Printf("%s  %s  %-7s  %-7s  %s\n", pad(r.model, modelWidth), pad(r.name, nameWidth), r.key, r.def, r.desc)
	}

	fmt.Printf("\nUse a model with: nostack chat --model <model> [message]\n")
}

// remoteSource is a provider ready to have its model list fetched.
type remoteSource struct {
	name  string
	fetch catalog.FetchFunc
	err   error
}

type remoteResult struct {
	models []nostack.ModelInfo
	stale  bool
	err    error
}

// fetcherFunc builds the model list fetch for one provider from cfg.
type fetcherFunc func(cfg *config.Config, provider string) (catalog.FetchFunc, error)

func providerFetcher(cfg *config.Config, name string) (catalog.FetchFunc, error) {
	provider, err := newProvider(cfg, name)
	if err != nil {
		return nil, err
	}
	return provider.ListModels, nil
}

// remoteSources resolves tokens and builds the fetchers one provider at a
// time. The returned fetchers only see a snapshot of the config, so they
// never reach the keyring.
func remoteSources(cfg *config.Config, providers []string, build fetcherFunc) []remoteSource {
	snap := cfg.Snapshot(providers...)
	sources := make([]remoteSource, len(providers))
	for i, name := range providers {
		sources[i].name = name
		if !snap.HasToken(name) {
			sources[i].err = fmt.Errorf("no API key configured")
			continue
		}
		sources[i].fetch, sources[i].err = build(snap, name)
	}
	return sources
}

// fetchRemoteModels fetches the model lists of sources concurrently.
func fetchRemoteModels(ctx context.Context, cache *catalog.RemoteCache, sources []remoteSource, refresh bool) []remoteResult {
	results := make([]remoteResult, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		if src.err != nil {
			results[i].err = src.err
			continue
		}
		g.Go(func() error {
			if verbose {
				fmt.Fprintf(os.Stderr, "Listing models for provider: %s\n", src.name)
			}
			var r remoteResult
			if refresh {
				r.models, r.err = cache.Refresh(ctx, src.name, src.fetch)
			} else {
				r.models, r.stale, r.err = cache.Models(ctx, src.name, src.fetch)
			}
			if r.err == nil && len(r.models) == 0 {
				r.err = fmt.Errorf("no models returned from API")
			}
			results[i] = r
			return nil
		})
	}
	g.Wait()
	return results
}

func listRemoteModels(ctx context.Context, a *app, providers []string) error {
	cache := catalog.NewRemoteCache(a.store, time.Duration(a.cfg.ModelCacheHours)*time.Hour)
	sources := remoteSources(a.cfg, providers, providerFetcher)
	results := fetchRemoteModels(ctx, cache, sources, refreshModels)

	successCount := 0
	for i, result := range results {
		if result.err != nil {
			continue
		}
		if successCount > 0 {
			fmt.Println()
		}
		successCount++

		provider := providers[i]
		fmt.Printf("Available models for %s:", provider)
		if result.stale {
			fmt.Print(" (cached, refresh failed)")
		}
		fmt.Print("\n\n")

		width := len("MODEL")
		for _, m := range result.models {
			width = max(width, runewidth.StringWidth(nostack.FormatModelString(provider, m.ID)))
		}
		fmt.Printf("%s  %-7s  %s\n", pad("MODEL", width), "DEFAULT", "DESCRIPTION")
		fmt.Printf("%s  %s  %s\n", strings.Repeat("-", width), strings.Repeat("-", 7), strings.Repeat("-", 40))
		for _, m := range result.models {
			def := ""
			if m.IsDefault {
				def = "Yes"
			}
			fmt.Printf("%s  %-7s  %s\n", pad(nostack.FormatModelString(provider, m.ID), width), def, m.Description)
		}
	}

	for i, result := range results {
		if result.err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Skipping %s - %v\n", providers[i], result.err)
		}
	}
	return nil
}

// modelsDefaultCmd represents the models default command
var modelsDefaultCmd = &cobra.Command{
	Use:   "default <model>",
	Short: "Set the default model",
	Long:  `Set the model used when neither --model, NOSTACK_MODEL nor the config file name one.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateCatalog(args[0], func(c *catalog.Catalog, m *catalog.Model) error {
			return c.SetDefault(m.ID)
		}, "Default model set to %s\n")
	},
}

// modelsHideCmd represents the models hide command
var modelsHideCmd = &cobra.Command{
	Use:   "hide <model>",
	Short: "Hide a model from listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateCatalog(args[0], func(c *catalog.Catalog, m *catalog.Model) error {
			return c.SetHidden(m.ID, true)
		}, "Model %s hidden\n")
	},
}

// modelsShowCmd represents the models show command
var modelsShowCmd = &cobra.Command{
	Use:   "show <model>",
	Short: "Show a hidden model again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateCatalog(args[0], func(c *catalog.Catalog, m *catalog.Model) error {
			return c.SetHidden(m.ID, false)
		}, "Model %s shown\n")
	},
}

// updateCatalog applies fn to the model matching query and saves the
// per-model settings.
func updateCatalog(query string, fn func(*catalog.Catalog, *catalog.Model) error, done string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.catalog.Resolve(query)
	if err != nil {
		return err
	}
	if err := fn(a.catalog, m); err != nil {
		return err
	}
	if err := a.catalog.SaveSettings(a.store); err != nil {
		return fmt.Errorf("saving model settings: %w", err)
	}
	fmt.Printf(done, m.String())
	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsDefaultCmd)
	modelsCmd.AddCommand(modelsHideCmd)
	modelsCmd.AddCommand(modelsShowCmd)

	modelsCmd.Flags().BoolVarP(&showAllModels, "all", "a", false, "Include hidden models")
	modelsCmd.Flags().BoolVar(&remoteModels, "remote", false, "Fetch the model lists from the provider APIs")
	modelsCmd.Flags().BoolVar(&refreshModels, "refresh", false, "Ignore cached model lists (implies --remote)")
}
