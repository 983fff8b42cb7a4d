package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/longkey1/nostack/internal/nostack/catalog"
	"github.com/longkey1/nostack/internal/nostack/chat"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/longkey1/nostack/internal/nostack/credentials"
	"github.com/longkey1/nostack/internal/nostack/session"
	"github.com/longkey1/nostack/internal/nostack/settings"
	"github.com/longkey1/nostack/internal/render"
	"github.com/rs/zerolog/log"
)

// app bundles what most commands need: configuration, the settings
// database, saved keys, the model catalog and the session store.
type app struct {
	cfg      *config.Config
	store    *settings.Store
	prefs    settings.Settings
	creds    *credentials.Store
	catalog  *catalog.Catalog
	sessions *session.Store
}

func loadApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	store, err := settings.OpenDefault()
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	prefs, err := store.Load()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := cat.LoadSettings(store); err != nil {
		log.Warn().Err(err).Msg("ignoring saved model settings")
	}

	sessions, err := session.DefaultStore()
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		prefs:    prefs,
		catalog:  cat,
		sessions: sessions,
	}

	if prefs.SaveAPIKey {
		creds, err := credentials.Open(true)
		if err != nil {
			log.Warn().Err(err).Msg("saved API keys are unavailable")
		} else {
			a.creds = creds
			cfg.SetCredentials(creds)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Debug().Err(err).Msg("closing settings")
	}
}

// openCredentials returns the keyring store, opening it when saving keys
// is turned off so stored keys can still be listed or removed.
func (a *app) openCredentials() (*credentials.Store, error) {
	if a.creds != nil {
		return a.creds, nil
	}
	return credentials.Open(a.prefs.SaveAPIKey)
}

// pickModel resolves the model to use. An explicit choice is used as is.
// Without one the configured model, or the catalog default, is used
// unless its provider has no key, in which case the first visible model
// with a key is picked.
func (a *app) pickModel(explicit string) (*catalog.Model, error) {
	if explicit != "" {
		return a.catalog.Resolve(explicit)
	}

	current := a.catalog.Default()
	if a.cfg.Model != "" {
		m, err := a.catalog.Resolve(a.cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("invalid model in config: %w", err)
		}
		current = m
	}

	m, err := a.catalog.Select(current, a.cfg.HasToken)
	if errors.Is(err, catalog.ErrNoKey) {
		// Keep the current model so the request reports the missing key.
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	if current != nil && m != current {
		log.Info().Str("from", current.String()).Str("to", m.String()).Msg("switched to a model with an API key")
	}
	return m, nil
}

// newEngine builds a chat engine for model writing its output to out.
func (a *app) newEngine(model *catalog.Model, out io.Writer, raw bool) (*chat.Engine, error) {
	provider, err := newProvider(a.cfg, model.Provider)
	if err != nil {
		return nil, err
	}
	return chat.NewEngine(provider, *model, a.newView(out, raw), chat.Options{
		Temperature: a.prefs.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		System:      a.prefs.SystemPrompt,
	}), nil
}

// newView returns a live view rendering markdown when out is the terminal.
func (a *app) newView(out io.Writer, raw bool) *render.LiveView {
	var md *render.Markdown
	if !raw && a.cfg.RenderMarkdown && out == os.Stdout && render.IsStdoutTTY() {
		m, err := render.NewMarkdown(a.prefs.Theme, render.Width())
		if err != nil {
			log.Debug().Err(err).Msg("markdown rendering disabled")
		} else {
			md = m
		}
	}
	return render.NewLiveView(out, md, render.DefaultRepaintInterval)
}

func (a *app) styles() render.Styles {
	return render.NewStyles(a.prefs.Theme, a.prefs.Hue, a.prefs.Saturation)
}

// renderMarkdown renders s for stdout, or returns it unchanged when
// stdout is not a terminal.
func (a *app) renderMarkdown(s string) string {
	if !a.cfg.RenderMarkdown || !render.IsStdoutTTY() {
		return s
	}
	md, err := render.NewMarkdown(a.prefs.Theme, render.Width())
	if err != nil {
		return s
	}
	return strings.TrimRight(md.Render(s), "\n") + "\n"
}

// warnAboutKeys prints a one-time notice about how API keys are handled.
func (a *app) warnAboutKeys() {
	if a.prefs.NotWarnedAPIKey {
		return
	}
	fmt.Fprintln(os.Stderr, `Note: API keys are sent only to the provider you chat with.
They are read from the config file or environment, or from the OS keyring
when saving keys is enabled ('nostack settings set saveApiKey true').`)
	if err := a.store.SetBool(settings.KeyNotWarnedAPIKey, true); err != nil {
		log.Debug().Err(err).Msg("failed to record key notice")
		return
	}
	a.prefs.NotWarnedAPIKey = true
}

// confirm asks a yes/no question on stderr.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}
