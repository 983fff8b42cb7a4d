package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/longkey1/nostack/internal/nostack"
)

// Setting keys.
const (
	KeyTheme           = "theme"
	KeyHue             = "hue"
	KeySaturation      = "saturation"
	KeyTemperature     = "temperature"
	KeySystemPrompt    = "systemPrompt"
	KeySaveAPIKey      = "saveApiKey"
	KeyNotWarnedAPIKey = "notWarnedApiKey"
	KeyModelSettings   = "modelSettings"
)

// Themes accepted by the theme setting. "system" follows the terminal background.
var Themes = []string{"light", "dark", "system"}

// Settings is a snapshot of the user preferences.
type Settings struct {
	Theme           string
	Hue             int
	Saturation      int
	Temperature     float64
	SystemPrompt    string
	SaveAPIKey      bool
	NotWarnedAPIKey bool
}

// Defaults returns the settings used when nothing has been stored.
func Defaults() Settings {
	return Settings{
		Theme:        "light",
		Hue:          230,
		Saturation:   5,
		Temperature:  1.0,
		SystemPrompt: nostack.DefaultSystemPrompt,
	}
}

// setting describes one user-editable key.
type setting struct {
	help     string
	validate func(string) (string, error)
}

var editable = map[string]setting{
	KeyTheme: {
		help: "light, dark or system",
		validate: func(v string) (string, error) {
			for _, t := range Themes {
				if v == t {
					return v, nil
				}
			}
			return "", fmt.Errorf("theme must be one of %s", strings.Join(Themes, ", "))
		},
	},
	KeyHue:         {help: "accent hue, 0-360", validate: intRange(0, 360)},
	KeySaturation:  {help: "accent saturation in percent, 0-100", validate: intRange(0, 100)},
	KeyTemperature: {help: "sampling temperature, 0.0-2.0", validate: floatRange(0, 2)},
	KeySystemPrompt: {
		help: "default system prompt",
		validate: func(v string) (string, error) {
			return strings.TrimSpace(v), nil
		},
	},
	KeySaveAPIKey: {help: "save API keys in the OS keyring (true/false)", validate: boolFlag},
}

func intRange(lo, hi int) func(string) (string, error) {
	return func(v string) (string, error) {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < lo || n > hi {
			return "", fmt.Errorf("value must be an integer between %d and %d", lo, hi)
		}
		return strconv.Itoa(n), nil
	}
}

func floatRange(lo, hi float64) func(string) (string, error) {
	return func(v string) (string, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f < lo || f > hi {
			return "", fmt.Errorf("value must be a number between %.1f and %.1f", lo, hi)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
}

// Booleans are stored as "1" and "0".
func boolFlag(v string) (string, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return "", fmt.Errorf("value must be true or false")
	}
	if b {
		return "1", nil
	}
	return "0", nil
}

// EditableKeys returns the keys `settings set` accepts, sorted.
func EditableKeys() []string {
	keys := make([]string, 0, len(editable))
	for k := range editable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Help returns the description of an editable key.
func Help(key string) string {
	return editable[key].help
}

// Update validates and stores a user-supplied value.
func (s *Store) Update(key, value string) error {
	def, ok := editable[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (available: %s)", key, strings.Join(EditableKeys(), ", "))
	}
	normalized, err := def.validate(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return s.Set(key, normalized)
}

// SetBool stores a boolean flag.
func (s *Store) SetBool(key string, v bool) error {
	if v {
		return s.Set(key, "1")
	}
	return s.Set(key, "0")
}

// Load reads the settings snapshot, filling absent or unreadable values
// with defaults.
func (s *Store) Load() (Settings, error) {
	out := Defaults()

	values := map[string]string{}
	for _, key := range []string{KeyTheme, KeyHue, KeySaturation, KeyTemperature, KeySystemPrompt, KeySaveAPIKey, KeyNotWarnedAPIKey} {
		v, ok, err := s.Get(key)
		if err != nil {
			return out, err
		}
		if ok {
			values[key] = v
		}
	}

	if v, ok := values[KeyTheme]; ok && v != "" {
		out.Theme = v
	}
	if v, ok := values[KeyHue]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			out.Hue = n
		}
	}
	if v, ok := values[KeySaturation]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			out.Saturation = n
		}
	}
	if v, ok := values[KeyTemperature]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out.Temperature = f
		}
	}
	if v, ok := values[KeySystemPrompt]; ok && v != "" {
		out.SystemPrompt = v
	}
	out.SaveAPIKey = values[KeySaveAPIKey] == "1"
	out.NotWarnedAPIKey = values[KeyNotWarnedAPIKey] == "1"

	return out, nil
}
