// Package prompt loads TOML prompt templates and fills in their
// {{placeholders}}.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/rs/zerolog/log"
)

// Formatted is a template with its placeholders replaced.
type Formatted struct {
	Name        string
	System      string
	User        string
	Model       *string
	Temperature *float64
}

// Find returns the path of the named template. Later directories take
// precedence over earlier ones.
func Find(name string, dirs []string) (string, error) {
	file := name
	if !strings.HasSuffix(file, ".toml") {
		file += ".toml"
	}

	var found string
	for _, dir := range dirs {
		candidate := filepath.Join(dir, file)
		if _, err := os.Stat(candidate); err == nil {
			found = candidate
		}
	}
	if found == "" {
		return "", fmt.Errorf("prompt file '%s' not found in any of the prompt directories: %v", file, dirs)
	}
	return found, nil
}

// Format loads the named template and replaces {{input}} with message and
// any other {{key}} with the matching "key:value" argument.
func Format(message, name string, dirs []string, args []string) (*Formatted, error) {
	path, err := Find(name, dirs)
	if err != nil {
		return nil, err
	}

	tmpl, err := LoadPrompt(path)
	if err != nil {
		return nil, fmt.Errorf("error loading prompt file: %w", err)
	}

	argMap, err := processArgs(args)
	if err != nil {
		return nil, fmt.Errorf("error processing arguments: %w", err)
	}

	replacements := map[string]string{"input": message}
	for key, value := range argMap {
		replacements[key] = value
	}

	system := tmpl.System
	user := tmpl.User
	for key, value := range replacements {
		placeholder := fmt.Sprintf("{{%s}}", key)
		system = strings.ReplaceAll(system, placeholder, value)
		user = strings.ReplaceAll(user, placeholder, value)
	}
	if strings.TrimSpace(user) == "" {
		user = message
	}

	if tmpl.Model != nil {
		if _, _, err := nostack.ParseModelString(*tmpl.Model); err != nil {
			return nil, fmt.Errorf("invalid model format in prompt template: %w", err)
		}
	}
	if tmpl.Temperature != nil && (*tmpl.Temperature < 0 || *tmpl.Temperature > 2) {
		return nil, fmt.Errorf("temperature in prompt template must be between 0 and 2, got %g", *tmpl.Temperature)
	}

	return &Formatted{
		Name:        name,
		System:      system,
		User:        user,
		Model:       tmpl.Model,
		Temperature: tmpl.Temperature,
	}, nil
}

// Entry is one template found by List.
type Entry struct {
	Name string // path relative to its directory, without .toml
	Dir  string
}

// List returns every template under dirs, sorted by name. A name found in
// several directories is reported once, from the directory that wins.
func List(dirs []string) ([]Entry, error) {
	found := make(map[string]string)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Debug().Str("dir", dir).Msg("prompt directory does not exist")
			continue
		}

		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(info.Name(), ".toml") {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil
			}
			name := filepath.ToSlash(strings.TrimSuffix(rel, ".toml"))
			if prev, ok := found[name]; ok {
				log.Debug().Str("prompt", name).Str("previous", prev).Str("dir", dir).Msg("prompt overridden")
			}
			found[name] = dir
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking prompt directory %s: %w", dir, err)
		}
	}

	entries := make([]Entry, 0, len(found))
	for name, dir := range found {
		entries = append(entries, Entry{Name: name, Dir: dir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// processArgs processes the command line arguments and returns a map of key-value pairs
func processArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
			arg = strings.Trim(arg, `"`)
		}

		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid argument format: %s. Expected format: key:value", arg)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.ReplaceAll(value, `\:`, ":")
		value = strings.ReplaceAll(value, `\"`, `"`)

		if key == "input" {
			return nil, fmt.Errorf("'input' is a reserved keyword and cannot be used as a key")
		}
		result[key] = value
	}
	return result, nil
}
