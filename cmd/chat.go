/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/longkey1/nostack/internal/nostack/chat"
	promptpkg "github.com/longkey1/nostack/internal/nostack/prompt"
	"github.com/longkey1/nostack/internal/nostack/session"
	"github.com/longkey1/nostack/internal/render"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	model           string
	prompt          string
	argFlags        []string
	useEditor       bool
	imagePaths      []string
	systemPrompt    string
	temperature     float64
	rawOutput       bool
	sessionID       string
	newSession      bool
	sessionName     string
	ignoreThreshold bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message and stream the response",
	Long: `Send a message to a model and stream the response to stdout.

Without --session or --new-session this is a one-time request.
For interactive multi-turn conversations, use 'nostack sessions start' instead.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.

Images are attached with --image (repeatable). Images larger than max_image_size
pixels on either side are scaled down before sending.

The model may be given as provider:model, a catalog id or part of a model name.
Model priority: --model > NOSTACK_MODEL > prompt template > config > catalog default.

The prompt file should be in TOML format with the following structure:
system = "System prompt with optional {{input}} placeholder"
user = "User prompt with optional {{input}} placeholder"
model = "provider:model"  # Optional
temperature = 0.7         # Optional`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID != "" && newSession {
			return fmt.Errorf("cannot specify both --session and --new-session")
		}
		if sessionID != "" && prompt != "" {
			return fmt.Errorf("cannot use --prompt with existing session")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		message, err := readMessage(args)
		if err != nil {
			return err
		}

		attachments := chat.NewAttachments(a.cfg.MaxImageSize)
		for _, path := range imagePaths {
			desc, err := attachments.Add(path)
			if err != nil {
				return fmt.Errorf("attaching image: %w", err)
			}
			log.Debug().Str("path", path).Str("image", desc).Msg("image attached")
		}
		if strings.TrimSpace(message) == "" && attachments.Len() == 0 {
			return fmt.Errorf("message is empty")
		}

		var sess *session.Session
		persist := true

		if sessionID != "" {
			sess, err = a.sessions.FindByPrefix(sessionID)
			if err != nil {
				return fmt.Errorf("finding session: %w", err)
			}
			if !checkThreshold(a, sess) {
				fmt.Fprintln(os.Stderr, "Cancelled.")
				return nil
			}
			if cmd.Flags().Changed("model") {
				m, err := a.catalog.Resolve(model)
				if err != nil {
					return err
				}
				sess.Model = m.String()
			}
			log.Debug().Str("session", sess.GetShortID()).Str("model", sess.Model).Msg("continuing session")
		} else {
			persist = newSession

			var tmpl *promptpkg.Formatted
			if prompt != "" {
				tmpl, err = promptpkg.Format(message, prompt, a.cfg.PromptDirs, argFlags)
				if err != nil {
					return fmt.Errorf("formatting message with prompt: %w", err)
				}
				message = tmpl.User
			}

			explicit := modelFromFlags(cmd)
			if explicit == "" && tmpl != nil && tmpl.Model != nil {
				explicit = *tmpl.Model
			}
			m, err := a.pickModel(explicit)
			if err != nil {
				return err
			}

			sess = session.NewSession(m.String())
			sess.Name = sessionName
			if tmpl != nil {
				sess.TemplateName = tmpl.Name
				sess.SystemPrompt = tmpl.System
				sess.Temperature = tmpl.Temperature
			}
		}

		if cmd.Flags().Changed("system") {
			sess.SystemPrompt = systemPrompt
		}
		if cmd.Flags().Changed("temperature") {
			if temperature < 0 || temperature > 2 {
				return fmt.Errorf("temperature must be between 0 and 2")
			}
			t := temperature
			sess.Temperature = &t
		}

		m, err := a.catalog.Resolve(sess.Model)
		if err != nil {
			return err
		}
		engine, err := a.newEngine(m, os.Stdout, rawOutput)
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}
		a.warnAboutKeys()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		_, sendErr := engine.Send(ctx, sess, message, attachments.Apply())
		if errors.Is(sendErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\n[interrupted]")
		}

		if persist {
			if err := a.sessions.Save(sess); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
		}
		if sendErr != nil && !errors.Is(sendErr, context.Canceled) {
			return fmt.Errorf("chat request failed: %w", sendErr)
		}

		if newSession {
			fmt.Fprintf(os.Stderr, "\nSession created: %s\n", sess.GetShortID())
			fmt.Fprintf(os.Stderr, "Path: %s\n", a.sessions.Path(sess.ID))
			fmt.Fprintf(os.Stderr, "\nNext time, use:\n  nostack chat -s %s \"your message\"\n", sess.GetShortID())
			fmt.Fprintf(os.Stderr, "For interactive mode, use:\n  nostack sessions start %s\n", sess.GetShortID())
		}
		return nil
	},
}

// modelFromFlags returns the model chosen with --model or NOSTACK_MODEL.
func modelFromFlags(cmd *cobra.Command) string {
	if cmd.Flags().Changed("model") {
		return model
	}
	return os.Getenv("NOSTACK_MODEL")
}

// readMessage takes the message from the arguments, the editor or stdin.
func readMessage(args []string) (string, error) {
	if useEditor {
		message, err := getMessageFromEditor("")
		if err != nil {
			return "", fmt.Errorf("getting message from editor: %w", err)
		}
		return message, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if render.IsStdinTTY() && len(imagePaths) == 0 {
		return "", fmt.Errorf("no message given (pass it as an argument, pipe it to stdin or use --editor)")
	}
	if render.IsStdinTTY() {
		return "", nil
	}
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimSpace(string(input)), nil
}

// checkThreshold warns about long sessions and asks whether to continue.
func checkThreshold(a *app, sess *session.Session) bool {
	threshold := a.cfg.SessionMessageThreshold
	if threshold <= 0 || sess.MessageCount() < threshold || ignoreThreshold {
		return true
	}

	fmt.Fprintf(os.Stderr, "\nWarning: Session %s has %d messages (threshold: %d).\n",
		sess.GetShortID(), sess.MessageCount(), threshold)
	fmt.Fprintf(os.Stderr, "Long sessions may impact performance and token usage.\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	fmt.Fprintf(os.Stderr, "  1. Continue anyway with --ignore-threshold flag\n")
	fmt.Fprintf(os.Stderr, "  2. Summarize session: nostack sessions summarize %s\n", sess.GetShortID())
	fmt.Fprintf(os.Stderr, "  3. Start a new session: nostack chat --new-session\n\n")
	return confirm("Continue with this session?")
}

// getMessageFromEditor opens the default editor with initial content and
// returns the edited message
func getMessageFromEditor(initial string) (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	tmpFile, err := os.CreateTemp("", "nostack-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(initial); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write temporary file: %w", err)
	}
	tmpFile.Close()

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %w", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (provider:model, catalog id or part of a name)")
	chatCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Name of the prompt template (without .toml extension)")
	chatCmd.Flags().StringArrayVar(&argFlags, "arg", []string{}, "Key-value pairs for prompt template (format: key:value)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
	chatCmd.Flags().StringArrayVarP(&imagePaths, "image", "i", []string{}, "Attach an image file (repeatable)")
	chatCmd.Flags().StringVar(&systemPrompt, "system", "", "System prompt for this conversation")
	chatCmd.Flags().Float64VarP(&temperature, "temperature", "t", 1.0, "Sampling temperature (0.0-2.0)")
	chatCmd.Flags().BoolVar(&rawOutput, "raw", false, "Print the response without markdown rendering")

	// Session flags
	chatCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID (short or full UUID, or 'latest' for most recent session)")
	chatCmd.Flags().BoolVarP(&newSession, "new-session", "n", false, "Create a new session")
	chatCmd.Flags().StringVar(&sessionName, "session-name", "", "Name for the new session (optional)")
	chatCmd.Flags().BoolVar(&ignoreThreshold, "ignore-threshold", false, "Ignore session message threshold warning")
}
