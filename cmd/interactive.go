package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/attach"
	"github.com/longkey1/nostack/internal/nostack/chat"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/longkey1/nostack/internal/nostack/session"
	"github.com/longkey1/nostack/internal/render"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
)

var slashCommands = map[string]string{
	"/help":        "Show this help message",
	"/info":        "Show session information",
	"/clear":       "Clear the screen",
	"/new":         "Start a new session",
	"/model":       "Show or switch the model (/model provider:model)",
	"/image":       "Attach an image to the next message (/image <path>)",
	"/images":      "List pending attachments",
	"/drop":        "Remove a pending attachment (/drop <n> or /drop all)",
	"/regenerate":  "Regenerate the last response or from message <id>",
	"/edit":        "Edit user message <id> and resend it (/edit <id> [text])",
	"/delete":      "Delete message <id>",
	"/copy":        "Copy the last response or message <id> to the clipboard",
	"/system":      "Show, set or reset the system prompt (/system [text|reset])",
	"/temperature": "Show, set or reset the temperature (/temperature [value|reset])",
	"/export":      "Export the session as JSON (/export [file])",
	"/history":     "Show the conversation",
	"/editor":      "Compose the next message in $EDITOR",
	"/exit":        "Exit interactive mode",
	"/quit":        "Exit interactive mode",
}

// repl is an interactive session on the terminal.
type repl struct {
	a           *app
	sess        *session.Session
	engine      *chat.Engine
	attachments *chat.Attachments
	st          render.Styles

	line        *liner.State
	historyFile string
}

// runInteractiveMode starts an interactive chat session
func runInteractiveMode(a *app, sess *session.Session) error {
	m, err := a.catalog.Resolve(sess.Model)
	if err != nil {
		return err
	}
	engine, err := a.newEngine(m, os.Stdout, false)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	a.warnAboutKeys()

	r := &repl{
		a:           a,
		sess:        sess,
		engine:      engine,
		attachments: chat.NewAttachments(a.cfg.MaxImageSize),
		st:          a.styles(),
	}
	r.openLine()
	defer r.closeLine()

	r.printBanner()
	if sess.MessageCount() > 0 {
		r.printHistory()
	}

	for {
		input, err := r.line.Prompt("You> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("input error: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" && r.attachments.Len() == 0 {
			continue
		}
		if input != "" {
			r.line.AppendHistory(input)
		}

		if strings.HasPrefix(input, "/") {
			if !r.handleCommand(input) {
				fmt.Fprintln(os.Stderr, "Goodbye!")
				return nil
			}
			continue
		}

		r.send(input)
	}
}

func (r *repl) openLine() {
	r.line = liner.NewLiner()
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(completeCommand)

	dataDir, err := config.GetDataDir()
	if err != nil {
		log.Debug().Err(err).Msg("input history disabled")
		return
	}
	r.historyFile = filepath.Join(dataDir, "history")
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

func (r *repl) closeLine() {
	if r.historyFile != "" {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		} else {
			log.Debug().Err(err).Msg("failed to save input history")
		}
	}
	r.line.Close()
}

// completeCommand completes slash commands.
func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for name := range slashCommands {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *repl) printBanner() {
	fmt.Fprintf(os.Stderr, "\n=== Interactive Session [%s] ===\n", r.sess.GetShortID())
	fmt.Fprintf(os.Stderr, "Model: %s\n", r.sess.Model)
	if r.sess.SystemPrompt != "" {
		fmt.Fprintf(os.Stderr, "System Prompt: %s\n", r.sess.SystemPrompt)
	}
	fmt.Fprintf(os.Stderr, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(os.Stderr, "===================================\n\n")
}

func (r *repl) printHistory() {
	for i := range r.sess.Messages {
		r.a.printMessage(os.Stdout, r.st, &r.sess.Messages[i], true)
	}
}

// stream runs one generation with Ctrl+C bound to cancel it, then saves
// the session.
func (r *repl) stream(fn func(ctx context.Context) (*nostack.Message, error)) {
	label, color := r.a.modelLabel(r.sess.Model)
	fmt.Println(r.st.Header(nostack.RoleAssistant, label, color, time.Now()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	msg, err := fn(ctx)
	stop()

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, r.st.Muted.Render("[interrupted]"))
	case msg != nil && msg.Role == nostack.RoleError:
		fmt.Fprintln(os.Stdout, r.st.Error.Render(msg.Text()))
		fmt.Fprintln(os.Stderr, r.st.Muted.Render("Use /regenerate to try again, or type a message to add to yours."))
	case err != nil:
		fmt.Fprintln(os.Stderr, r.st.Error.Render("Error: "+err.Error()))
	}
	fmt.Println()

	r.save()
}

func (r *repl) send(text string) {
	images := r.attachments.Apply()
	r.stream(func(ctx context.Context) (*nostack.Message, error) {
		return r.engine.Send(ctx, r.sess, text, images)
	})
}

func (r *repl) save() {
	if err := r.a.sessions.Save(r.sess); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save session: %v\n", err)
	}
}

// handleCommand runs a slash command. It returns false to exit.
func (r *repl) handleCommand(input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	var err error
	switch name {
	case "/help", "/h":
		r.printHelp()
	case "/info", "/i":
		r.printInfo()
	case "/clear", "/c":
		fmt.Print("\033[H\033[2J")
	case "/new":
		err = r.newSession()
	case "/model":
		err = r.switchModel(arg)
	case "/image":
		err = r.attach(arg)
	case "/images":
		r.listAttachments()
	case "/drop":
		err = r.drop(arg)
	case "/regenerate":
		err = r.regenerate(arg)
	case "/edit":
		err = r.edit(arg)
	case "/delete":
		err = r.deleteMessage(arg)
	case "/copy":
		err = r.copy(arg)
	case "/system":
		r.system(arg)
	case "/temperature":
		err = r.temperature(arg)
	case "/export":
		err = exportSession(r.sess, arg)
	case "/history":
		r.printHistory()
	case "/editor":
		var text string
		text, err = getMessageFromEditor("")
		if err == nil && (text != "" || r.attachments.Len() > 0) {
			r.send(text)
		}
	case "/exit", "/quit", "/q":
		return false
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s (type '/help' for available commands)\n", name)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, r.st.Error.Render("Error: "+err.Error()))
	}
	return true
}

func (r *repl) printHelp() {
	names := make([]string, 0, len(slashCommands))
	for name := range slashCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "\nAvailable commands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-13s - %s\n", name, slashCommands[name])
	}
	fmt.Fprintln(os.Stderr, "  Ctrl+C        - Stop the response being streamed")
	fmt.Fprintln(os.Stderr, "  Ctrl+D        - Exit interactive mode")
	fmt.Fprintln(os.Stderr)
}

func (r *repl) printInfo() {
	fmt.Fprintln(os.Stderr, "\nSession Information:")
	fmt.Fprintf(os.Stderr, "  ID: %s\n", r.sess.GetShortID())
	fmt.Fprintf(os.Stderr, "  Full ID: %s\n", r.sess.ID)
	if r.sess.Name != "" {
		fmt.Fprintf(os.Stderr, "  Name: %s\n", r.sess.Name)
	}
	fmt.Fprintf(os.Stderr, "  Model: %s\n", r.sess.Model)
	fmt.Fprintf(os.Stderr, "  Messages: %d\n", r.sess.MessageCount())
	fmt.Fprintf(os.Stderr, "  Created: %s\n", r.sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if r.sess.TemplateName != "" {
		fmt.Fprintf(os.Stderr, "  Template: %s\n", r.sess.TemplateName)
	}
	if r.attachments.Len() > 0 {
		fmt.Fprintf(os.Stderr, "  Pending images: %d\n", r.attachments.Len())
	}
	fmt.Fprintln(os.Stderr)
}

func (r *repl) newSession() error {
	sess := session.NewSession(r.sess.Model)
	if err := r.a.sessions.Save(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	r.sess = sess
	r.attachments.Clear()
	fmt.Fprintf(os.Stderr, "Session created: %s\n\n", sess.GetShortID())
	return nil
}

func (r *repl) switchModel(query string) error {
	if query == "" {
		fmt.Fprintf(os.Stderr, "Model: %s\n", r.sess.Model)
		return nil
	}
	m, err := r.a.catalog.Resolve(query)
	if err != nil {
		return err
	}
	provider, err := newProvider(r.a.cfg, m.Provider)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	if !r.a.cfg.HasToken(m.Provider) {
		fmt.Fprintf(os.Stderr, "Warning: no API key configured for %s\n", m.Provider)
	}
	r.engine.SetModel(provider, *m)
	r.sess.Model = m.String()
	r.save()
	fmt.Fprintf(os.Stderr, "Model: %s\n", r.sess.Model)
	return nil
}

func (r *repl) attach(path string) error {
	if path == "" {
		return fmt.Errorf("usage: /image <path>")
	}
	desc, err := r.attachments.Add(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Attached %s (%d pending)\n", desc, r.attachments.Len())
	return nil
}

func (r *repl) listAttachments() {
	if r.attachments.Len() == 0 {
		fmt.Fprintln(os.Stderr, "No pending images.")
		return
	}
	for i, url := range r.attachments.List() {
		fmt.Fprintf(os.Stderr, "  %d: %s\n", i, attach.Describe(url))
	}
}

func (r *repl) drop(arg string) error {
	if arg == "all" {
		r.attachments.Clear()
		return nil
	}
	i := r.attachments.Len() - 1
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("usage: /drop <n> or /drop all")
		}
		i = n
	}
	return r.attachments.Remove(i)
}

// messageID parses an explicit message id or falls back to def.
func messageID(arg string, def int) (int, error) {
	if arg == "" {
		if def < 0 {
			return 0, fmt.Errorf("no message")
		}
		return def, nil
	}
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q", arg)
	}
	return id, nil
}

func (r *repl) regenerate(arg string) error {
	def := -1
	if last := r.sess.LastMessage(); last != nil {
		def = last.ID
	}
	id, err := messageID(arg, def)
	if err != nil {
		return err
	}
	if r.sess.Find(id) == nil {
		return fmt.Errorf("message %d not found", id)
	}
	r.stream(func(ctx context.Context) (*nostack.Message, error) {
		return r.engine.Regenerate(ctx, r.sess, id)
	})
	return nil
}

func (r *repl) edit(arg string) error {
	idStr, text, _ := strings.Cut(arg, " ")
	id, err := messageID(idStr, -1)
	if err != nil {
		return fmt.Errorf("usage: /edit <id> [text]")
	}
	msg := r.sess.Find(id)
	if msg == nil {
		return fmt.Errorf("message %d not found", id)
	}
	if msg.Role != nostack.RoleUser {
		return fmt.Errorf("message %d is not a user message", id)
	}

	part := -1
	for i, p := range msg.Parts {
		if p.Type == nostack.PartText {
			part = i
			break
		}
	}
	if part < 0 {
		return fmt.Errorf("message %d has no text", id)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text, err = getMessageFromEditor(msg.Parts[part].Content)
		if err != nil {
			return err
		}
	}
	if text == "" {
		return fmt.Errorf("message is empty")
	}

	r.stream(func(ctx context.Context) (*nostack.Message, error) {
		return r.engine.Resend(ctx, r.sess, id, part, text)
	})
	return nil
}

func (r *repl) deleteMessage(arg string) error {
	id, err := messageID(arg, -1)
	if err != nil {
		return fmt.Errorf("usage: /delete <id>")
	}
	if err := r.sess.RemoveMessage(id); err != nil {
		return err
	}
	r.save()
	fmt.Fprintf(os.Stderr, "Deleted message %d\n", id)
	return nil
}

func (r *repl) copy(arg string) error {
	var msg *nostack.Message
	if arg == "" {
		for i := len(r.sess.Messages) - 1; i >= 0; i-- {
			if r.sess.Messages[i].Role == nostack.RoleAssistant {
				msg = &r.sess.Messages[i]
				break
			}
		}
		if msg == nil {
			return fmt.Errorf("no response to copy")
		}
	} else {
		id, err := messageID(arg, -1)
		if err != nil {
			return err
		}
		if msg = r.sess.Find(id); msg == nil {
			return fmt.Errorf("message %d not found", id)
		}
	}

	if err := clipboard.WriteAll(msg.Text()); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Copied message %d\n", msg.ID)
	return nil
}

func (r *repl) system(arg string) {
	switch arg {
	case "":
		if r.sess.SystemPrompt == "" {
			fmt.Fprintf(os.Stderr, "System Prompt (default): %s\n", r.a.prefs.SystemPrompt)
		} else {
			fmt.Fprintf(os.Stderr, "System Prompt: %s\n", r.sess.SystemPrompt)
		}
		return
	case "reset":
		r.sess.SystemPrompt = ""
	default:
		r.sess.SystemPrompt = arg
	}
	r.save()
	fmt.Fprintln(os.Stderr, "System prompt updated.")
}

func (r *repl) temperature(arg string) error {
	switch arg {
	case "":
		if r.sess.Temperature == nil {
			fmt.Fprintf(os.Stderr, "Temperature (default): %g\n", r.a.prefs.Temperature)
		} else {
			fmt.Fprintf(os.Stderr, "Temperature: %g\n", *r.sess.Temperature)
		}
		return nil
	case "reset":
		r.sess.Temperature = nil
	default:
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil || t < 0 || t > 2 {
			return fmt.Errorf("temperature must be between 0 and 2")
		}
		r.sess.Temperature = &t
	}
	r.save()
	fmt.Fprintln(os.Stderr, "Temperature updated.")
	return nil
}
