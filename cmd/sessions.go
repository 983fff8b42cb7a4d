package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/session"
	"github.com/spf13/cobra"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
	Long: `Manage conversation sessions including listing, viewing, exporting and deleting sessions.

Sessions allow you to maintain conversation history across multiple interactions.
Session IDs can be given as a short ID (minimum 4 characters), a full UUID, or "latest".`,
}

// sessionsListCmd represents the sessions list command
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Long:  `List all conversation sessions sorted by most recently updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.DefaultStore()
		if err != nil {
			return err
		}
		sessions, err := store.List()
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			fmt.Println("\nCreate a new session with:")
			fmt.Println("  nostack chat --new-session \"your message\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODEL\tUPDATED\tMESSAGES\tNAME")
		fmt.Fprintln(w, "--\t-----\t-------\t--------\t----")
		for _, sess := range sessions {
			name := sess.Name
			if name == "" {
				if first := firstUserMessage(&sess); first != nil {
					name = summaryLine(first, 40)
				} else {
					name = "-"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				sess.GetShortID(),
				sess.Model,
				sess.UpdatedAt.Local().Format("2006-01-02 15:04"),
				sess.MessageCount(),
				name,
			)
		}
		w.Flush()

		fmt.Println("\nUse 'nostack sessions show <id>' to view session details.")
		return nil
	},
}

func firstUserMessage(sess *session.Session) *nostack.Message {
	for i := range sess.Messages {
		if sess.Messages[i].Role == nostack.RoleUser {
			return &sess.Messages[i]
		}
	}
	return nil
}

// sessionsShowCmd represents the sessions show command
var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show session details and history",
	Long:  `Show detailed information about a session including all messages.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.sessions.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		printSessionInfo(os.Stdout, sess)
		fmt.Println()

		if len(sess.Messages) == 0 {
			fmt.Println("No messages in this session.")
			return nil
		}

		st := a.styles()
		for i := range sess.Messages {
			a.printMessage(os.Stdout, st, &sess.Messages[i], true)
		}

		fmt.Printf("Continue this session with:\n  nostack chat -s %s \"your message\"\n", sess.GetShortID())
		return nil
	},
}

func printSessionInfo(w io.Writer, sess *session.Session) {
	fmt.Fprintf(w, "Session: %s\n", sess.ID)
	if sess.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", sess.Name)
	}
	if sess.ParentID != "" {
		fmt.Fprintf(w, "Parent: %s\n", sess.ParentID)
	}
	fmt.Fprintf(w, "Model: %s\n", sess.Model)
	fmt.Fprintf(w, "Created: %s\n", sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Updated: %s\n", sess.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if sess.TemplateName != "" {
		fmt.Fprintf(w, "Template: %s\n", sess.TemplateName)
	}
	if sess.SystemPrompt != "" {
		fmt.Fprintf(w, "System Prompt: %s\n", sess.SystemPrompt)
	}
	if sess.Temperature != nil {
		fmt.Fprintf(w, "Temperature: %g\n", *sess.Temperature)
	}
	fmt.Fprintf(w, "Messages: %d\n", sess.MessageCount())
}

// sessionsDeleteCmd represents the sessions delete command
var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Long: `Delete a conversation session permanently.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.DefaultStore()
		if err != nil {
			return err
		}
		sess, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirm(fmt.Sprintf("Are you sure you want to delete session %s?", sess.GetShortID())) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		if err := store.Delete(sess.ID); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		fmt.Printf("Session %s deleted successfully.\n", sess.GetShortID())
		return nil
	},
}

// sessionsRenameCmd represents the sessions rename command
var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.DefaultStore()
		if err != nil {
			return err
		}
		sess, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		sess.Name = args[1]
		if err := store.Save(sess); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		fmt.Printf("Session %s renamed to %q.\n", sess.GetShortID(), sess.Name)
		return nil
	},
}

// sessionsClearCmd represents the sessions clear command
var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old sessions",
	Long: `Delete old conversation sessions permanently.

By default, deletes sessions created more than session_retention_days (30) days ago.
Use --before to specify a different date, or --all to delete all sessions.
Sessions referenced as the parent of a kept session are never deleted.

Warning: This action cannot be undone.

Examples:
  nostack sessions clear                      # Delete sessions older than the retention period
  nostack sessions clear --before 2024-01-01  # Delete sessions created before 2024-01-01
  nostack sessions clear --before 2024-12     # Delete sessions created before 2024-12-01
  nostack sessions clear --all                # Delete all sessions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		beforeDateStr, _ := cmd.Flags().GetString("before")
		deleteAll, _ := cmd.Flags().GetBool("all")

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.sessions.List()
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions to delete.")
			return nil
		}

		var beforeDate time.Time
		if !deleteAll {
			if beforeDateStr != "" {
				beforeDate, err = parseDate(beforeDateStr)
				if err != nil {
					return fmt.Errorf("parsing date: %w", err)
				}
			} else {
				beforeDate = time.Now().AddDate(0, 0, -a.cfg.SessionRetentionDays)
			}
		}

		toDelete, protected := selectForDeletion(sessions, beforeDate, deleteAll)
		if len(protected) > 0 {
			fmt.Fprintf(os.Stderr, "\nNotice: The following sessions were not deleted (referenced by child sessions):\n")
			for _, parent := range protected {
				fmt.Fprintf(os.Stderr, "  - %s (created: %s)\n", parent.GetShortID(), parent.CreatedAt.Format("2006-01-02"))
			}
			fmt.Fprintln(os.Stderr)
		}
		if len(toDelete) == 0 {
			if deleteAll {
				fmt.Println("No sessions to delete after excluding protected parent sessions.")
			} else {
				fmt.Printf("No sessions found created before %s.\n", beforeDate.Format("2006-01-02"))
			}
			return nil
		}

		var question string
		switch {
		case deleteAll:
			question = fmt.Sprintf("Are you sure you want to delete all %d sessions?", len(toDelete))
		case beforeDateStr != "":
			question = fmt.Sprintf("Are you sure you want to delete %d sessions created before %s?",
				len(toDelete), beforeDate.Format("2006-01-02"))
		default:
			question = fmt.Sprintf("Are you sure you want to delete %d sessions older than %d days (created before %s)?",
				len(toDelete), a.cfg.SessionRetentionDays, beforeDate.Format("2006-01-02"))
		}
		if !confirm(question) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		deleted, failed := 0, 0
		for _, sess := range toDelete {
			if err := a.sessions.Delete(sess.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to delete session %s: %v\n", sess.GetShortID(), err)
				failed++
			} else {
				deleted++
			}
		}

		fmt.Printf("Successfully deleted %d sessions", deleted)
		if failed > 0 {
			fmt.Printf(" (%d failed)", failed)
		}
		fmt.Println(".")
		return nil
	},
}

// selectForDeletion returns the sessions created before the cutoff (or
// all of them) minus any whose children are kept.
func selectForDeletion(sessions []session.Session, before time.Time, all bool) (toDelete, protected []session.Session) {
	marked := make(map[string]bool)
	for _, sess := range sessions {
		if all || sess.CreatedAt.Before(before) {
			marked[sess.ID] = true
		}
	}

	keepParent := make(map[string]bool)
	for _, sess := range sessions {
		if !marked[sess.ID] && sess.ParentID != "" && marked[sess.ParentID] {
			keepParent[sess.ParentID] = true
		}
	}

	for _, sess := range sessions {
		switch {
		case !marked[sess.ID]:
		case keepParent[sess.ID]:
			protected = append(protected, sess)
		default:
			toDelete = append(toDelete, sess)
		}
	}
	return toDelete, protected
}

// parseDate parses a date string in various formats and returns a time.Time
// Supported formats: YYYY-MM-DD, YYYY-MM, YYYY
func parseDate(dateStr string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD, YYYY-MM, or YYYY)", dateStr)
}

const summarizationPrompt = `Please summarize the following conversation in 3-5 concise paragraphs.
Focus on:
- Main topics discussed
- Key decisions made
- Current status or next steps

Conversation history:

%s`

// sessionsSummarizeCmd represents the sessions summarize command
var sessionsSummarizeCmd = &cobra.Command{
	Use:   "summarize <id>",
	Short: "Summarize a session and create a new one",
	Long: `Summarize a conversation session and create a new session with the summary.

The original session is preserved and the new session has its ParentID set.
Messages of ancestor sessions are included in the summary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.sessions.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}
		if sess.MessageCount() == 0 {
			return fmt.Errorf("session %s has no messages to summarize", sess.GetShortID())
		}

		ancestors, err := collectAncestorSessions(a.sessions, sess)
		if err != nil {
			return fmt.Errorf("collecting ancestor sessions: %w", err)
		}

		transcript, count := buildTranscript(append(ancestors, sess))
		fmt.Fprintf(os.Stderr, "Summarizing %d messages from session %s", count, sess.GetShortID())
		if len(ancestors) > 0 {
			fmt.Fprintf(os.Stderr, " and %d ancestor session(s)", len(ancestors))
		}
		fmt.Fprintln(os.Stderr, "...")

		m, err := a.catalog.Resolve(sess.Model)
		if err != nil {
			return err
		}
		provider, err := newProvider(a.cfg, m.Provider)
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Fprintf(os.Stderr, "Generating summary using %s...\n", sess.Model)
		summary, err := provider.Stream(ctx, nostack.StreamRequest{
			Model: m.ID,
			Messages: []nostack.Message{{
				Role:  nostack.RoleUser,
				Parts: []nostack.Part{{Type: nostack.PartText, Content: fmt.Sprintf(summarizationPrompt, transcript)}},
			}},
			MaxTokens: a.cfg.MaxTokens,
		}, func(string) error { return nil })
		if err != nil {
			return fmt.Errorf("generating summary: %w", err)
		}

		newSess := session.NewSession(sess.Model)
		newSess.ParentID = sess.ID
		newSess.SystemPrompt = sess.SystemPrompt
		newSess.TemplateName = sess.TemplateName
		newSess.Temperature = sess.Temperature
		newSess.AddTextMessage(nostack.RoleUser, "Previous conversation summary:\n\n"+summary)

		if err := a.sessions.Save(newSess); err != nil {
			return fmt.Errorf("saving new session: %w", err)
		}

		fmt.Fprintf(os.Stderr, "\nNew session created: %s (parent: %s)\n", newSess.GetShortID(), sess.GetShortID())
		fmt.Fprintf(os.Stderr, "Path: %s\n", a.sessions.Path(newSess.ID))
		fmt.Fprintf(os.Stderr, "\nContinue with:\n  nostack chat -s %s \"your message\"\n", newSess.GetShortID())
		return nil
	},
}

// buildTranscript renders the conversation of the sessions, oldest first.
// The first message of a session with a parent is the parent's summary
// and is skipped.
func buildTranscript(sessions []*session.Session) (string, int) {
	var b strings.Builder
	n := 0
	for _, sess := range sessions {
		start := 0
		if sess.ParentID != "" && sess.MessageCount() > 0 {
			start = 1
		}
		for i := start; i < len(sess.Messages); i++ {
			msg := &sess.Messages[i]
			role := "User"
			switch msg.Role {
			case nostack.RoleAssistant:
				role = "Assistant"
			case nostack.RoleError:
				continue
			}
			n++
			text := msg.Text()
			if images := len(msg.Images()); images > 0 {
				text = fmt.Sprintf("%s [%d image(s) attached]", text, images)
			}
			fmt.Fprintf(&b, "[Message %d] %s: %s\n\n", n, role, text)
		}
	}
	return b.String(), n
}

// collectAncestorSessions collects all ancestor sessions by following ParentID chain
// Returns sessions in order from oldest ancestor to direct parent
func collectAncestorSessions(store *session.Store, sess *session.Session) ([]*session.Session, error) {
	var ancestors []*session.Session
	visited := make(map[string]bool)
	currentID := sess.ParentID

	for currentID != "" {
		if visited[currentID] {
			return nil, fmt.Errorf("circular reference detected in session ancestry")
		}
		visited[currentID] = true

		parent, err := store.FindByPrefix(currentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: parent session %s not found, stopping ancestry traversal\n", currentID)
			break
		}

		ancestors = append([]*session.Session{parent}, ancestors...)
		currentID = parent.ParentID
	}

	return ancestors, nil
}

// sessionsExportCmd represents the sessions export command
var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session as JSON",
	Long: `Export a session as a JSON document {"messages": [...], "system": "..."}.
Error messages are not exported. The document is written to stdout unless --output is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.DefaultStore()
		if err != nil {
			return err
		}
		sess, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		output, _ := cmd.Flags().GetString("output")
		return exportSession(sess, output)
	},
}

func exportSession(sess *session.Session, output string) error {
	if output == "" || output == "-" {
		return sess.WriteExport(os.Stdout)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := sess.WriteExport(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d messages to %s\n", len(sess.ToExport().Messages), output)
	return nil
}

// sessionsImportCmd represents the sessions import command
var sessionsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session from JSON",
	Long: `Create a new session from an exported JSON document. Use "-" to read from stdin.

The model is taken from --model, then from the last assistant message of the
document, then from the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening export file: %w", err)
			}
			defer f.Close()
			r = f
		}

		exp, err := session.ReadExport(r)
		if err != nil {
			return err
		}

		modelStr, _ := cmd.Flags().GetString("model")
		if modelStr == "" {
			for i := len(exp.Messages) - 1; i >= 0; i-- {
				if exp.Messages[i].Model != "" {
					modelStr = exp.Messages[i].Model
					break
				}
			}
		}
		m, err := a.pickModel(modelStr)
		if err != nil {
			return err
		}

		sess := session.FromExport(exp, m.String())
		sess.Name, _ = cmd.Flags().GetString("name")
		if err := a.sessions.Save(sess); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}

		fmt.Printf("Imported %d messages into session %s (%s).\n", sess.MessageCount(), sess.GetShortID(), sess.Model)
		fmt.Printf("\nContinue with:\n  nostack sessions start %s\n", sess.GetShortID())
		return nil
	},
}

// sessionsRegenerateCmd represents the sessions regenerate command
var sessionsRegenerateCmd = &cobra.Command{
	Use:   "regenerate <id>",
	Short: "Regenerate the last response of a session",
	Long: `Drop the last response of a session (or the message given with --message and
everything after it) and stream a new one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.sessions.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding session: %w", err)
		}

		id := -1
		if cmd.Flags().Changed("message") {
			id, _ = cmd.Flags().GetInt("message")
		} else if last := sess.LastMessage(); last != nil {
			id = last.ID
		}
		if id < 0 {
			return fmt.Errorf("session %s has no messages", sess.GetShortID())
		}

		m, err := a.catalog.Resolve(sess.Model)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetBool("raw")
		engine, err := a.newEngine(m, os.Stdout, raw)
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		_, genErr := engine.Regenerate(ctx, sess, id)
		if errors.Is(genErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\n[interrupted]")
		}
		if err := a.sessions.Save(sess); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		if genErr != nil && !errors.Is(genErr, context.Canceled) {
			return fmt.Errorf("regenerating response: %w", genErr)
		}
		return nil
	},
}

// sessionsStartCmd represents the sessions start command
var sessionsStartCmd = &cobra.Command{
	Use:   "start [session-id]",
	Short: "Start an interactive session",
	Long: `Start an interactive chat session with continuous conversation.

You can either start a new session or continue an existing one by providing its ID.
Type /help inside the session for the available commands. Ctrl+C stops a response
that is streaming; Ctrl+D or /exit leaves the session.

Examples:
  nostack sessions start                # Start a new interactive session
  nostack sessions start 550e8400       # Continue session 550e8400 in interactive mode
  nostack sessions start latest         # Continue latest session in interactive mode`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var sess *session.Session
		if len(args) > 0 {
			sess, err = a.sessions.FindByPrefix(args[0])
			if err != nil {
				return fmt.Errorf("finding session: %w", err)
			}
		} else {
			m, err := a.pickModel(modelFromFlags(cmd))
			if err != nil {
				return err
			}
			sess = session.NewSession(m.String())
			sess.Name, _ = cmd.Flags().GetString("name")
			if err := a.sessions.Save(sess); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Session created: %s\n", sess.GetShortID())
			fmt.Fprintf(os.Stderr, "Path: %s\n\n", a.sessions.Path(sess.ID))
		}

		if err := runInteractiveMode(a, sess); err != nil {
			return fmt.Errorf("interactive mode: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	sessionsCmd.AddCommand(sessionsSummarizeCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsImportCmd)
	sessionsCmd.AddCommand(sessionsRegenerateCmd)
	sessionsCmd.AddCommand(sessionsStartCmd)

	sessionsDeleteCmd.Flags().BoolP("force", "f", false, "Delete without confirmation")

	sessionsClearCmd.Flags().String("before", "", "Delete only sessions created before this date (format: YYYY-MM-DD, YYYY-MM, or YYYY)")
	sessionsClearCmd.Flags().Bool("all", false, "Delete all sessions (overrides retention days setting)")

	sessionsExportCmd.Flags().StringP("output", "o", "", "Write the export to a file instead of stdout")

	sessionsImportCmd.Flags().StringP("model", "m", "", "Model for the imported session")
	sessionsImportCmd.Flags().String("name", "", "Name for the imported session")

	sessionsRegenerateCmd.Flags().Int("message", 0, "ID of the message to regenerate from (default: the last message)")
	sessionsRegenerateCmd.Flags().Bool("raw", false, "Print the response without markdown rendering")

	sessionsStartCmd.Flags().StringVarP(&model, "model", "m", "", "Model for a new session")
	sessionsStartCmd.Flags().String("name", "", "Name for a new session")
}
