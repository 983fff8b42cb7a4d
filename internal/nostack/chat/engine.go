// Package chat drives one conversation turn: it builds the request from
// the session, streams the reply into a pending assistant message and
// turns failures into error messages the user can regenerate from.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/catalog"
	"github.com/longkey1/nostack/internal/nostack/session"
	"github.com/longkey1/nostack/internal/sse"
	"github.com/rs/zerolog/log"
)

var (
	// ErrBusy is returned when a response is already streaming.
	ErrBusy = errors.New("a response is already being generated")

	// ErrEmpty is returned when there is nothing to send.
	ErrEmpty = errors.New("nothing to send")
)

// View displays a streaming response.
type View interface {
	Begin()
	Update(content string)
	Finish(content string)
	Abort()
}

// Options configures an Engine.
type Options struct {
	Temperature float64 // settings temperature; a session value overrides it
	MaxTokens   int
	System      string // used when the session has no system prompt
}

// Engine sends a session to a provider and records the reply.
type Engine struct {
	provider nostack.Provider
	model    catalog.Model
	view     View
	opts     Options

	mu         sync.Mutex
	generating bool
}

// NewEngine creates an engine for model served by provider.
func NewEngine(provider nostack.Provider, model catalog.Model, view View, opts Options) *Engine {
	return &Engine{
		provider: provider,
		model:    model,
		view:     view,
		opts:     opts,
	}
}

// Model returns the current model.
func (e *Engine) Model() catalog.Model {
	return e.model
}

// SetModel switches the model and the provider serving it.
func (e *Engine) SetModel(provider nostack.Provider, model catalog.Model) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider = provider
	e.model = model
}

// SetTemperature changes the default temperature.
func (e *Engine) SetTemperature(t float64) {
	e.opts.Temperature = t
}

// Generating reports whether a response is streaming.
func (e *Engine) Generating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generating
}

// Send adds the user's input to the session and streams the reply.
func (e *Engine) Send(ctx context.Context, sess *session.Session, text string, images []string) (*nostack.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(images) == 0 {
		return nil, ErrEmpty
	}
	sess.ClearErrors()
	sess.AppendUserInput(text, images)
	return e.Respond(ctx, sess)
}

// Regenerate drops the message with the given ID and everything after
// it, then streams a new reply. For a user message only the messages
// after it are dropped.
func (e *Engine) Regenerate(ctx context.Context, sess *session.Session, id int) (*nostack.Message, error) {
	msg := sess.Find(id)
	if msg == nil {
		return nil, fmt.Errorf("message %d not found", id)
	}

	var err error
	if msg.Role == nostack.RoleUser {
		err = sess.RemoveMessagesAfter(id)
	} else {
		err = sess.RemoveFrom(id)
	}
	if err != nil {
		return nil, err
	}
	return e.Respond(ctx, sess)
}

// Resend replaces a text part of a user message, drops the rest of the
// conversation and streams a new reply.
func (e *Engine) Resend(ctx context.Context, sess *session.Session, id, part int, text string) (*nostack.Message, error) {
	msg := sess.Find(id)
	if msg == nil {
		return nil, fmt.Errorf("message %d not found", id)
	}
	if msg.Role != nostack.RoleUser {
		return nil, fmt.Errorf("message %d is not a user message", id)
	}
	if err := sess.EditText(id, part, text); err != nil {
		return nil, err
	}
	if err := sess.RemoveMessagesAfter(id); err != nil {
		return nil, err
	}
	return e.Respond(ctx, sess)
}

// Respond streams a reply to the conversation so far.
//
// The reply is written into a pending assistant message as it arrives.
// If the request fails before any text arrives the pending message is
// replaced by an error message, which is returned along with the error.
// When ctx is canceled the partial reply is kept and context.Canceled
// is returned.
func (e *Engine) Respond(ctx context.Context, sess *session.Session) (*nostack.Message, error) {
	if !e.begin() {
		return nil, ErrBusy
	}
	defer e.end()

	sess.ClearErrors()
	history := sess.APIMessages()
	if len(history) == 0 {
		return nil, ErrEmpty
	}

	req := e.request(sess, history)
	pending := sess.AddMessage(nostack.RoleAssistant)
	pending.Model = e.model.String()
	pending.Parts = append(pending.Parts, nostack.Part{Type: nostack.PartText})
	id := pending.ID

	log.Debug().
		Str("model", pending.Model).
		Int("messages", len(history)).
		Msg("streaming response")

	var content strings.Builder
	e.view.Begin()
	text, err := e.provider.Stream(ctx, req, func(delta string) error {
		content.WriteString(delta)
		if msg := sess.Find(id); msg != nil {
			msg.Parts[0].Content = content.String()
		}
		e.view.Update(content.String())
		return nil
	})

	partial := content.String()
	switch {
	case err == nil:
		msg := sess.Find(id)
		msg.Parts[0].Content = text
		e.view.Finish(text)
		return msg, nil

	case errors.Is(err, context.Canceled):
		if partial == "" {
			e.view.Abort()
			sess.RemoveMessage(id)
			return nil, err
		}
		e.view.Finish(partial)
		return sess.Find(id), err

	default:
		log.Debug().Err(err).Int("partial_len", len(partial)).Msg("stream failed")
		if partial == "" {
			e.view.Abort()
			sess.RemoveMessage(id)
		} else {
			e.view.Finish(partial)
		}
		return sess.AddTextMessage(nostack.RoleError, "Error: "+errorText(err)), err
	}
}

func (e *Engine) request(sess *session.Session, history []nostack.Message) nostack.StreamRequest {
	temperature := e.opts.Temperature
	if sess.Temperature != nil {
		temperature = *sess.Temperature
	}
	system := sess.SystemPrompt
	if system == "" {
		system = e.opts.System
	}
	return nostack.StreamRequest{
		Model:       e.model.ID,
		System:      system,
		Messages:    history,
		Temperature: e.model.Temperature(temperature),
		MaxTokens:   e.opts.MaxTokens,
	}
}

func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generating {
		return false
	}
	e.generating = true
	return true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.generating = false
	e.mu.Unlock()
}

// errorText returns the message shown to the user, without the partial
// response wrapper added by the stream decoder.
func errorText(err error) string {
	var apiErr *nostack.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	var streamErr *sse.StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Err.Error()
	}
	return err.Error()
}
