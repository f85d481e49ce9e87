// Package chat sequences user turns against the inference session and keeps
// the ordered transcript. Failures never escape: each one becomes a visible
// assistant notice.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mindbridge/internal/events"
	"mindbridge/internal/session"
	"mindbridge/pkg/types"
)

// Generator is the part of the inference session the pipeline drives.
type Generator interface {
	Generate(ctx context.Context, prompt string, params types.GenParams) (string, error)
}

// Config encapsulates all inputs for Pipeline construction.
type Config struct {
	Session Generator
	// SystemPrompt defaults to session.DefaultSystemPrompt.
	SystemPrompt string
	// Greeting opens the transcript when set.
	Greeting string
	// ClearedGreeting replaces the transcript on Clear. Defaults to
	// DefaultClearedGreeting.
	ClearedGreeting string
	// Params is passed to Generate unchanged.
	Params types.GenParams
	// MaxHistory caps how many earlier exchanges are framed into the prompt.
	// Zero keeps every completed exchange.
	MaxHistory int
	Clock      func() time.Time
	Publisher  events.Publisher
	Logger     zerolog.Logger
}

// Exchange is the result of one Append.
type Exchange struct {
	User      types.ChatMessage `json:"user"`
	Assistant types.ChatMessage `json:"assistant"`
	// Failed is set when Assistant is a notice rather than a model reply.
	Failed bool `json:"failed"`
}

// Pipeline is safe for concurrent use. Appends are served in call order.
type Pipeline struct {
	gen        Generator
	system     string
	cleared    string
	params     types.GenParams
	maxHistory int
	clock      *clock
	pub        events.Publisher
	log        zerolog.Logger

	mu         sync.Mutex
	transcript []types.ChatMessage
	epoch      uint64
	tail       chan struct{}
	pending    int
	tickets    uint64
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		gen:        cfg.Session,
		system:     cfg.SystemPrompt,
		cleared:    cfg.ClearedGreeting,
		params:     cfg.Params,
		maxHistory: cfg.MaxHistory,
		clock:      newClock(cfg.Clock),
		pub:        events.OrNop(cfg.Publisher),
		log:        cfg.Logger,
	}
	if p.system == "" {
		p.system = session.DefaultSystemPrompt
	}
	if p.cleared == "" {
		p.cleared = DefaultClearedGreeting
	}
	if cfg.Greeting != "" {
		p.transcript = []types.ChatMessage{newMessage(types.AuthorAssistant, cfg.Greeting, p.clock.next(), true)}
	}
	return p
}

// Append posts text as a user message, asks the session for a reply and
// appends either the reply or one assistant notice. Whitespace-only text is
// ignored and returned as a failed, empty exchange. If ctx ends while earlier
// appends are still running, Append returns a failed exchange at once and
// leaves the transcript untouched.
func (p *Pipeline) Append(ctx context.Context, text string) Exchange {
	if strings.TrimSpace(text) == "" {
		return Exchange{Failed: true}
	}

	// take a ticket; the previous caller closes prev when it is done
	p.mu.Lock()
	prev := p.tail
	mine := make(chan struct{})
	p.tail = mine
	p.pending++
	p.tickets++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
	}()
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// give up the turn without appending; later callers still
			// wait for everything queued ahead of this one
			go func() {
				<-prev
				close(mine)
			}()
			return Exchange{
				User:      newMessage(types.AuthorUser, text, p.clock.next(), false),
				Assistant: newMessage(types.AuthorAssistant, msgCancelled, p.clock.next(), true),
				Failed:    true,
			}
		}
	}
	defer close(mine)

	p.mu.Lock()
	history := p.historyLocked()
	user := newMessage(types.AuthorUser, text, p.clock.next(), false)
	p.transcript = append(p.transcript, user)
	epoch := p.epoch
	p.mu.Unlock()
	p.publishAppended(user)

	prompt := session.FormatPrompt(p.system, history, text)
	reply, err := p.gen.Generate(ctx, prompt, p.params)
	failed := err != nil
	if err == nil {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			failed = true
		}
	}
	if failed {
		reply = p.diagnose(err)
	}

	p.mu.Lock()
	assistant := newMessage(types.AuthorAssistant, reply, p.clock.next(), failed)
	// a Clear while generating starts a new conversation; the late reply
	// belongs to the old one
	current := epoch == p.epoch
	if current {
		p.transcript = append(p.transcript, assistant)
	}
	p.mu.Unlock()
	if current {
		p.publishAppended(assistant)
	}
	return Exchange{User: user, Assistant: assistant, Failed: failed}
}

func (p *Pipeline) diagnose(err error) string {
	switch {
	case err == nil:
		p.log.Warn().Str("event", "chat_empty_reply").Msg("model returned an empty reply")
		return msgFailed
	case session.IsNotLoaded(err):
		return msgNotLoaded
	case session.IsBusy(err):
		return msgBusy
	default:
		p.log.Warn().Str("event", "chat_generation_failed").Err(err).Msg("reply replaced by notice")
		return msgFailed
	}
}

// historyLocked returns the last maxHistory completed exchanges (all of them
// when maxHistory is zero), skipping notices and user messages that never got
// a model reply.
func (p *Pipeline) historyLocked() []session.Turn {
	var turns []session.Turn
	msgs := p.transcript
	for i := 0; i+1 < len(msgs); i++ {
		u, a := msgs[i], msgs[i+1]
		if !u.IsUser() || a.IsUser() || a.Notice {
			continue
		}
		turns = append(turns, session.Turn{User: u.Text, Assistant: a.Text})
		i++
	}
	if p.maxHistory > 0 && len(turns) > p.maxHistory {
		turns = turns[len(turns)-p.maxHistory:]
	}
	return turns
}

// Clear replaces the transcript with a single fresh greeting. The session
// is not touched.
func (p *Pipeline) Clear() types.ChatMessage {
	p.mu.Lock()
	msg := newMessage(types.AuthorAssistant, p.cleared, p.clock.next(), true)
	p.transcript = []types.ChatMessage{msg}
	p.epoch++
	p.mu.Unlock()

	p.log.Info().Str("event", "transcript_cleared").Msg("transcript cleared")
	p.pub.Publish(events.New("transcript_cleared", msg.ID, nil))
	return msg
}

// Transcript returns a copy of all messages in order.
func (p *Pipeline) Transcript() []types.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.ChatMessage, len(p.transcript))
	copy(out, p.transcript)
	return out
}

// Len returns the number of messages.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transcript)
}

// Pending returns the number of Append calls queued or generating.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *Pipeline) publishAppended(m types.ChatMessage) {
	p.pub.Publish(events.New("message_appended", m.ID, map[string]any{
		"author": string(m.Author),
		"notice": m.Notice,
	}))
}
