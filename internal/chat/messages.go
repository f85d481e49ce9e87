package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"mindbridge/pkg/types"
)

// Default notice texts.
const (
	DefaultGreeting        = "Hello! This is a chat app running the Qwen3-4B model. How can I help you today?"
	DefaultClearedGreeting = "The chat has been cleared. Let's start a new conversation!"

	msgNotLoaded = "No model is loaded yet. Download a model and load it, then send your message again."
	msgBusy      = "I'm still working on a previous reply. Please try again in a moment."
	msgFailed    = "Sorry, something went wrong while generating a reply. Please try again."
	msgCancelled = "The message was cancelled before a reply could start."
)

// clock hands out timestamps that never go backwards, even if the wall
// clock does.
type clock struct {
	now  func() time.Time
	mu   sync.Mutex
	last time.Time
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

func newMessage(author types.Author, text string, at time.Time, notice bool) types.ChatMessage {
	return types.ChatMessage{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      text,
		CreatedAt: at,
		Notice:    notice,
	}
}
