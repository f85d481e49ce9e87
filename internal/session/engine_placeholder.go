package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"mindbridge/pkg/types"
)

// PlaceholderReply is the fixed text returned by PlaceholderEngine models.
const PlaceholderReply = "This is a placeholder response. A build with llama support generates replies from the loaded Qwen3-4B model."

// PlaceholderEngine accepts any model path and answers every prompt with
// PlaceholderReply. Useful for exercising the download and chat flows on
// machines without a llama.cpp build.
type PlaceholderEngine struct {
	// Reply overrides PlaceholderReply when set.
	Reply string
	freed atomic.Int32
}

// Freed reports how many handles were released.
func (e *PlaceholderEngine) Freed() int { return int(e.freed.Load()) }

func (e *PlaceholderEngine) Init(modelPath string) (Model, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	reply := e.Reply
	if reply == "" {
		reply = PlaceholderReply
	}
	return &placeholderModel{reply: reply, engine: e}, nil
}

type placeholderModel struct {
	reply  string
	engine *PlaceholderEngine
}

func (m *placeholderModel) Infer(ctx context.Context, prompt string, _ types.GenParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.reply, nil
}

func (m *placeholderModel) Free() { m.engine.freed.Add(1) }
