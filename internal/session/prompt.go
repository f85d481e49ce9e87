package session

import "strings"

const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>"
)

// DefaultSystemPrompt is the system turn used when none is configured.
const DefaultSystemPrompt = "You are Qwen, created by Alibaba Cloud. You are a helpful assistant."

// Turn is one completed user/assistant exchange.
type Turn struct {
	User      string
	Assistant string
}

// FormatPrompt frames a conversation in the ChatML template Qwen models
// expect, ending with an open assistant turn. Output depends only on inputs.
// An empty system prompt omits the system turn.
func FormatPrompt(system string, history []Turn, user string) string {
	var b strings.Builder
	if system != "" {
		writeTurn(&b, "system", system)
	}
	for _, t := range history {
		writeTurn(&b, "user", t.User)
		writeTurn(&b, "assistant", t.Assistant)
	}
	writeTurn(&b, "user", user)
	b.WriteString(imStart)
	b.WriteString("assistant\n")
	return b.String()
}

func writeTurn(b *strings.Builder, role, content string) {
	b.WriteString(imStart)
	b.WriteString(role)
	b.WriteByte('\n')
	b.WriteString(content)
	b.WriteString(imEnd)
	b.WriteByte('\n')
}
