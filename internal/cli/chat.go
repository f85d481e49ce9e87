package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mindbridge/internal/app"
	"mindbridge/pkg/types"
)

func newChatCmd(g *globals) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a downloaded model in the terminal",
		Long:  "Reads one message per line. /clear resets the conversation and /quit exits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id := model
				if id == "" {
					id = a.Config.DefaultModel
				}
				if id != "" {
					if err := a.LoadVariant(ctx, id); err != nil {
						return fmt.Errorf("load %s: %w", id, err)
					}
				}
				return repl(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model id to load (defaults to default_model)")
	return cmd
}

// repl drives the chat pipeline from line-oriented input until EOF, /quit or
// ctx ends.
func repl(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	for _, m := range a.Transcript() {
		printMessage(out, m)
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			for _, m := range a.ClearChat() {
				printMessage(out, m)
			}
			continue
		}
		resp := a.Send(ctx, line)
		printMessage(out, resp.Assistant)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printMessage(w io.Writer, m types.ChatMessage) {
	if m.Author == types.AuthorUser {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", m.Author, m.Text)
}
