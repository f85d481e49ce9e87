package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mindbridge/internal/app"
	"mindbridge/internal/download"
	"mindbridge/pkg/types"
)

func newModelsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, search, download and delete models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("models requires a subcommand: list|refresh|pull|rm")
		},
	}

	var asJSON bool
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the catalog with download state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return printModels(cmd.OutOrStdout(), a.Models(), asJSON)
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Search for more variants and show the merged catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.RefreshModels(ctx)
				if err != nil {
					return err
				}
				return printModels(cmd.OutOrStdout(), resp, asJSON)
			})
		},
	}
	refresh.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	pull := &cobra.Command{
		Use:     "pull <id>",
		Short:   "Download a model into the data directory",
		Example: "  mindbridge models pull qwen3-4b-instruct-q4_k_m",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return pullModel(ctx, a, args[0], cmd.OutOrStdout())
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a downloaded model file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.DeleteVariant(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, refresh, pull, rm)
	return cmd
}

func printModels(w io.Writer, resp types.ModelsResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUANT\tSIZE\tSTATUS")
	for _, m := range resp.Models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Quantization, m.SizeLabel, modelStatus(m))
	}
	return tw.Flush()
}

func modelStatus(m types.ModelVariant) string {
	switch {
	case m.Downloaded:
		return "downloaded"
	case m.DownloadProgress > 0:
		return fmt.Sprintf("downloading %.0f%%", m.DownloadProgress*100)
	default:
		return "-"
	}
}

// pullModel downloads id in the foreground, printing progress on one line.
// Interrupting ctx cancels the job and removes the partial file.
func pullModel(ctx context.Context, a *app.App, id string, out io.Writer) error {
	job, err := a.StartDownload(ctx, id)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, job.Cancel)
	defer stop()

	for p := range job.Progress() {
		fmt.Fprintf(out, "\r%s", progressLine(p))
	}
	fmt.Fprintln(out)
	if err := job.Wait(context.Background()); err != nil {
		if download.IsCancelled(err) {
			return fmt.Errorf("download of %s cancelled", id)
		}
		return err
	}
	v := job.Variant()
	fmt.Fprintf(out, "saved %s to %s\n", v.ID, a.Assets.Path(v))
	return nil
}

func progressLine(p download.Progress) string {
	if p.Indeterminate() {
		return fmt.Sprintf("%s downloaded", humanize.Bytes(uint64(p.Transferred)))
	}
	return fmt.Sprintf("%s / %s (%.0f%%)", humanize.Bytes(uint64(p.Transferred)), humanize.Bytes(uint64(p.Total)), p.Fraction*100)
}
