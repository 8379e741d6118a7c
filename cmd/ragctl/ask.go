package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"streamflix-rag/internal/app"
)

func newAskCmd() *cobra.Command {
	var noCache, ensure bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the help center a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withApp(cmd.Context(), func(a *app.App) error {
				ctx := cmd.Context()
				if ensure {
					if _, err := a.EnsureHelpArticles(ctx); err != nil {
						return err
					}
				}
				resp, err := a.HelpCenter.Chat(ctx, question, !noCache)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, resp.Answer)
				switch {
				case resp.Blocked:
					fmt.Fprintln(out, "\n(blocked: out of scope)")
				case resp.FromCache && resp.CacheSimilarity != nil:
					fmt.Fprintf(out, "\n(from cache, similarity %.3f)\n", *resp.CacheSimilarity)
				}
				if len(resp.Sources) > 0 {
					fmt.Fprintln(out, "\nSources:")
					for _, s := range resp.Sources {
						fmt.Fprintf(out, "  - %s [%s] %.3f\n", s.Title, s.Category, s.Similarity)
					}
				}
				if resp.TokenUsage != nil {
					fmt.Fprintf(out, "\nTokens: %d\n", resp.TokenUsage.TotalTokens)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the semantic cache")
	cmd.Flags().BoolVar(&ensure, "ensure", true, "ingest bundled articles first when the index is empty")
	return cmd
}
