package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"streamflix-rag/internal/app"
)

var errCacheDisabled = errors.New("semantic cache is disabled (CACHE_ENABLED=false or unavailable)")

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the semantic cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if a.Cache == nil {
					return errCacheDisabled
				}
				st := a.Cache.Stats(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:      %s\n", st.Name)
				fmt.Fprintf(out, "Status:    %s\n", st.Status)
				fmt.Fprintf(out, "Entries:   %d\n", st.EntryCount)
				fmt.Fprintf(out, "TTL:       %ds\n", st.TTLSeconds)
				fmt.Fprintf(out, "Threshold: %.2f\n", st.DistanceThreshold)
				if st.Error != "" {
					fmt.Fprintf(out, "Error:     %s\n", st.Error)
				}
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if a.Cache == nil {
					return errCacheDisabled
				}
				if !a.Cache.Clear(cmd.Context()) {
					return errors.New("cache clear failed")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Semantic cache cleared")
				return nil
			})
		},
	}

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
