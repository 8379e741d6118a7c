package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"streamflix-rag/internal/app"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed and index a dataset",
	}

	var helpFile string
	helpCmd := &cobra.Command{
		Use:   "help",
		Short: "Rebuild the help article index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return ingestFrom(cmd, helpFile, "help articles", func(r io.Reader) (int, error) {
					return a.IngestHelpArticles(cmd.Context(), r)
				})
			})
		},
	}
	helpCmd.Flags().StringVarP(&helpFile, "file", "f", "", "JSON array of articles (default: bundled set)")

	var moviesFile string
	moviesCmd := &cobra.Command{
		Use:   "movies",
		Short: "Rebuild the movie search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return ingestFrom(cmd, moviesFile, "movies", func(r io.Reader) (int, error) {
					return a.IngestMovies(cmd.Context(), r)
				})
			})
		},
	}
	moviesCmd.Flags().StringVarP(&moviesFile, "file", "f", "", "JSON array of movies (default: bundled catalogue)")

	cmd.AddCommand(helpCmd, moviesCmd)
	return cmd
}

func ingestFrom(cmd *cobra.Command, path, what string, ingest func(io.Reader) (int, error)) error {
	var r io.Reader
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	n, err := ingest(r)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", what, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d %s\n", n, what)
	return nil
}
