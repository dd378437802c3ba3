package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivecast/internal/catalog"
	"github.com/tonimelisma/drivecast/internal/session"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List videos in your Drive, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			app, err := NewApp(cmd.Context(), resolvedCfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			videos, err := app.Catalog.ListVideos(cmd.Context())
			if err != nil {
				if session.IsAuthError(err) {
					return fmt.Errorf("not signed in; run 'drivecast login' first: %w", err)
				}

				return err
			}

			return printVideos(cmd.OutOrStdout(), videos, flagJSON)
		},
	}
}

func printVideos(w io.Writer, videos []catalog.Video, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(videos)
	}

	if len(videos) == 0 {
		fmt.Fprintln(w, "No videos found.")
		return nil
	}

	rows := make([][]string, 0, len(videos))
	for i := range videos {
		v := &videos[i]
		rows = append(rows, []string{v.Title, v.Size, formatTime(v.CreatedTime.Local()), v.ID})
	}

	printTable(w, []string{"TITLE", "SIZE", "CREATED", "ID"}, rows)

	return nil
}
