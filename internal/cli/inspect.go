package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newInspectCmd(root *options) *cobra.Command {
	var confidential []string

	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Show how documents are classified and chunked",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, release, err := root.engine()
			if err != nil {
				return err
			}
			defer release()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			sessionID := "inspect-" + uuid.NewString()
			defer func() { _ = engine.EndSession(ctx, sessionID) }()

			docs, err := ingestFiles(ctx, engine, sessionID, args, confidential)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range docs {
				printDocument(out, d)
			}

			info, err := engine.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d documents, %d chunks\n", len(info.Documents), info.ChunkCount)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&confidential, "confidential", "c", nil, "path of a document to treat as confidential")
	return cmd
}
