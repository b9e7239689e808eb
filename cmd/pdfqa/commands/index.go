package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build or load the vector index",
		Long: `Load the documents folder, chunk and embed every document, and persist
the index. An index already on disk is reused unless --rebuild is given.

Examples:
  pdfqa index
  pdfqa index --docs ./manuals --rebuild`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			st, err := a.pipeline.Initialize(cmd.Context(), a.cfg.Documents.Dir)
			if err != nil {
				return fmt.Errorf("initializing index: %w", err)
			}
			out := cmd.OutOrStdout()
			switch {
			case !st.Available:
				fmt.Fprintf(out, "No documents indexed: nothing to index in %s\n", a.cfg.Documents.Dir)
			case st.FromDisk:
				fmt.Fprintf(out, "Loaded index %s from %s: %d documents, %d chunks\n", st.BuildID, st.IndexDir, st.Documents, st.Chunks)
			default:
				fmt.Fprintf(out, "Built index %s in %s: %d documents, %d chunks\n", st.BuildID, st.IndexDir, st.Documents, st.Chunks)
			}
			return nil
		},
	}
}
