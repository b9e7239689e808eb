package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pdfqa/internal/domain"
)

type matchJSON struct {
	Rank     int     `json:"rank"`
	Source   string  `json:"source"`
	Page     int     `json:"page,omitempty"`
	Distance float64 `json:"distance"`
	Text     string  `json:"text"`
}

type answerJSON struct {
	Query     string      `json:"query"`
	Available bool        `json:"available"`
	Matches   []matchJSON `json:"matches"`
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Print the passages that best match a question",
		Long: `Initialize the index (building it if needed) and print the top-k
passages closest to the question.

Examples:
  pdfqa ask "what is the battery capacity?"
  pdfqa ask -k 5 --format json "warranty terms"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("--format must be text or json, got %q", format)
			}
			a, err := setup(flags, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			if _, err := a.pipeline.Initialize(cmd.Context(), a.cfg.Documents.Dir); err != nil {
				return fmt.Errorf("initializing index: %w", err)
			}
			ans, err := a.pipeline.Answer(cmd.Context(), args[0], a.cfg.Query.TopK)
			if err != nil {
				return fmt.Errorf("answering: %w", err)
			}
			if format == "json" {
				return writeAnswerJSON(cmd.OutOrStdout(), ans)
			}
			writeAnswerText(cmd.OutOrStdout(), ans, a.cfg.Query.MaxSnippetChars)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func writeAnswerJSON(w io.Writer, ans domain.Answer) error {
	out := answerJSON{Query: ans.Query, Available: ans.Available, Matches: make([]matchJSON, 0, len(ans.Results))}
	for _, r := range ans.Results {
		out.Matches = append(out.Matches, matchJSON{
			Rank:     r.Rank,
			Source:   r.Chunk.Source,
			Page:     r.Chunk.Page,
			Distance: r.Distance,
			Text:     r.Chunk.Text,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}

func writeAnswerText(w io.Writer, ans domain.Answer, maxChars int) {
	switch {
	case !ans.Available:
		fmt.Fprintln(w, "No documents indexed.")
		return
	case len(ans.Results) == 0:
		fmt.Fprintln(w, "No matches found for your question.")
		return
	}
	for _, r := range ans.Results {
		where := filepath.Base(r.Chunk.Source)
		if r.Chunk.Page > 0 {
			where += fmt.Sprintf(", page %d", r.Chunk.Page)
		}
		fmt.Fprintf(w, "Match %d (%s) distance=%.3f\n", r.Rank, where, r.Distance)
		text := strings.TrimSpace(r.Chunk.Text)
		if runes := []rune(text); maxChars > 0 && len(runes) > maxChars {
			text = string(runes[:maxChars]) + "…"
		}
		fmt.Fprintf(w, "%s\n\n", text)
	}
}
