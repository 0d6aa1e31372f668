package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskAPIRequest represents the ask API request.
type AskAPIRequest struct {
	Question    string   `json:"question"`
	TopK        int      `json:"top_k,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// Source represents a cited passage in an answer or search result.
type Source struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`
}

// AskAPIResponse represents the ask API response.
type AskAPIResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		topK int
		docs []string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question over your indexed documents",
		Long: `Ask a question and get an answer grounded in your indexed documents.

Citation markers like [1] in the answer refer to the numbered sources.

Examples:
  docqa ask "what were the Q3 revenue drivers?"
  docqa ask "summarize the findings" --doc <document_id>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], topK, docs, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (server default if 0)")
	cmd.Flags().StringSliceVar(&docs, "doc", nil, "Restrict to these document IDs (repeatable)")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, topK int, docs []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := AskAPIRequest{
		Question:    question,
		TopK:        topK,
		DocumentIDs: docs,
	}

	resp, err := api.Post("/ask", req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var askResp AskAPIResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)

	if len(askResp.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for i, src := range askResp.Sources {
			fmt.Printf("  [%d] %s (chunk %d)\n", i+1, src.Filename, src.Ordinal)
		}
	}

	return nil
}

func snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
