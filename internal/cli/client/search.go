package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchAPIRequest represents the search API request.
type SearchAPIRequest struct {
	Query       string   `json:"query"`
	Limit       int      `json:"limit,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// SearchResult represents a single scored search result.
type SearchResult struct {
	Source
	Score float32 `json:"score"`
}

// SearchAPIResponse represents the search API response.
type SearchAPIResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		limit int
		mode  string
		docs  []string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search indexed documents and print the matching passages.

Modes:
  semantic  embedding similarity only (default)
  lexical   keyword match only
  hybrid    semantic and lexical fused by reciprocal rank`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], limit, mode, docs, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (server default if 0)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Search mode (semantic|lexical|hybrid)")
	cmd.Flags().StringSliceVar(&docs, "doc", nil, "Restrict to these document IDs (repeatable)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, limit int, mode string, docs []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := SearchAPIRequest{
		Query:       query,
		Limit:       limit,
		Mode:        mode,
		DocumentIDs: docs,
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchAPIResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(searchResp.Results))
	for i, result := range searchResp.Results {
		fmt.Printf("%d. %s (chunk %d, score %.4f)\n", i+1, result.Filename, result.Ordinal, result.Score)
		fmt.Printf("   %s\n", snippet(result.Content, 160))
		fmt.Printf("   ID: %s\n", result.ChunkID)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
