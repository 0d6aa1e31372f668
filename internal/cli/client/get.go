package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Document represents a document as returned by the API.
type Document struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// GetCmd creates the document get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <document_id>",
		Short: "Show a document and its ingestion status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, documentID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/documents/%s", documentID))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printDocument(&doc)
	return nil
}

func printDocument(doc *Document) {
	fmt.Printf("ID:       %s\n", doc.ID)
	fmt.Printf("Filename: %s\n", doc.Filename)
	fmt.Printf("Status:   %s\n", doc.Status)
	if doc.FailReason != "" {
		fmt.Printf("Failure:  %s\n", doc.FailReason)
	}
	if doc.ChunkCount > 0 {
		fmt.Printf("Chunks:   %d\n", doc.ChunkCount)
	}
	fmt.Printf("Created:  %s\n", doc.CreatedAt)
	fmt.Printf("Updated:  %s\n", doc.UpdatedAt)
}
