package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const (
	waitPollInterval = 2 * time.Second
	waitTimeout      = 5 * time.Minute
)

// UploadCmd creates the document upload command.
func UploadCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for ingestion",
		Long: `Upload a document (.txt, .md, or .html) for ingestion.

The server extracts the text, splits it into chunks, and indexes them for
retrieval. Ingestion may complete in the background; use --wait to block
until the document is indexed or failed.

Examples:
  docqa upload report.md
  docqa upload notes.txt --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(cmd, args[0], wait, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for ingestion to finish")

	return cmd
}

func runUpload(cmd *cobra.Command, filePath string, wait, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.UploadFile("/documents", filePath)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if wait {
		waited, err := waitForIngestion(api, doc.ID)
		if err != nil {
			return err
		}
		doc = *waited
	}

	if outputJSON {
		output, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Uploaded %s\n", doc.Filename)
	printDocument(&doc)

	if doc.Status == "failed" {
		return fmt.Errorf("ingestion failed: %s", doc.FailReason)
	}
	return nil
}

func waitForIngestion(api *APIClient, documentID string) (*Document, error) {
	deadline := time.Now().Add(waitTimeout)

	for {
		resp, err := api.Get(fmt.Sprintf("/documents/%s", documentID))
		if err != nil {
			return nil, fmt.Errorf("failed to poll document: %w", err)
		}

		var doc Document
		if err := json.Unmarshal(resp.Data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		if doc.Status == "indexed" || doc.Status == "failed" {
			return &doc, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for ingestion of %s (status: %s)", documentID, doc.Status)
		}

		time.Sleep(waitPollInterval)
	}
}
