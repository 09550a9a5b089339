// Knowctl is a small operator CLI for a running knowd daemon.
//
// Usage:
//
//	knowctl sync <tenant-id>
//	knowctl search <tenant-id> "do you have a discount"
//	knowctl rules <tenant-id> [--kind rule]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:          "knowctl",
		Short:        "Operator CLI for the knowd knowledge sync daemon",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8600", "knowd server URL")

	root.AddCommand(newSyncCmd(), newSearchCmd(), newRulesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <tenant-id>",
		Short: "Run a full reconciliation for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/api/v1/tenants/%s/sync", serverURL, args[0])
			resp, err := httpClient().Post(url, "application/json", nil)
			if err != nil {
				return fmt.Errorf("calling knowd: %w", err)
			}
			defer resp.Body.Close()
			return printResponse(cmd, resp)
		},
	}
}

func newSearchCmd() *cobra.Command {
	var limit int
	var threshold float32

	cmd := &cobra.Command{
		Use:   "search <tenant-id> <query>",
		Short: "Run a ranked semantic search for a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]interface{}{
				"tenant_id":       args[0],
				"query":           args[1],
				"limit":           limit,
				"score_threshold": threshold,
			})
			if err != nil {
				return err
			}
			resp, err := httpClient().Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("calling knowd: %w", err)
			}
			defer resp.Body.Close()
			return printResponse(cmd, resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of results")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "minimum similarity score (0 uses the server default)")
	return cmd
}

func newRulesCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "rules <tenant-id>",
		Short: "Read the cached active-record snapshot for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/api/v1/tenants/%s/rules", serverURL, args[0])
			if kind != "" {
				url += "?kind=" + kind
			}
			resp, err := httpClient().Get(url)
			if err != nil {
				return fmt.Errorf("calling knowd: %w", err)
			}
			defer resp.Body.Close()
			return printResponse(cmd, resp)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "record kind (rule, support_document, company_metadata); empty reads the combined snapshot")
	return cmd
}

// printResponse pretty-prints the JSON body and fails on non-2xx statuses.
func printResponse(cmd *cobra.Command, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Write(data)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("knowd returned status %d", resp.StatusCode)
	}
	return nil
}
