package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(campaignCmd)
	campaignCmd.AddCommand(campaignStartCmd, campaignStatusCmd, campaignApproveCmd,
		campaignReviseCmd, campaignProceedCmd, campaignResetCmd)
	campaignReviseCmd.Flags().StringVarP(&reviseFeedback, "feedback", "f", "", "revision feedback (required)")
}

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Drive the active campaign through the running daemon",
}

// daemonCall sends one JSON request to the local daemon's API and
// returns the decoded response body. Non-2xx responses become errors
// carrying the daemon's error message.
func daemonCall(method, path string, payload any) (map[string]any, error) {
	cfg := loadConfig()
	url := "http://" + cfg.HTTP.Listen + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if msg, ok := decoded["error"].(string); ok {
			return nil, fmt.Errorf("%s", msg)
		}
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return decoded, nil
}

var campaignStartCmd = &cobra.Command{
	Use:   "start <product> <product-cost> <budget>",
	Short: "Start a new campaign run",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cost, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid product cost: %w", err)
		}
		budget, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid budget: %w", err)
		}

		resp, err := daemonCall(http.MethodPost, "/api/campaign/start", map[string]any{
			"product":      args[0],
			"product_cost": cost,
			"budget":       budget,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Campaign started: %v\n", resp["session_id"])
		return nil
	},
}

var campaignStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active campaign's stage and progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := daemonCall(http.MethodGet, "/api/status", nil)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Session:\t%v\n", st["session_id"])
		fmt.Fprintf(w, "Stage:\t%v\n", st["stage"])
		fmt.Fprintf(w, "Progress:\t%v%%\n", st["progress"])
		fmt.Fprintf(w, "Can proceed:\t%v\n", st["can_proceed"])
		if st["connectivity_degraded"] == true {
			fmt.Fprintf(w, "Connectivity:\tdegraded\n")
		}
		if g, ok := st["guidance"].(map[string]any); ok {
			fmt.Fprintf(w, "Next:\t%v\n", g["message"])
		}
		return w.Flush()
	},
}

var campaignApproveCmd = &cobra.Command{
	Use:   "approve <item-id>...",
	Short: "Approve one or more content items",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]any{"feedback_type": "approve"}
		if len(args) == 1 {
			payload["item_id"] = args[0]
		} else {
			payload["items"] = args
		}
		resp, err := daemonCall(http.MethodPost, "/api/campaign/feedback", payload)
		if err != nil {
			return err
		}
		printFeedbackResult(resp, args)
		return nil
	},
}

var reviseFeedback string

var campaignReviseCmd = &cobra.Command{
	Use:   "revise <item-id>...",
	Short: "Request revision of one or more content items",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(reviseFeedback) == "" {
			return fmt.Errorf("feedback is required for revision (use --feedback)")
		}
		payload := map[string]any{
			"feedback_type": "revise",
			"feedback":      reviseFeedback,
		}
		if len(args) == 1 {
			payload["item_id"] = args[0]
		} else {
			payload["items"] = args
		}
		resp, err := daemonCall(http.MethodPost, "/api/campaign/feedback", payload)
		if err != nil {
			return err
		}
		printFeedbackResult(resp, args)
		return nil
	},
}

func printFeedbackResult(resp map[string]any, args []string) {
	if len(args) == 1 {
		fmt.Fprintf(os.Stdout, "Item %s is now %v.\n", args[0], resp["state"])
		return
	}
	if succeeded, ok := resp["succeeded"].([]any); ok {
		fmt.Fprintf(os.Stdout, "%d item(s) updated.\n", len(succeeded))
	}
	if failed, ok := resp["failed"].(map[string]any); ok && len(failed) > 0 {
		for id, reason := range failed {
			fmt.Fprintf(os.Stdout, "  %s failed: %v\n", id, reason)
		}
	}
}

var campaignProceedCmd = &cobra.Command{
	Use:   "proceed",
	Short: "Trigger analytics once all items are approved",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := daemonCall(http.MethodPost, "/api/campaign/proceed", nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Advanced to %v.\n", st["stage"])
		return nil
	},
}

var campaignResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the active campaign",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := daemonCall(http.MethodPost, "/api/campaign/reset", nil); err != nil {
			return err
		}
		fmt.Println("Campaign reset.")
		return nil
	},
}
