package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	"github.com/spf13/cobra"
)

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func newSubmitCommand() *cobra.Command {
	var (
		serverURL string
		orgID     string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <file|->",
		Short: "Submit a report to a running tixsync server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(orgID) == "" {
				return errors.New("--org is required")
			}
			body, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			endpoint := strings.TrimRight(serverURL, "/") + "/v1/orgs/" + orgID + "/reports"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, bytes.NewBufferString(body))
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("submit report: %w", err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnprocessableEntity {
				var apiErr apiError
				if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
					return fmt.Errorf("server rejected report (%d): %s", resp.StatusCode, apiErr.Error.Message)
				}
				return fmt.Errorf("server rejected report: status %d", resp.StatusCode)
			}

			var envelope struct {
				Data reportdomain.ProcessSummary `json:"data"`
			}
			if err := json.Unmarshal(raw, &envelope); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			printProcessSummary(cmd.OutOrStdout(), envelope.Data)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", envOr("TIXSYNC_URL", "http://localhost:8080"), "tixsync server base URL")
	cmd.Flags().StringVar(&orgID, "org", os.Getenv("TIXSYNC_ORG_ID"), "Organization id")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")
	return cmd
}

func printProcessSummary(out io.Writer, s reportdomain.ProcessSummary) {
	fmt.Fprintf(out, "Report %s: %s\n", s.ReportID, s.Status)
	if s.ErrorMessage != "" {
		fmt.Fprintf(out, "error: %s\n", s.ErrorMessage)
	}

	if len(s.Shows) > 0 {
		rows := make([][]string, 0, len(s.Shows))
		for _, show := range s.Shows {
			method := show.Method
			if method == "" {
				method = "-"
			}
			rows = append(rows, []string{
				show.CleanName,
				show.Date,
				strconv.FormatBool(show.Matched),
				method,
				strconv.FormatFloat(show.Confidence, 'f', 2, 64),
				show.CanonicalShowID,
				show.DeliveryStatus,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Show", "Date", "Matched", "Method", "Confidence", "Canonical", "Delivery"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))
	}

	fmt.Fprintf(out, "parsed=%d matched=%d unmatched=%d new_mappings=%d sent=%d failed=%d\n",
		s.ParsedShowCount, s.MatchedCount, s.UnmatchedCount, s.NewMappingCount, s.NotificationsSent, s.DeliveryFailures)
	for _, msg := range s.ParseErrors {
		fmt.Fprintf(out, "parse error: %s\n", msg)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
