package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	reportdomain "github.com/smallbiznis/tixsync/internal/report/domain"
	"github.com/smallbiznis/tixsync/internal/report/parser"
	"github.com/spf13/cobra"
)

func newParseCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Parse a report and print the extracted shows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			result := parser.Parse(body)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printParseResult(out, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the parse result as JSON")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(raw), nil
}

func printParseResult(out io.Writer, result reportdomain.ParseResult) {
	if len(result.Shows) == 0 {
		fmt.Fprintln(out, "No shows parsed")
	} else {
		rows := make([][]string, 0, len(result.Shows))
		for i, show := range result.Shows {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				show.CleanName,
				show.Date,
				valueOrDash(show.Time),
				strconv.Itoa(show.TicketsSold),
				strconv.Itoa(show.FreeTickets),
				strconv.Itoa(show.Available),
				strconv.FormatInt(show.Revenue, 10),
				shortHash(show.Hash),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Show", "Date", "Time", "Sold", "Free", "Available", "Revenue", "Hash"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	if s := result.Summary; s != nil {
		fmt.Fprintf(out, "Summary: %d shows, %d sold, %d free, %d available, revenue %d\n",
			s.ShowCount, s.TicketsSold, s.FreeTickets, s.Available, s.Revenue)
	}
	for _, msg := range result.ParseErrors {
		fmt.Fprintf(out, "parse error: %s\n", msg)
	}
}

func valueOrDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
