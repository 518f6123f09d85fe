package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/smallbiznis/tixsync/internal/identity"
	"github.com/smallbiznis/tixsync/internal/matching/similarity"
	"github.com/smallbiznis/tixsync/internal/report/parser"
	"github.com/spf13/cobra"
)

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <name> <date> [time]",
		Short: "Print the identity hash of a show",
		Long:  "Date accepts YYYY-MM-DD or the report's DD.MM.YYYY form; time is HH:MM.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := parser.CleanName(args[0])
			date, showTime, err := normalizeDateArgs(args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), identity.Hash(name, date, showTime))
			return nil
		},
	}
}

func normalizeDateArgs(args []string) (string, *string, error) {
	value := args[0]
	if len(args) > 1 {
		value += " " + args[1]
	}
	if date, showTime, ok := parser.ParseDateTime(value); ok {
		return date, showTime, nil
	}

	// ISO form: rewrite to the report layout and reuse its validation.
	var y, m, d int
	if _, err := fmt.Sscanf(args[0], "%4d-%2d-%2d", &y, &m, &d); err != nil {
		return "", nil, errors.New("date must be YYYY-MM-DD or DD.MM.YYYY")
	}
	value = fmt.Sprintf("%02d.%02d.%04d", d, m, y)
	if len(args) > 1 {
		value += " " + args[1]
	}
	date, showTime, ok := parser.ParseDateTime(value)
	if !ok {
		return "", nil, errors.New("invalid date or time")
	}
	return date, showTime, nil
}

func newScoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "score <name-a> <name-b>",
		Short: "Compare two show names the way the matcher does",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b := parser.CleanName(args[0]), parser.CleanName(args[1])
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"similarity", strconv.FormatFloat(similarity.StringSimilarity(a, b), 'f', 3, 64)},
					{"names match", strconv.FormatBool(similarity.NamesMatch(a, b))},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
