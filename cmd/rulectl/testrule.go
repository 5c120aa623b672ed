package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/evaluator"
	"github.com/virtualpaper/console/internal/tester"
)

func newTestCmd(connect func() (domain.Backend, error)) *cobra.Command {
	var (
		local  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "test RULE_ID DOCUMENT_ID",
		Short: "Test a stored rule against a document",
		Long: `Run a stored rule against one document and show, row by row, which
conditions matched and which actions would execute. Nothing is changed.

With --local the document is fetched and the rule evaluated on this machine
instead of asking the server.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleID, err := strconv.Atoi(args[0])
			if err != nil || ruleID <= 0 {
				return fmt.Errorf("rule id must be a positive integer, got %q", args[0])
			}
			documentID := strings.TrimSpace(args[1])
			if documentID == "" {
				return fmt.Errorf("document id is required")
			}

			backend, err := connect()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var rule domain.Rule
			if err := backend.Get(ctx, domain.ResourceRules, args[0], &rule); err != nil {
				return err
			}

			var result *domain.RuleTestResult
			if local {
				doc, err := tester.ResolveDocument(ctx, backend, nil, documentID)
				if err != nil {
					return err
				}
				outcome, err := evaluator.New().Evaluate(&rule, doc)
				if err != nil {
					return err
				}
				result = outcome.Result
			} else {
				result, err = backend.TestRule(ctx, ruleID, domain.TestRuleRequest{DocumentID: documentID})
				if err != nil {
					return err
				}
			}

			report, interpretErr := domain.Interpret(&rule, result)
			if interpretErr != nil {
				log.Warn().Err(interpretErr).Int("rule_id", ruleID).Msg("Showing raw test log")
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), &rule, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Evaluate on this machine instead of the server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printReport(out io.Writer, rule *domain.Rule, report *domain.TestReport) {
	verdict := "did not match"
	if report.Matched {
		verdict = "matched"
	}
	fmt.Fprintf(out, "Rule %d %q %s (%dms)\n", rule.ID, rule.Name, verdict, report.TookMs)
	if report.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", report.Error)
	}

	if report.Degraded {
		fmt.Fprintln(out, "Result does not line up with the rule, raw log follows:")
		for _, line := range report.LogLines() {
			fmt.Fprintf(out, "  %s\n", line)
		}
		return
	}

	fmt.Fprintln(out, "Conditions:")
	for _, row := range report.Conditions {
		fmt.Fprintf(out, "  [%d] %-24s %s%s\n", row.Index, row.Condition.ConditionType, row.State, unsupportedMark(row.Unsupported))
		for _, line := range row.Output {
			fmt.Fprintf(out, "        %s\n", line)
		}
	}
	fmt.Fprintln(out, "Actions:")
	for _, row := range report.Actions {
		fmt.Fprintf(out, "  [%d] %-24s %s%s\n", row.Index, row.Action.Action, row.State, unsupportedMark(row.Unsupported))
		for _, line := range row.Output {
			fmt.Fprintf(out, "        %s\n", line)
		}
	}
}

func unsupportedMark(unsupported bool) string {
	if unsupported {
		return " (unsupported type)"
	}
	return ""
}
