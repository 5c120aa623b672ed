package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/ruleio"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate rule bundle files",
		Long: `Validate every rule in one or more bundle files. The format is taken
from the file extension (.yaml, .yml or .json).

Exits non-zero when any rule is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator := domain.NewValidator()
			out := cmd.OutOrStdout()

			invalid := 0
			for _, path := range args {
				rules, err := ruleio.ReadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				log.Debug().Str("file", path).Int("rules", len(rules)).Msg("Validating bundle")

				for i := range rules {
					result := validator.ValidateRule(&rules[i])
					printValidation(out, fmt.Sprintf("%s: rule %d %q", path, i, rules[i].Name), result)
					if !result.Valid() {
						invalid++
					}
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d invalid rule(s)", invalid)
			}
			return nil
		},
	}
}

func printValidation(out io.Writer, label string, result domain.ValidationResult) {
	if result.Valid() {
		fmt.Fprintf(out, "%s: ok\n", label)
		return
	}
	fmt.Fprintf(out, "%s: %d problem(s)\n", label, len(result.Errors))
	for _, fe := range result.Errors {
		fmt.Fprintf(out, "  %s: %s (%s)\n", fe.Field, fe.Message, fe.Code)
	}
}

// validateAll checks every rule and reports whether all of them passed
func validateAll(out io.Writer, rules []domain.Rule) bool {
	validator := domain.NewValidator()
	ok := true
	for i := range rules {
		result := validator.ValidateRule(&rules[i])
		if !result.Valid() {
			printValidation(out, fmt.Sprintf("rule %d %q", i, rules[i].Name), result)
			ok = false
		}
	}
	return ok
}
