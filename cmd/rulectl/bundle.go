package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/ruleio"
)

func newExportCmd(connect func() (domain.Backend, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export every rule to a bundle file",
		Long: `Write every rule to FILE. The format is taken from the extension:
.json writes JSON, anything else writes YAML. Server ids and timestamps are
left out so the bundle can be imported into another instance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := connect()
			if err != nil {
				return err
			}

			rules, err := ruleio.FetchAll(cmd.Context(), backend)
			if err != nil {
				return err
			}
			if err := ruleio.WriteFile(args[0], ruleio.NewBundle(rules, time.Now())); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rule(s) to %s\n", len(rules), args[0])
			return nil
		},
	}
}

func newImportCmd(connect func() (domain.Backend, error)) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create the rules of a bundle file",
		Long: `Create every rule in FILE on the server, in order. All rules are
validated first and nothing is created when any of them is invalid. Import
stops at the first rule the server rejects; rules before it stay created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			rules, err := ruleio.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !validateAll(out, rules) {
				return fmt.Errorf("bundle has invalid rules, nothing imported")
			}
			if dryRun {
				fmt.Fprintf(out, "%d rule(s) would be imported\n", len(rules))
				return nil
			}

			backend, err := connect()
			if err != nil {
				return err
			}

			for i, rule := range rules {
				var created domain.Rule
				if err := backend.Create(cmd.Context(), domain.ResourceRules, domain.NormalizeForCreate(rule), &created); err != nil {
					return fmt.Errorf("import stopped at rule %d %q after creating %d: %w", i, rule.Name, i, err)
				}
				log.Debug().Int("id", created.ID).Str("name", created.Name).Msg("Rule created")
				fmt.Fprintf(out, "Created rule %d %q\n", created.ID, created.Name)
			}

			fmt.Fprintf(out, "Imported %d rule(s)\n", len(rules))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only, create nothing")
	return cmd
}
