package main

import (
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/virtualpaper/console/internal/client"
	"github.com/virtualpaper/console/internal/domain"
)

// options are the flags shared by every command
type options struct {
	backendURL string
	token      string
	timeout    time.Duration
	verbose    bool
}

// backend builds a client for commands that talk to Virtualpaper
func (o *options) backend() (domain.Backend, error) {
	if o.backendURL == "" {
		return nil, errors.New("backend URL is required (--backend-url or BACKEND_URL)")
	}
	var tokens client.TokenSource
	if o.token != "" {
		tokens = client.StaticToken(o.token)
	}
	return client.New(client.Config{
		BaseURL:   o.backendURL,
		Timeout:   o.timeout,
		UserAgent: "virtualpaper-rulectl",
	}, tokens), nil
}

// backendFactory is swapped in tests
type backendFactory func(o *options) (domain.Backend, error)

func newRootCmd() *cobra.Command {
	return newRootCmdWith(func(o *options) (domain.Backend, error) { return o.backend() })
}

func newRootCmdWith(factory backendFactory) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "rulectl",
		Short: "Manage Virtualpaper processing rules from the terminal",
		Long: `rulectl validates, tests, exports and imports Virtualpaper processing rules.

Commands:
  validate  - Check rule bundle files without contacting the server
  test      - Run a stored rule against a document
  export    - Write every rule to a YAML or JSON bundle
  import    - Create the rules of a bundle on the server

Examples:
  rulectl validate rules.yaml
  rulectl --backend-url https://papers.example.com/api/v1 test 12 3f2c9a
  rulectl export backup.yaml
  rulectl import --dry-run backup.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if opts.verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.backendURL, "backend-url", os.Getenv("BACKEND_URL"), "Virtualpaper API base URL")
	flags.StringVar(&opts.token, "token", os.Getenv("BACKEND_TOKEN"), "Bearer token for the Virtualpaper API")
	flags.DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "Request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests and decisions")

	connect := func() (domain.Backend, error) { return factory(opts) }

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newTestCmd(connect))
	rootCmd.AddCommand(newExportCmd(connect))
	rootCmd.AddCommand(newImportCmd(connect))

	return rootCmd
}
