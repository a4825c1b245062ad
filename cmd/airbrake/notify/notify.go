package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/sthembisoo/airbrake-notifier/notifier"
	"github.com/sthembisoo/airbrake-notifier/utils/config"
)

const testRequestURL = "http://localhost/airbrake/test?source=cli"

var (
	flagConfigPath  string
	flagAPIKey      string
	flagEnvironment string
	flagName        string
	flagURL         string
	flagEndpoint    string
	flagMessage     string
	flagDryRun      bool
)

func NewCmdNotify() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notice to Airbrake",
		Long: `Send a test notice to Airbrake.

This command builds a notice from a synthetic error and request, posts it
to the notices endpoint and waits for the submission to finish. Failures
are logged.

Examples:
  # Send a test notice
  airbrake-notifier notify --api-key YOUR_API_KEY --environment production

  # Read settings from a config file (AIRBRAKE_API_KEY and AIRBRAKE_ENV also work)
  airbrake-notifier notify --config airbrake.yaml

  # Print the notice instead of sending it
  airbrake-notifier notify --config airbrake.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd)
		},
	}

	cmd.Flags().StringVarP(&flagConfigPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVarP(&flagAPIKey, "api-key", "k", "", "Airbrake project API key (or set AIRBRAKE_API_KEY env var)")
	cmd.Flags().StringVarP(&flagEnvironment, "environment", "e", "", "Environment name (or set AIRBRAKE_ENV env var)")
	cmd.Flags().StringVar(&flagName, "name", "", "Notifier name reported in the notice")
	cmd.Flags().StringVar(&flagURL, "url", "", "Notifier url reported in the notice")
	cmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "Notices endpoint (or set AIRBRAKE_ENDPOINT env var)")
	cmd.Flags().StringVarP(&flagMessage, "message", "m", "Testing airbrake notifier", "Message of the test error")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print the notice XML instead of sending it")

	return cmd
}

// testError is the error reported by the notify command
type testError struct {
	error
	message string
}

func (e *testError) Message() string {
	return e.message
}

func (e *testError) Unwrap() error {
	return e.error
}

func start(cmd *cobra.Command) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg)

	if !flagDryRun {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	started := time.Now()
	req, err := http.NewRequest(http.MethodGet, testRequestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build test request: %w", err)
	}
	req.RemoteAddr = "127.0.0.1:0"
	req.Header.Set("User-Agent", cfg.Name)

	exc := notifier.NewExceptionInfo(&testError{
		error:   errors.New("airbrake test error"),
		message: flagMessage,
	})

	n := notifier.New(cfg.Name, append(cfg.Options(), notifier.WithHandler(cmd))...)
	snapshot := notifier.SnapshotRequest(req, nil, started)

	if flagDryRun {
		body, err := n.BuildNotice(exc, snapshot).Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	}

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("environment", cfg.Environment).
		Msg("Sending test notice")

	n.Notify(exc, snapshot)
	n.Wait()

	fmt.Fprintln(cmd.OutOrStdout(), "Test notice submitted")
	return nil
}

func applyFlags(cfg *config.Config) {
	set := func(field *string, value string) {
		if value = strings.TrimSpace(value); value != "" {
			*field = value
		}
	}
	set(&cfg.APIKey, flagAPIKey)
	set(&cfg.Environment, flagEnvironment)
	set(&cfg.Name, flagName)
	set(&cfg.URL, flagURL)
	set(&cfg.Endpoint, flagEndpoint)
}
