package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-proxyauth/pkg/config"
	"github.com/jeremyhahn/go-proxyauth/pkg/metrics"
	"github.com/jeremyhahn/go-proxyauth/pkg/oauth"
	"github.com/jeremyhahn/go-proxyauth/pkg/strategy"
	"github.com/jeremyhahn/go-proxyauth/pkg/transport"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess        = 0
	ExitCodeError          = 1
	ExitCodeInvalidConfig  = 2
	ExitCodeAuthFailed     = 3
	ExitCodeNotImplemented = 4
)

const defaultConfigPath = "proxyauth.yaml"

// rootOptions holds the persistent flags and the state derived from them.
type rootOptions struct {
	configPath string
	envFiles   []string
	logLevel   string

	logger *slog.Logger
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "proxyauth",
		Short: "Obtain and attach credentials for outbound HTTP requests",
		Long: `proxyauth authenticates against configured target systems and produces the
header a testing or proxy client attaches to outbound requests.

Targets are read from a YAML file and select a strategy by name:
uaa-oauth2-cached, uaa-oauth2 or saml.`,
		SilenceUsage: true,
		Version:      version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
	}
	cmd.SetVersionTemplate(`{{printf "proxyauth version %s\n" .Version}}`)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the targets file")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "load environment variables from these files (default .env if present)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	cmd.AddCommand(newHeaderCmd(opts))
	cmd.AddCommand(newGetCmd(opts))
	cmd.AddCommand(newStrategiesCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (o *rootOptions) setup(stderr io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, o.logLevel)
	}
	o.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	return config.LoadEnv(o.envFiles...)
}

// session is everything a command needs to authenticate one target.
type session struct {
	target     config.Target
	strategy   strategy.Strategy
	httpClient *http.Client
	registry   *prometheus.Registry
}

// open loads the config file and resolves the named target's strategy.
func (o *rootOptions) open(targetName string) (*session, error) {
	file, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	target, err := file.Target(targetName)
	if err != nil {
		return nil, err
	}

	httpClient := oauth.NewHTTPClient(oauth.ClientOptions{
		InsecureSkipVerify: file.HTTP.InsecureSkipVerify,
	})

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector("proxyauth")
	if err := registry.Register(collector); err != nil {
		return nil, err
	}

	strategies := strategy.Default(o.logger,
		oauth.WithHTTPClient(httpClient),
		oauth.WithRequestTimeout(file.HTTP.Timeout),
		oauth.WithObserver(collector),
		oauth.WithCache(oauth.NewTokenCache(oauth.WithLogger(o.logger), oauth.WithObserver(collector))),
	)

	s, err := strategies.Get(strategy.Name(target.Strategy))
	if err != nil {
		return nil, err
	}
	if target.Retry != nil {
		s = strategy.WithRetry(s, target.Retry.Attempts, target.Retry.InitialBackoff)
	}

	o.logger.Debug("target resolved",
		slog.String("target", targetName),
		slog.String("strategy", target.Strategy))

	return &session{
		target:     target,
		strategy:   s,
		httpClient: httpClient,
		registry:   registry,
	}, nil
}

func (s *session) transport(logger *slog.Logger) *transport.Transport {
	return &transport.Transport{
		Base:              s.httpClient.Transport,
		Strategy:          s.strategy,
		Params:            s.target.Parameters,
		Credentials:       s.target.Credentials,
		ContinueOnFailure: s.target.ContinueOnFailure,
		Logger:            logger,
	}
}

// getExitCode determines the exit code for err.
// Not-implemented is checked first since transport failures wrap it.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, strategy.ErrNotImplemented):
		return ExitCodeNotImplemented
	case errors.Is(err, oauth.ErrInvalidConfig),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrTargetNotFound),
		errors.Is(err, strategy.ErrUnknownStrategy):
		return ExitCodeInvalidConfig
	case errors.Is(err, oauth.ErrTokenRequestFailed),
		errors.Is(err, oauth.ErrMalformedResponse),
		errors.Is(err, transport.ErrAuthenticationFailed):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
