// Command discussion-cache serves a cached, credential-brokering API over a
// repository's GitHub Discussions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/wolfeidau/discussion-cache/cache"
	"github.com/wolfeidau/discussion-cache/forum"
	"github.com/wolfeidau/discussion-cache/githubauth"
	"github.com/wolfeidau/discussion-cache/server"
	"github.com/wolfeidau/discussion-cache/telemetry"
	"github.com/wolfeidau/discussion-cache/upstream/gql"
	"github.com/wolfeidau/discussion-cache/upstream/rest"
)

var version = "dev"

type cli struct {
	Address string `help:"Address to listen on." default:":8080" env:"ADDRESS"`

	Owner string `help:"GitHub repository owner." env:"GITHUB_REPO_OWNER" required:""`
	Repo  string `help:"GitHub repository name." env:"GITHUB_REPO_NAME" required:""`

	ServerToken       string `help:"Long-lived GitHub token for server-side reads." env:"GITHUB_SERVER_TOKEN"`
	AppID             string `help:"GitHub App id." env:"GITHUB_APP_ID"`
	AppPrivateKey     string `help:"GitHub App private key PEM, literal or escaped newlines." env:"GITHUB_APP_PRIVATE_KEY"`
	AppInstallationID string `help:"GitHub App installation id." env:"GITHUB_APP_INSTALLATION_ID"`

	GraphQLEndpoint string `help:"GitHub GraphQL endpoint." default:"${graphql_endpoint}" env:"GITHUB_GRAPHQL_URL"`
	APIBaseURL      string `help:"GitHub REST API base URL." default:"${api_base_url}" env:"GITHUB_API_URL"`

	LogLevel  string `help:"Log level." enum:"debug,info,warn,error" default:"info" env:"LOG_LEVEL"`
	LogFormat string `help:"Log format." enum:"text,json" default:"text" env:"LOG_FORMAT"`

	OTLPEndpoint string `help:"OTLP gRPC endpoint for metrics export." env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Prometheus   bool   `help:"Enable the Prometheus /metrics endpoint." env:"ENABLE_PROMETHEUS"`

	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; a missing .env file is not an error.
	_ = godotenv.Load()

	var flags cli
	kong.Parse(&flags,
		kong.Name("discussion-cache"),
		kong.Description("Cached, credential-brokering API over GitHub Discussions."),
		kong.Vars{
			"version":          version,
			"graphql_endpoint": gql.DefaultEndpoint,
			"api_base_url":     githubauth.DefaultAPIBaseURL,
		},
	)

	logger, err := buildLogger(flags.LogLevel, flags.LogFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricsConfig{
		ServiceName:      "discussion-cache",
		ServiceVersion:   version,
		OTLPEndpoint:     flags.OTLPEndpoint,
		EnablePrometheus: flags.Prometheus,
	})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = shutdownMetrics(shutdownCtx)
	}()

	app := githubauth.NewAppTokenSource(githubauth.AppConfig{
		AppID:          flags.AppID,
		PrivateKey:     flags.AppPrivateKey,
		InstallationID: flags.AppInstallationID,
	},
		githubauth.WithBaseURL(flags.APIBaseURL),
		githubauth.WithHTTPClient(upstreamClient("token-exchange")),
		githubauth.WithLogger(logger.With("component", "githubauth")),
	)
	resolver := githubauth.NewTokenResolver(flags.ServerToken, app)

	svc, err := forum.New(flags.Owner, flags.Repo, cache.New(), resolver,
		forum.WithGraphQLClient(gql.NewClient(
			gql.WithEndpoint(flags.GraphQLEndpoint),
			gql.WithHTTPClient(upstreamClient("graphql")),
			gql.WithLogger(logger.With("component", "gql")),
		)),
		forum.WithRESTClient(rest.NewClient(
			rest.WithBaseURL(flags.APIBaseURL),
			rest.WithHTTPClient(upstreamClient("rest")),
			rest.WithLogger(logger.With("component", "rest")),
		)),
		forum.WithLogger(logger.With("component", "forum")),
	)
	if err != nil {
		return fmt.Errorf("creating forum service: %w", err)
	}

	srv, err := server.New(server.Config{
		Address: flags.Address,
		Logger:  logger.With("component", "server"),
	}, svc)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("server started",
		"address", srv.Address(),
		"repository", fmt.Sprintf("%s/%s", flags.Owner, flags.Repo),
		"server_credentials", svc.HasServerCredentials(ctx),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// upstreamClient builds an HTTP client whose transport records per-backend
// fetch metrics.
func upstreamClient(backend string) *http.Client {
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: telemetry.NewInstrumentedTransport(nil, backend),
	}
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: lvl})
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}
