package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/asif-nvc/mcp-chat-visualizer/internal"
	"github.com/asif-nvc/mcp-chat-visualizer/internal/config"
	"github.com/asif-nvc/mcp-chat-visualizer/internal/diagramapi"
	"github.com/asif-nvc/mcp-chat-visualizer/internal/tools"
	"github.com/asif-nvc/mcp-chat-visualizer/mcp"
)

const (
	serverName  = "chat-visualizer"
	serviceName = "mcp-chat-visualizer"

	instructions = "Call visualize_chat with the conversation to get mind-map instructions, " +
		"produce the JSON they describe, then share it with create_public_diagram. " +
		"Use justify_content to repair JSON the storage service rejects."
)

var rootCmd = &cobra.Command{
	Use:   "chat-visualizer",
	Short: "An MCP server that turns conversations into shareable mind-map diagrams",
	Long: `chat-visualizer is an MCP server exposing four tools:

- visualize_chat builds the instructions for turning a conversation into mind-map JSON
- create_public_diagram stores a diagram and returns its public link
- update_public_diagram replaces the content behind an existing link
- justify_content asks the storage service to repair diagram JSON

By default it serves stateless streamable HTTP on /mcp. With --transport stdio it
reads newline-delimited JSON-RPC from stdin and writes responses to stdout.

Settings are read from defaults, then the --config file, then the environment
(API_BASE_URL, PORT, MCP_TRANSPORT), then flags.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger := newLogger()

		if cfg.Transport == config.TransportStdio {
			// A client that closes stdout must surface as a write error, not
			// terminate the process.
			signal.Ignore(syscall.SIGPIPE)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			server, err := newServer(ctx, cfg, logger)
			if err != nil {
				return err
			}

			var transport mcp.Transport
			switch cfg.Transport {
			case config.TransportStdio:
				logger.Info("serving on stdio", "tools", server.Registry().Len())
				transport = mcp.NewStdioTransport(os.Stdin, os.Stdout, logger)
			default:
				transport = mcp.NewHTTPTransport(cfg.Addr(),
					mcp.WithServiceName(serviceName),
					mcp.WithHTTPLogger(logger),
				)
			}
			return transport.Serve(ctx, server)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("shut down")
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalogue as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		client, err := diagramapi.New(cfg.BaseURL, diagramapi.WithLogger(newLogger()))
		if err != nil {
			return fmt.Errorf("error creating diagram client: %w", err)
		}
		registry, err := tools.NewRegistry(client, newLogger(), cfg.IsToolDisabled)
		if err != nil {
			return fmt.Errorf("error registering tools: %w", err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mcp.ListToolsResult{Tools: registry.List()})
	},
}

var (
	configPath    string
	transportName string
	port          int
	host          string
	baseURL       string
	auth          string
	timeout       time.Duration
	disabledTools []string
	verbose       bool

	version = "1.0.0"
	commit  = "none"
	date    = "unknown"
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.StringVar(&baseURL, "base-url", config.DefaultBaseURL, "Base URL of the diagram storage API")
	flags.StringArrayVar(&disabledTools, "disable-tool", nil, "Do not register the named tool (repeatable)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging to stderr")

	rootCmd.Flags().StringVarP(&transportName, "transport", "t", config.TransportHTTP, "Transport binding: http or stdio")
	rootCmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port for the HTTP transport")
	rootCmd.Flags().StringVar(&host, "host", "", "Listen address for the HTTP transport (default all interfaces)")
	rootCmd.Flags().StringVar(&auth, "auth", "", "Authorization header sent to the storage API (e.g. 'Bearer token123', op://vault/item/field or env://NAME)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Storage API request timeout (0 for none)")

	rootCmd.AddCommand(toolsCmd)
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
}

// loadConfig layers the config file, the environment and explicitly set
// flags over the defaults
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = baseURL
	}
	if flags.Changed("disable-tool") {
		cfg.DisabledTools = append(cfg.DisabledTools, disabledTools...)
	}
	if flags.Lookup("transport") != nil && flags.Changed("transport") {
		cfg.Transport = strings.ToLower(transportName)
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Lookup("host") != nil && flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Lookup("auth") != nil && flags.Changed("auth") {
		cfg.Auth = auth
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		cfg.Timeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, name := range cfg.DisabledTools {
		if !isKnownTool(name) {
			return nil, fmt.Errorf("invalid configuration: unknown tool %q", name)
		}
	}
	return cfg, nil
}

func isKnownTool(name string) bool {
	for _, known := range tools.Names {
		if known == name {
			return true
		}
	}
	return false
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mcp.Server, error) {
	headers := http.Header{"User-Agent": {serverName + "/" + version}}
	if cfg.Auth != "" {
		value, isReference, err := internal.ResolveSecretReference(ctx, cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("error resolving auth: %w", err)
		}
		if isReference {
			logger.Debug("resolved auth from secret reference")
		}
		headers.Set("Authorization", value)
	}

	if cfg.Timeout == 0 {
		logger.Debug("storage API calls have no timeout")
	}

	client, err := diagramapi.New(cfg.BaseURL,
		diagramapi.WithLogger(logger),
		diagramapi.WithHeaders(headers),
		diagramapi.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating diagram client: %w", err)
	}

	registry, err := tools.NewRegistry(client, logger, cfg.IsToolDisabled)
	if err != nil {
		return nil, fmt.Errorf("error registering tools: %w", err)
	}

	server, err := mcp.NewServer(registry,
		mcp.WithServerInfo(serverName, version),
		mcp.WithInstructions(instructions),
		mcp.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating server: %w", err)
	}

	logger.Debug("server ready", "baseURL", cfg.BaseURL, "tools", registry.Len(), "transport", cfg.Transport)
	return server, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
