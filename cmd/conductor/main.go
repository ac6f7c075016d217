// Package main provides the conductor CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/conductor/cli"
	"github.com/richinex/conductor/config"
)

var opts cli.Options

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "conductor",
		Short: "Route questions across multiple LLM providers",
		Long: `A CLI for conducting queries across OpenAI, Gemini, Claude, DeepSeek, Grok
and HuggingFace.

Each query is scored for complexity and routed:
- simple: answered directly by the primary provider
- moderate: answered directly with a structured-answer prompt
- complex: decomposed into sub-tasks, executed, then synthesized

Modes can be forced with --mode: simple, moderate, orchestrated, consensus,
power_duo, fastest, best, parallel or <provider>_only.`,
		SilenceUsage: true,
		Version:      cli.Version,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (default $CONDUCTOR_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", "", "Default LLM provider ("+strings.Join(config.SupportedProviders(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show progress, sub-tasks and token usage")
	rootCmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(sessionsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the application for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	ctx := cmd.Context()
	app, err := cli.Setup(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()
	return fn(ctx, app)
}

func askCmd() *cobra.Command {
	var ask cli.AskOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return cli.Ask(ctx, app, strings.Join(args, " "), ask)
			})
		},
	}

	addRequestFlags(cmd, &ask)
	cmd.Flags().StringVar(&ask.SessionID, "session", "", "Session ID for conversation persistence")

	return cmd
}

func chatCmd() *cobra.Command {
	var ask cli.AskOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return cli.Chat(ctx, app, os.Stdin, ask)
			})
		},
	}

	addRequestFlags(cmd, &ask)
	cmd.Flags().StringVar(&ask.SessionID, "session", "default", "Session ID for conversation persistence")

	return cmd
}

func addRequestFlags(cmd *cobra.Command, ask *cli.AskOptions) {
	cmd.Flags().StringVarP(&ask.Mode, "mode", "M", "", "Force a mode instead of automatic routing")
	cmd.Flags().StringArrayVarP(&ask.Files, "file", "f", nil, "Attached file name (repeatable)")
	cmd.Flags().StringVar(&ask.Summary, "summary", "", "Case summary prepended to the question")
}

func analyzeCmd() *cobra.Command {
	var hasFiles bool

	cmd := &cobra.Command{
		Use:   "analyze [question]",
		Short: "Show how a question would be routed, without calling a provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return cli.Analyze(app, strings.Join(args, " "), hasFiles)
			})
		},
	}

	cmd.Flags().BoolVar(&hasFiles, "files", false, "Score as if files were attached")

	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conductor HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return cli.Serve(ctx, app, addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers (* marks the default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				cli.ListProviders(app)
				return nil
			})
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cli.ListSessions)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [session]",
		Short: "Show the runs recorded for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return cli.ShowSession(ctx, app, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete [session]",
		Short: "Delete a session with its history and runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return cli.DeleteSession(ctx, app, args[0])
			})
		},
	})

	return cmd
}
